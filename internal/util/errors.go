package util

import "fmt"

// MyResponseError carries the HTTP status an error should be rendered with.
type MyResponseError struct {
	Msg    string
	Status int
}

func (e MyResponseError) Error() string { return e.Msg }

func NewResponseError(status int, format string, args ...interface{}) error {
	return MyResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
	}
}
