package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TypenameField discriminates outcomes on the wire.
const TypenameField = "__typename"

const (
	TypenameSessionIDValidationError = "SessionIdValidationError"
	TypenameAuthCookieError          = "AuthCookieError"
	TypenameForbiddenError           = "ForbiddenError"
	TypenameUnknownError             = "UnknownError"
	TypenameNotAllowedError          = "NotAllowedError"
	TypenameVerifiedSession          = "VerifiedSession"
	TypenameAccessToken              = "AccessToken"
)

var ErrUnknownOutcome = errors.New("unknown outcome typename")

// Outcome is the closed set of results returned by session verification and refresh.
// Only the types in this file implement it; switch on the concrete type.
type Outcome interface {
	Typename() string
	isOutcome()
}

type SessionIDValidationError struct {
	Reason string `json:"reason"`
}

type AuthCookieError struct{}

type ForbiddenError struct{}

type UnknownError struct{}

type NotAllowedError struct{}

type VerifiedSession struct {
	User        User      `json:"user"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type AccessToken struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (SessionIDValidationError) Typename() string { return TypenameSessionIDValidationError }
func (AuthCookieError) Typename() string          { return TypenameAuthCookieError }
func (ForbiddenError) Typename() string           { return TypenameForbiddenError }
func (UnknownError) Typename() string             { return TypenameUnknownError }
func (NotAllowedError) Typename() string          { return TypenameNotAllowedError }
func (VerifiedSession) Typename() string          { return TypenameVerifiedSession }
func (AccessToken) Typename() string              { return TypenameAccessToken }

func (SessionIDValidationError) isOutcome() {}
func (AuthCookieError) isOutcome()          {}
func (ForbiddenError) isOutcome()           {}
func (UnknownError) isOutcome()             {}
func (NotAllowedError) isOutcome()          {}
func (VerifiedSession) isOutcome()          {}
func (AccessToken) isOutcome()              {}

// EncodeOutcome renders o as a JSON object tagged with its typename.
func EncodeOutcome(o Outcome) ([]byte, error) {
	if o == nil {
		return nil, ErrUnknownOutcome
	}
	body, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("reshape outcome: %w", err)
	}
	name, err := json.Marshal(o.Typename())
	if err != nil {
		return nil, err
	}
	fields[TypenameField] = name

	return json.Marshal(fields)
}

// DecodeOutcome parses a tagged outcome. An unrecognised typename yields ErrUnknownOutcome.
func DecodeOutcome(data []byte) (Outcome, error) {
	var head struct {
		Typename string `json:"__typename"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}

	switch head.Typename {
	case TypenameSessionIDValidationError:
		var v SessionIDValidationError
		if err := decodeInto(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypenameAuthCookieError:
		return AuthCookieError{}, nil
	case TypenameForbiddenError:
		return ForbiddenError{}, nil
	case TypenameUnknownError:
		return UnknownError{}, nil
	case TypenameNotAllowedError:
		return NotAllowedError{}, nil
	case TypenameVerifiedSession:
		var v VerifiedSession
		if err := decodeInto(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypenameAccessToken:
		var v AccessToken
		if err := decodeInto(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, head.Typename)
	}
}

func decodeInto(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode outcome body: %w", err)
	}
	return nil
}
