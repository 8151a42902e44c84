package models

import "time"

// LoginResponse is the login answer, decoded by the admin client as well.
type LoginResponse struct {
	SessionID   string    `json:"sessionId"`
	User        User      `json:"user"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
