package models

import "time"

//nolint:gosec //file not handles sensitive data
const (
	MwSchemeBearerAuth = "BearerAuth"

	MwUserIDKey = "userID"

	// SessionIDStorageKey is the durable client-side storage key holding the session id.
	SessionIDStorageKey = "blogadmin.sessionId"
)

// User is the profile returned to the admin client.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Onboarded    bool      `json:"onboarded"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserMetadata describes the client that opened a session.
type UserMetadata struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
}
