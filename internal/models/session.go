package models

import "time"

// Session binds a session id to its owning user and the current refresh fingerprint.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	UserAgent        string
	IPAddress        string
	ExpiresAt        time.Time
	RotatedAt        *time.Time
	CreatedAt        time.Time
}

// Rotation replaces a session's refresh material.
type Rotation struct {
	RefreshTokenHash string
	ExpiresAt        time.Time
	RotatedAt        time.Time
}
