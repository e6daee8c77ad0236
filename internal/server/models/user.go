// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. Username is immutable once created.
type User struct {
	ID           int64
	Username     string
	Email        string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
	IsSuper      bool
	Banned       bool
}

// Session is the outcome of a successful login.
type Session struct {
	User        *User
	AccessToken string
	ExpiresAt   time.Time
}
