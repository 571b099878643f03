package user

import (
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type Avatar struct {
	PublicID string `json:"publicId"`
	URL      string `json:"url"`
}

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never expose hash in JSON
	Role         string `json:"role"`
	Avatar       Avatar `json:"avatar"`

	// reset fields are set and cleared together
	ResetPasswordTokenHash *string    `json:"-"`
	ResetPasswordExpiry    *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// HasPendingReset reports whether a reset token is stored and unexpired at now.
func (u User) HasPendingReset(now time.Time) bool {
	return u.ResetPasswordTokenHash != nil && u.ResetPasswordExpiry != nil && u.ResetPasswordExpiry.After(now)
}

// SetReset stores a reset token digest together with its expiry.
func (u *User) SetReset(tokenHash string, expiresAt time.Time) {
	u.ResetPasswordTokenHash = &tokenHash
	u.ResetPasswordExpiry = &expiresAt
}

func (u *User) ClearReset() {
	u.ResetPasswordTokenHash = nil
	u.ResetPasswordExpiry = nil
}
