package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAvatarID  = "avatars/default"
	defaultAvatarURL = "https://res.cloudinary.com/storefront/image/upload/v1/avatars/default.png"
)

// DefaultAvatar is the placeholder every new account starts with.
func DefaultAvatar() Avatar {
	return Avatar{PublicID: defaultAvatarID, URL: defaultAvatarURL}
}

// NewFromRegister builds a user from a registration request. The caller
// supplies the already hashed password.
func NewFromRegister(req RegisterRequest, passwordHash string) User {
	return User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: passwordHash,
		Role:         RoleUser,
		Avatar:       DefaultAvatar(),
		CreatedAt:    time.Now().UTC(),
	}
}
