package db

import (
	"context"
	"errors"

	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/domain/user"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type Hasher interface {
	Hash(plain string) (string, error)
}

// EnsureAdminUser creates the configured admin account when it does not exist.
// Registration always yields role "user", so this is the only way in for the first admin.
func EnsureAdminUser(ctx context.Context, store AdminStore, hasher Hasher, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	// check if the user exists

	_, err := store.GetByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	u := user.NewFromRegister(user.RegisterRequest{
		Name:  cfg.AdminName,
		Email: cfg.AdminEmail,
	}, hash)
	u.Role = cfg.AdminRole

	_, err = store.Create(ctx, u)
	if errors.Is(err, user.ErrEmailTaken) {
		// another instance won the race
		return false, nil
	}

	return err == nil, err
}
