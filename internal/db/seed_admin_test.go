package db

import (
	"context"
	"testing"

	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/security"
	"golang.org/x/crypto/bcrypt"
)

func TestEnsureAdminUser(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUsersRepo()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	cfg := config.Config{
		AdminEmail:    "admin@example.com",
		AdminPassword: "admin-pass",
		AdminName:     "Admin",
		AdminRole:     user.RoleAdmin,
	}

	created, err := EnsureAdminUser(ctx, store, hasher, cfg)
	if err != nil || !created {
		t.Fatalf("first EnsureAdminUser = %v, %v", created, err)
	}

	u, err := store.GetByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("admin not stored: %v", err)
	}
	if u.Role != user.RoleAdmin {
		t.Fatalf("role = %q, want admin", u.Role)
	}
	if err := hasher.Compare(u.PasswordHash, "admin-pass"); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	created, err = EnsureAdminUser(ctx, store, hasher, cfg)
	if err != nil || created {
		t.Fatalf("second EnsureAdminUser = %v, %v; want no-op", created, err)
	}
}

func TestEnsureAdminUser_SkipsWithoutCredentials(t *testing.T) {
	created, err := EnsureAdminUser(context.Background(), memory.NewUsersRepo(), security.NewBcryptHasher(bcrypt.MinCost), config.Config{})
	if err != nil || created {
		t.Fatalf("EnsureAdminUser = %v, %v; want no-op", created, err)
	}
}
