package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
)

func newUser(email string) user.User {
	return user.NewFromRegister(user.RegisterRequest{Name: "Test", Email: email}, "hash")
}

func TestUsersRepo_CreateEnforcesUniqueEmail(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	if _, err := r.Create(ctx, newUser("a@x.com")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := r.Create(ctx, newUser("a@x.com")); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("duplicate Create = %v, want ErrEmailTaken", err)
	}
}

func TestUsersRepo_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	a, _ := r.Create(ctx, newUser("a@x.com"))
	b, _ := r.Create(ctx, newUser("b@x.com"))

	if err := r.UpdateProfile(ctx, b.ID, b.Name, "a@x.com"); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("UpdateProfile to taken email = %v, want ErrEmailTaken", err)
	}

	if err := r.UpdateProfile(ctx, a.ID, "Renamed", "a@x.com"); err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}

	got, err := r.GetByID(ctx, a.ID)
	if err != nil || got.Name != "Renamed" {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}

	if err := r.UpdateAccount(ctx, "missing", "X", "x@x.com", user.RoleAdmin); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("UpdateAccount(missing) = %v, want ErrNotFound", err)
	}

	if err := r.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := r.GetByID(ctx, a.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("GetByID after delete = %v, want ErrNotFound", err)
	}
	if err := r.Delete(ctx, a.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestUsersRepo_WritesTouchOnlyTheirFields(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	u, _ := r.Create(ctx, newUser("a@x.com"))

	// a stale copy held by a request that started before these writes
	stale := u

	digest := "digest"
	expiry := now.Add(30 * time.Minute)
	if err := r.SaveReset(ctx, u.ID, &digest, &expiry); err != nil {
		t.Fatalf("SaveReset error: %v", err)
	}
	if err := r.SetPassword(ctx, u.ID, "new-hash"); err != nil {
		t.Fatalf("SetPassword error: %v", err)
	}

	if err := r.UpdateProfile(ctx, stale.ID, "Renamed", stale.Email); err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if err := r.UpdateAccount(ctx, stale.ID, "Renamed", stale.Email, user.RoleAdmin); err != nil {
		t.Fatalf("UpdateAccount error: %v", err)
	}

	got, _ := r.GetByID(ctx, u.ID)
	if got.PasswordHash != "new-hash" {
		t.Fatalf("profile writes must not restore the old hash, got %q", got.PasswordHash)
	}
	if got.ResetPasswordTokenHash == nil || *got.ResetPasswordTokenHash != digest {
		t.Fatalf("profile writes must not clear a pending reset")
	}
	if got.Role != user.RoleAdmin || got.Name != "Renamed" {
		t.Fatalf("unexpected account fields: %+v", got)
	}
}

func TestUsersRepo_ConsumeResetOnce(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	u, _ := r.Create(ctx, newUser("a@x.com"))

	digest := "digest"
	expiry := now.Add(30 * time.Minute)
	_ = r.SaveReset(ctx, u.ID, &digest, &expiry)

	if _, err := r.ConsumeReset(ctx, digest, expiry, "late"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("ConsumeReset at expiry = %v, want ErrNotFound", err)
	}

	got, err := r.ConsumeReset(ctx, digest, now, "reset-hash")
	if err != nil {
		t.Fatalf("ConsumeReset error: %v", err)
	}
	if got.PasswordHash != "reset-hash" || got.ResetPasswordTokenHash != nil || got.ResetPasswordExpiry != nil {
		t.Fatalf("unexpected user after consume: %+v", got)
	}

	if _, err := r.ConsumeReset(ctx, digest, now, "again"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("second ConsumeReset = %v, want ErrNotFound", err)
	}
}

func TestUsersRepo_ResetTokenLookup(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	u, _ := r.Create(ctx, newUser("a@x.com"))

	digest := "digest"
	expiry := now.Add(30 * time.Minute)
	if err := r.SaveReset(ctx, u.ID, &digest, &expiry); err != nil {
		t.Fatalf("SaveReset error: %v", err)
	}

	if _, err := r.GetByResetTokenHash(ctx, digest, now); err != nil {
		t.Fatalf("lookup before expiry: %v", err)
	}
	if _, err := r.GetByResetTokenHash(ctx, digest, expiry); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("lookup at expiry = %v, want ErrNotFound", err)
	}
	if _, err := r.GetByResetTokenHash(ctx, "other", now); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("lookup with wrong digest = %v, want ErrNotFound", err)
	}

	n, err := r.ClearExpiredResets(ctx, expiry.Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("ClearExpiredResets = %d, %v", n, err)
	}

	got, _ := r.GetByID(ctx, u.ID)
	if got.ResetPasswordTokenHash != nil || got.ResetPasswordExpiry != nil {
		t.Fatalf("expected both reset fields cleared, got %+v", got)
	}
}

func TestUsersRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, _ := r.Create(ctx, newUser("a@x.com"))
	digest := "digest"
	expiry := time.Now().Add(time.Hour)
	_ = r.SaveReset(ctx, u.ID, &digest, &expiry)

	got, _ := r.GetByID(ctx, u.ID)
	*got.ResetPasswordTokenHash = "changed"

	again, _ := r.GetByID(ctx, u.ID)
	if *again.ResetPasswordTokenHash != "digest" {
		t.Fatalf("stored state leaked through a returned copy")
	}
}
