package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
)

// UsersRepo is a map-backed credential store. Email uniqueness is enforced
// under the same lock as the write.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailUsedLocked(u.Email, "") {
		return user.User{}, user.ErrEmailTaken
	}

	r.items[u.ID] = clone(u)
	return clone(u), nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByResetTokenHash(_ context.Context, digest string, now time.Time) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.ResetPasswordTokenHash != nil && *u.ResetPasswordTokenHash == digest && u.HasPendingReset(now) {
			return clone(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, clone(u))
	}

	// stable ordering, oldest first like the postgres repo
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateProfile writes name and email only.
func (r *UsersRepo) UpdateProfile(_ context.Context, id, name, email string) error {
	return r.mutate(id, email, func(u *user.User) {
		u.Name = name
		u.Email = email
	})
}

// UpdateAccount writes name, email and role only.
func (r *UsersRepo) UpdateAccount(_ context.Context, id, name, email, role string) error {
	return r.mutate(id, email, func(u *user.User) {
		u.Name = name
		u.Email = email
		u.Role = role
	})
}

// SetPassword writes the password hash only.
func (r *UsersRepo) SetPassword(_ context.Context, id, passwordHash string) error {
	return r.mutate(id, "", func(u *user.User) {
		u.PasswordHash = passwordHash
	})
}

// ConsumeReset sets the new hash and clears the reset fields, but only while
// digest is still the stored, unexpired token. A token is consumed once.
func (r *UsersRepo) ConsumeReset(_ context.Context, digest string, now time.Time, passwordHash string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.items {
		if u.ResetPasswordTokenHash == nil || *u.ResetPasswordTokenHash != digest || !u.HasPendingReset(now) {
			continue
		}

		u.PasswordHash = passwordHash
		u.ClearReset()
		r.items[id] = u
		return clone(u), nil
	}
	return user.User{}, user.ErrNotFound
}

// mutate applies fn to the stored record under the write lock. A non-empty
// email is checked for uniqueness first.
func (r *UsersRepo) mutate(id, email string, fn func(u *user.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	if email != "" && r.emailUsedLocked(email, id) {
		return user.ErrEmailTaken
	}

	fn(&u)
	r.items[id] = u
	return nil
}

func (r *UsersRepo) SaveReset(_ context.Context, id string, digest *string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	if digest == nil || expiresAt == nil {
		u.ClearReset()
	} else {
		u.SetReset(*digest, *expiresAt)
	}

	r.items[id] = u
	return nil
}

func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *UsersRepo) ClearExpiredResets(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, u := range r.items {
		if u.ResetPasswordExpiry != nil && !u.ResetPasswordExpiry.After(now) {
			u.ClearReset()
			r.items[id] = u
			n++
		}
	}
	return n, nil
}

func (r *UsersRepo) emailUsedLocked(email, exceptID string) bool {
	email = strings.TrimSpace(email)
	for id, u := range r.items {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

// clone copies the pointer fields so callers can't mutate stored state.
func clone(u user.User) user.User {
	if u.ResetPasswordTokenHash != nil {
		h := *u.ResetPasswordTokenHash
		u.ResetPasswordTokenHash = &h
	}
	if u.ResetPasswordExpiry != nil {
		e := *u.ResetPasswordExpiry
		u.ResetPasswordExpiry = &e
	}
	return u
}
