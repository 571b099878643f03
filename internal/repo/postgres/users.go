package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, role, avatar_public_id, avatar_url,
	reset_password_token_hash, reset_password_expire, created_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Avatar.PublicID, u.Avatar.URL,
			u.ResetPasswordTokenHash, u.ResetPasswordExpiry, u.CreatedAt,
		)
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByResetTokenHash only matches a token whose expiry is strictly after now.
func (r *UsersRepo) GetByResetTokenHash(ctx context.Context, digest string, now time.Time) (user.User, error) {
	return r.getOne(ctx, "users.get_by_reset_token",
		`SELECT `+userColumns+` FROM users
		WHERE reset_password_token_hash = $1 AND reset_password_expire > $2`,
		digest, now)
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]user.User, 0)
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile writes name and email only.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id, name, email string) error {
	return r.execOne(ctx, "users.update_profile",
		`UPDATE users SET name = $2, email = $3 WHERE id = $1`,
		id, name, email)
}

// UpdateAccount writes name, email and role only.
func (r *UsersRepo) UpdateAccount(ctx context.Context, id, name, email, role string) error {
	return r.execOne(ctx, "users.update_account",
		`UPDATE users SET name = $2, email = $3, role = $4 WHERE id = $1`,
		id, name, email, role)
}

// SetPassword writes the password hash only.
func (r *UsersRepo) SetPassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, "users.set_password",
		`UPDATE users SET password_hash = $2 WHERE id = $1`,
		id, passwordHash)
}

// ConsumeReset swaps in the new hash and clears the reset columns in one
// statement, guarded on the digest and expiry. Two concurrent resets with the
// same token cannot both match.
func (r *UsersRepo) ConsumeReset(ctx context.Context, digest string, now time.Time, passwordHash string) (user.User, error) {
	return r.getOne(ctx, "users.consume_reset",
		`UPDATE users
		SET password_hash = $3, reset_password_token_hash = NULL, reset_password_expire = NULL
		WHERE reset_password_token_hash = $1 AND reset_password_expire > $2
		RETURNING `+userColumns,
		digest, now, passwordHash)
}

// execOne runs a single-row UPDATE and maps pg errors to domain errors.
func (r *UsersRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, query, args...)
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		if isInvalidText(err) {
			return user.ErrNotFound
		}
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SaveReset touches only the reset columns. Passing nil clears both.
func (r *UsersRepo) SaveReset(ctx context.Context, id string, digest *string, expiresAt *time.Time) error {
	if digest == nil || expiresAt == nil {
		digest, expiresAt = nil, nil
	}

	return r.execOne(ctx, "users.save_reset",
		`UPDATE users SET reset_password_token_hash = $2, reset_password_expire = $3 WHERE id = $1`,
		id, digest, expiresAt)
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "users.delete", `DELETE FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) ClearExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	var tag pgconn.CommandTag

	err := r.observe("users.clear_expired_resets", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			SET reset_password_token_hash = NULL, reset_password_expire = NULL
			WHERE reset_password_expire IS NOT NULL AND reset_password_expire <= $1`,
			now,
		)
		return err
	})

	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, args ...any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Avatar.PublicID,
		&u.Avatar.URL,
		&u.ResetPasswordTokenHash,
		&u.ResetPasswordExpiry,
		&u.CreatedAt,
	)

	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ids are uuid columns; a malformed id can never match
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
