package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser surfaces a unique-constraint violation on email or
	// username. Racing registrations are arbitrated here by the store.
	ErrDuplicateUser = errors.New("email or username already exists")
)

const userColumns = `id, email, username, password_hash, full_name, role, avatar_url, is_active, last_login, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, username, password_hash, full_name, role, avatar_url, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`,
			u.ID, u.Email, u.Username, u.PasswordHash, u.FullName, u.Role, u.AvatarURL, u.IsActive, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError

		// structured unique-violation check, not message sniffing
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUser
		}

		return err
	}

	return nil
}

func (r *UsersRepo) scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.AvatarURL,
		&u.IsActive,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

// GetByIdentifier looks a user up by email or username in one query.
func (r *UsersRepo) GetByIdentifier(ctx context.Context, identifier string) (user.User, error) {
	var u user.User
	var scanErr error

	err := r.observe("users.get_by_identifier", func() error {
		u, scanErr = r.scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+`
			 FROM users
			 WHERE email = $1 OR username = $1`,
			identifier,
		))
		return scanErr
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	var scanErr error

	err := r.observe("users.get_by_id", func() error {
		u, scanErr = r.scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+`
			 FROM users
			 WHERE id = $1`,
			id,
		))
		return scanErr
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

// GetInfoByID returns the public projection of an active user only.
func (r *UsersRepo) GetInfoByID(ctx context.Context, id string) (user.Info, error) {
	var info user.Info

	err := r.observe("users.get_info_by_id", func() error {
		err := r.pool.QueryRow(
			ctx,
			`SELECT id, email, username, full_name, role, avatar_url
			 FROM users
			 WHERE id = $1 AND is_active = true`,
			id,
		).Scan(
			&info.ID,
			&info.Email,
			&info.Username,
			&info.FullName,
			&info.Role,
			&info.AvatarURL,
		)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}

			return err
		}

		return nil
	})

	if err != nil {
		return user.Info{}, err
	}

	return info, nil
}

func (r *UsersRepo) TouchLastLogin(ctx context.Context, id string) error {
	return r.observe("users.touch_last_login", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE users SET last_login = NOW() WHERE id = $1`,
			id,
		)
		return err
	})
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
			passwordHash, id,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

// UpdateProfile applies a partial update: nil fields leave stored values
// unchanged.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, fullName, avatarURL *string) (user.Info, error) {
	var info user.Info

	err := r.observe("users.update_profile", func() error {
		err := r.pool.QueryRow(ctx,
			`UPDATE users
			 SET full_name = COALESCE($1, full_name),
			     avatar_url = COALESCE($2, avatar_url),
			     updated_at = NOW()
			 WHERE id = $3
			 RETURNING id, email, username, full_name, role, avatar_url`,
			fullName, avatarURL, id,
		).Scan(
			&info.ID,
			&info.Email,
			&info.Username,
			&info.FullName,
			&info.Role,
			&info.AvatarURL,
		)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}

			return err
		}

		return nil
	})

	if err != nil {
		return user.Info{}, err
	}

	return info, nil
}
