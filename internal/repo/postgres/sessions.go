package postgres

import (
	"context"
	"time"

	"github.com/geocoder89/authhub/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session is the server-side record of an issued token pair. Rows hold token
// hashes only and are never mutated; expiry is the only lifecycle signal.
type Session struct {
	ID               string
	UserID           string
	TokenHash        string
	RefreshTokenHash string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

type SessionsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSessionsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SessionsRepo {
	return &SessionsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *SessionsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *SessionsRepo) Create(ctx context.Context, s Session) error {
	return r.observe("sessions.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO sessions (id, user_id, token_hash, refresh_token_hash, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			`,
			s.ID, s.UserID, s.TokenHash, s.RefreshTokenHash, s.ExpiresAt, s.CreatedAt,
		)
		return err
	})
}

// DeleteExpired prunes session rows past their access expiry. Sessions are
// audit records, not a revocation store, so pruning is safe.
func (r *SessionsRepo) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var deleted int64

	err := r.observe("sessions.delete_expired", func() error {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM sessions WHERE expires_at < $1`,
			olderThan,
		)

		if err != nil {
			return err
		}

		deleted = tag.RowsAffected()
		return nil
	})

	return deleted, err
}
