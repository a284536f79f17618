package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oauthhub/oauthhub/internal/domain"
)

const sessionColumns = `id, user_id, platform, state, code_verifier, redirect_uri, is_active, created_at, completed_at`

// SessionRepo implements domain.SessionRepository backed by PostgreSQL.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func scanSession(row pgx.Row) (*domain.OAuthSession, error) {
	var s domain.OAuthSession
	err := row.Scan(
		&s.ID, &s.UserID, &s.Platform, &s.State, &s.CodeVerifier,
		&s.RedirectURI, &s.IsActive, &s.CreatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Create(ctx context.Context, session *domain.OAuthSession) (err error) {
	start := time.Now()
	defer func() { observe("sessions_create", start, err) }()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO oauth_sessions (user_id, platform, state, code_verifier, redirect_uri, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING id
	`, session.UserID, session.Platform, session.State, session.CodeVerifier,
		session.RedirectURI, session.CreatedAt)
	if err = row.Scan(&session.ID); err != nil {
		return fmt.Errorf("failed to create oauth session: %w", err)
	}
	session.IsActive = true
	return nil
}

func (r *SessionRepo) FindActive(ctx context.Context, state string, platform domain.Platform, notBefore time.Time) (session *domain.OAuthSession, err error) {
	start := time.Now()
	defer func() { observe("sessions_find_active", start, err) }()

	session, err = scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM oauth_sessions WHERE state = $1 AND platform = $2 AND is_active = TRUE`,
		state, platform))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth session: %w", err)
	}

	// An over-age session is burned on sight so the same state cannot be
	// retried later. Exactly at the boundary counts as expired.
	if !session.CreatedAt.After(notBefore) {
		if _, err := r.pool.Exec(ctx,
			`UPDATE oauth_sessions SET is_active = FALSE WHERE state = $1`, state); err != nil {
			return nil, fmt.Errorf("failed to deactivate expired session: %w", err)
		}
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

func (r *SessionRepo) Complete(ctx context.Context, state string, completedAt time.Time) (err error) {
	start := time.Now()
	defer func() { observe("sessions_complete", start, err) }()

	// Compare-and-set on is_active: exactly one caller per session wins.
	tag, err := r.pool.Exec(ctx, `
		UPDATE oauth_sessions
		SET is_active = FALSE, completed_at = $1
		WHERE state = $2 AND is_active = TRUE
	`, completedAt, state)
	if err != nil {
		return fmt.Errorf("failed to complete oauth session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) SweepExpired(ctx context.Context, cutoff time.Time) (count int64, err error) {
	start := time.Now()
	defer func() { observe("sessions_sweep_expired", start, err) }()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM oauth_sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
