package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oauthhub/oauthhub/internal/domain"
	"github.com/oauthhub/oauthhub/internal/metrics"
)

// connectionColumns must match the Scan order in scanConnection.
const connectionColumns = `id, user_id, platform, status, access_token, refresh_token,
	platform_user_id, platform_username, platform_email, token_expires_at, scope_granted,
	last_error_message, error_count, created_at, updated_at, last_used_at`

// ConnectionRepo implements domain.ConnectionRepository backed by PostgreSQL.
type ConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewConnectionRepo(pool *pgxpool.Pool) *ConnectionRepo {
	return &ConnectionRepo{pool: pool}
}

func scanConnection(row pgx.Row) (*domain.PlatformConnection, error) {
	var c domain.PlatformConnection
	err := row.Scan(
		&c.ID, &c.UserID, &c.Platform, &c.Status,
		&c.EncryptedAccessToken, &c.EncryptedRefreshToken,
		&c.PlatformUserID, &c.PlatformUsername, &c.PlatformEmail,
		&c.TokenExpiresAt, &c.ScopeGranted,
		&c.LastErrorMessage, &c.ErrorCount,
		&c.CreatedAt, &c.UpdatedAt, &c.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func observe(query string, start time.Time, err error) {
	metrics.DBQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		metrics.DBErrorsTotal.WithLabelValues(query).Inc()
	}
}

func (r *ConnectionRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, platform domain.Platform) (conn *domain.PlatformConnection, err error) {
	start := time.Now()
	defer func() { observe("connections_get_or_create", start, err) }()

	// ON CONFLICT DO NOTHING plus re-select converges concurrent callers on
	// the same row without clobbering an existing record.
	_, err = r.pool.Exec(ctx, `
		INSERT INTO platform_connections (user_id, platform)
		VALUES ($1, $2)
		ON CONFLICT (user_id, platform) DO NOTHING
	`, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	conn, err = scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE user_id = $1 AND platform = $2`,
		userID, platform))
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepo) Get(ctx context.Context, userID uuid.UUID, platform domain.Platform) (conn *domain.PlatformConnection, err error) {
	start := time.Now()
	defer func() { observe("connections_get", start, err) }()

	conn, err = scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE user_id = $1 AND platform = $2`,
		userID, platform))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ConnectionStatus) (err error) {
	start := time.Now()
	defer func() { observe("connections_update_status", start, err) }()

	tag, err := r.pool.Exec(ctx, `
		UPDATE platform_connections
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionRepo) SetConnected(ctx context.Context, id uuid.UUID, fields domain.ConnectedFields) (err error) {
	start := time.Now()
	defer func() { observe("connections_set_connected", start, err) }()

	scope := fields.ScopeGranted
	if scope == nil {
		scope = []string{}
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE platform_connections
		SET status = 'connected',
			access_token = $1,
			refresh_token = $2,
			token_expires_at = $3,
			platform_user_id = $4,
			platform_username = $5,
			platform_email = $6,
			scope_granted = $7,
			last_error_message = '',
			error_count = 0,
			last_used_at = $8,
			updated_at = NOW()
		WHERE id = $9
	`, fields.EncryptedAccessToken, fields.EncryptedRefreshToken, fields.TokenExpiresAt,
		fields.PlatformUserID, fields.PlatformUsername, fields.PlatformEmail,
		scope, fields.LastUsedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark connection connected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionRepo) SetError(ctx context.Context, id uuid.UUID, message string) (err error) {
	start := time.Now()
	defer func() { observe("connections_set_error", start, err) }()

	// Tokens are deliberately left in place so an intermittent failure does
	// not destroy a previously working connection.
	tag, err := r.pool.Exec(ctx, `
		UPDATE platform_connections
		SET status = 'error',
			last_error_message = $1,
			error_count = error_count + 1,
			updated_at = NOW()
		WHERE id = $2
	`, message, id)
	if err != nil {
		return fmt.Errorf("failed to record connection error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionRepo) Disconnect(ctx context.Context, id uuid.UUID) (err error) {
	start := time.Now()
	defer func() { observe("connections_disconnect", start, err) }()

	tag, err := r.pool.Exec(ctx, `
		UPDATE platform_connections
		SET status = 'disconnected',
			access_token = '',
			refresh_token = '',
			token_expires_at = NULL,
			platform_user_id = '',
			platform_username = '',
			platform_email = '',
			scope_granted = '{}',
			last_error_message = '',
			error_count = 0,
			last_used_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to disconnect connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}
