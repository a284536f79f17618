package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oauthhub/oauthhub/internal/domain"
)

// LogRepo implements domain.LogRepository backed by PostgreSQL.
type LogRepo struct {
	pool *pgxpool.Pool
}

func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

func (r *LogRepo) Record(ctx context.Context, entry *domain.ConnectionLog) (err error) {
	start := time.Now()
	defer func() { observe("logs_record", start, err) }()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO connection_logs (connection_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.ConnectionID, entry.Action, entry.Details, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err = row.Scan(&entry.ID); err != nil {
		return fmt.Errorf("failed to record connection log: %w", err)
	}
	return nil
}

func (r *LogRepo) ListByConnection(ctx context.Context, connectionID uuid.UUID) (entries []*domain.ConnectionLog, err error) {
	start := time.Now()
	defer func() { observe("logs_list_by_connection", start, err) }()

	rows, err := r.pool.Query(ctx, `
		SELECT id, connection_id, action, details, ip_address, user_agent, created_at
		FROM connection_logs
		WHERE connection_id = $1
		ORDER BY created_at DESC, id DESC
	`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connection logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.ConnectionLog
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.Action, &e.Details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection log: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connection logs: %w", err)
	}
	return entries, nil
}
