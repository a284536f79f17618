package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/oauthhub/oauthhub/internal/domain"
)

const sessionKeyPrefix = "oauth_session:"

// SessionTracker implements domain.SessionRepository backed by Redis.
// Each session lives under its state key with a native TTL, so abandoned
// sessions age out without a sweeper. Complete uses GETDEL as the
// single-winner claim.
type SessionTracker struct {
	rdb *goredis.Client
}

func NewSessionTracker(rdb *goredis.Client) *SessionTracker {
	return &SessionTracker{rdb: rdb}
}

// storedSession is the wire form of a session in Redis.
type storedSession struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Platform     domain.Platform `json:"platform"`
	CodeVerifier string          `json:"code_verifier,omitempty"`
	RedirectURI  string          `json:"redirect_uri"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (t *SessionTracker) Create(ctx context.Context, session *domain.OAuthSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	payload, err := json.Marshal(storedSession{
		ID:           session.ID,
		UserID:       session.UserID,
		Platform:     session.Platform,
		CodeVerifier: session.CodeVerifier,
		RedirectURI:  session.RedirectURI,
		CreatedAt:    session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// NX enforces state uniqueness; the TTL bounds the session lifetime.
	ok, err := t.rdb.SetNX(ctx, sessionKey(session.State), payload, domain.SessionTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session state already exists")
	}
	session.IsActive = true
	return nil
}

func (t *SessionTracker) FindActive(ctx context.Context, state string, platform domain.Platform, notBefore time.Time) (*domain.OAuthSession, error) {
	payload, err := t.rdb.Get(ctx, sessionKey(state)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if stored.Platform != platform {
		return nil, domain.ErrSessionNotFound
	}

	// The TTL normally handles expiry; the cutoff check covers clock skew
	// between writer and reader. A stale session is deleted on sight, and
	// exactly at the boundary counts as expired.
	if !stored.CreatedAt.After(notBefore) {
		if err := t.rdb.Del(ctx, sessionKey(state)).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove expired session: %w", err)
		}
		return nil, domain.ErrSessionNotFound
	}

	return &domain.OAuthSession{
		ID:           stored.ID,
		UserID:       stored.UserID,
		Platform:     stored.Platform,
		State:        state,
		CodeVerifier: stored.CodeVerifier,
		RedirectURI:  stored.RedirectURI,
		IsActive:     true,
		CreatedAt:    stored.CreatedAt,
	}, nil
}

func (t *SessionTracker) Complete(ctx context.Context, state string, completedAt time.Time) error {
	// GETDEL is atomic: exactly one concurrent caller receives the value,
	// everyone else sees redis.Nil.
	_, err := t.rdb.GetDel(ctx, sessionKey(state)).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

func (t *SessionTracker) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var swept int64
	var cursor uint64

	for {
		select {
		case <-ctx.Done():
			return swept, fmt.Errorf("sweep cancelled after removing %d sessions: %w", swept, ctx.Err())
		default:
		}

		keys, nextCursor, err := t.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return swept, fmt.Errorf("scan failed: %w", err)
		}

		for _, key := range keys {
			if t.sweepKey(ctx, key, cutoff) {
				swept++
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return swept, nil
}

func (t *SessionTracker) sweepKey(ctx context.Context, key string, cutoff time.Time) bool {
	payload, err := t.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Error("SweepExpired: failed to read key", "key", key, "error", err)
		}
		return false
	}

	var stored storedSession
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		slog.Warn("SweepExpired: removing unreadable session", "key", key, "error", err)
		return t.rdb.Del(ctx, key).Err() == nil
	}

	if !stored.CreatedAt.Before(cutoff) {
		return false
	}
	return t.rdb.Del(ctx, key).Err() == nil
}

func sessionKey(state string) string {
	return sessionKeyPrefix + state
}
