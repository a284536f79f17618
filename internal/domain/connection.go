package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus is the lifecycle state of a platform connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusExpired      ConnectionStatus = "expired"
	StatusError        ConnectionStatus = "error"
)

// PlatformConnection is the per-user, per-platform connection record. At most
// one exists per (user, platform) pair; it is created lazily and survives
// disconnection as a status change.
//
// Token fields hold ciphertext only. Encryption and decryption happen in the
// service layer; plaintext tokens never reach storage.
type PlatformConnection struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Platform Platform
	Status   ConnectionStatus

	EncryptedAccessToken  string
	EncryptedRefreshToken string

	PlatformUserID   string
	PlatformUsername string
	PlatformEmail    string

	TokenExpiresAt *time.Time
	ScopeGranted   []string

	LastErrorMessage string
	ErrorCount       int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt *time.Time
}

// TokenExpired reports whether the stored token's expiry has passed. A
// connection without an expiry never expires.
func (c *PlatformConnection) TokenExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && now.After(*c.TokenExpiresAt)
}

// ConnectedFields is the full set of fields written when a connection
// transitions to connected after a successful token exchange.
type ConnectedFields struct {
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	TokenExpiresAt        *time.Time
	PlatformUserID        string
	PlatformUsername      string
	PlatformEmail         string
	ScopeGranted          []string
	LastUsedAt            time.Time
}

// StatusSnapshot is the read model for a single platform's connection state.
type StatusSnapshot struct {
	Platform         Platform         `json:"platform"`
	Status           ConnectionStatus `json:"status"`
	IsConnected      bool             `json:"is_connected"`
	PlatformUsername string           `json:"platform_username,omitempty"`
	PlatformEmail    string           `json:"platform_email,omitempty"`
	ConnectedAt      *time.Time       `json:"connected_at,omitempty"`
	LastUsedAt       *time.Time       `json:"last_used_at,omitempty"`
	TokenExpiresAt   *time.Time       `json:"token_expires_at,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
}

// ConnectionRepository is the persistence contract for platform connections.
type ConnectionRepository interface {
	// GetOrCreate returns the connection for (userID, platform), creating a
	// disconnected one if none exists. Concurrent callers converge on the
	// same row via the uniqueness constraint.
	GetOrCreate(ctx context.Context, userID uuid.UUID, platform Platform) (*PlatformConnection, error)

	// Get returns the connection for (userID, platform) or
	// ErrConnectionNotFound.
	Get(ctx context.Context, userID uuid.UUID, platform Platform) (*PlatformConnection, error)

	// UpdateStatus changes the lifecycle status only.
	UpdateStatus(ctx context.Context, id uuid.UUID, status ConnectionStatus) error

	// SetConnected transitions to connected, writing tokens and profile data
	// and resetting the error state.
	SetConnected(ctx context.Context, id uuid.UUID, fields ConnectedFields) error

	// SetError transitions to error, recording the message and incrementing
	// the error count. Stored tokens are preserved.
	SetError(ctx context.Context, id uuid.UUID, message string) error

	// Disconnect clears tokens and profile data and sets status disconnected.
	Disconnect(ctx context.Context, id uuid.UUID) error
}
