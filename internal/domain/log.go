package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LogAction categorizes audit trail entries.
type LogAction string

const (
	ActionInitiated        LogAction = "initiated"
	ActionCallbackReceived LogAction = "callback_received"
	ActionTokenExchanged   LogAction = "token_exchanged"
	ActionConnected        LogAction = "connected"
	ActionDisconnected     LogAction = "disconnected"
	ActionTokenRefreshed   LogAction = "token_refreshed"
	ActionError            LogAction = "error"
)

// ConnectionLog is an immutable audit entry attached to a connection.
// Entries are never updated or deleted individually; they cascade away with
// their parent connection.
type ConnectionLog struct {
	ID           int64
	ConnectionID uuid.UUID
	Action       LogAction
	Details      string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

// RequestMeta carries client attribution for audit entries. Both fields may
// be empty when the operation has no originating request.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LogRepository is the append-only persistence contract for audit entries.
type LogRepository interface {
	Record(ctx context.Context, entry *ConnectionLog) error

	// ListByConnection returns entries newest-first.
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*ConnectionLog, error)
}
