package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oauthhub/oauthhub/internal/domain"
	"github.com/oauthhub/oauthhub/internal/oauth"
)

// --- Mock implementations ---

type mockConnectionRepo struct {
	getOrCreateFn  func(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.PlatformConnection, error)
	getFn          func(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.PlatformConnection, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, status domain.ConnectionStatus) error
	setConnectedFn func(ctx context.Context, id uuid.UUID, fields domain.ConnectedFields) error
	setErrorFn     func(ctx context.Context, id uuid.UUID, message string) error
	disconnectFn   func(ctx context.Context, id uuid.UUID) error
}

func (m *mockConnectionRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.PlatformConnection, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, userID, platform)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockConnectionRepo) Get(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.PlatformConnection, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, platform)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockConnectionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ConnectionStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockConnectionRepo) SetConnected(ctx context.Context, id uuid.UUID, fields domain.ConnectedFields) error {
	if m.setConnectedFn != nil {
		return m.setConnectedFn(ctx, id, fields)
	}
	return nil
}

func (m *mockConnectionRepo) SetError(ctx context.Context, id uuid.UUID, message string) error {
	if m.setErrorFn != nil {
		return m.setErrorFn(ctx, id, message)
	}
	return nil
}

func (m *mockConnectionRepo) Disconnect(ctx context.Context, id uuid.UUID) error {
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, id)
	}
	return nil
}

type mockSessionRepo struct {
	createFn       func(ctx context.Context, session *domain.OAuthSession) error
	findActiveFn   func(ctx context.Context, state string, platform domain.Platform, notBefore time.Time) (*domain.OAuthSession, error)
	completeFn     func(ctx context.Context, state string, completedAt time.Time) error
	sweepExpiredFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *domain.OAuthSession) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindActive(ctx context.Context, state string, platform domain.Platform, notBefore time.Time) (*domain.OAuthSession, error) {
	if m.findActiveFn != nil {
		return m.findActiveFn(ctx, state, platform, notBefore)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) Complete(ctx context.Context, state string, completedAt time.Time) error {
	if m.completeFn != nil {
		return m.completeFn(ctx, state, completedAt)
	}
	return nil
}

func (m *mockSessionRepo) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.sweepExpiredFn != nil {
		return m.sweepExpiredFn(ctx, cutoff)
	}
	return 0, nil
}

// mockLogRepo records entries in memory so tests can assert the audit order.
type mockLogRepo struct {
	recordFn func(ctx context.Context, entry *domain.ConnectionLog) error
	entries  []*domain.ConnectionLog
}

func (m *mockLogRepo) Record(ctx context.Context, entry *domain.ConnectionLog) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, entry)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockLogRepo) ListByConnection(_ context.Context, connectionID uuid.UUID) ([]*domain.ConnectionLog, error) {
	var out []*domain.ConnectionLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ConnectionID == connectionID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockLogRepo) actions() []domain.LogAction {
	out := make([]domain.LogAction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type mockExchanger struct {
	exchangeFn      func(ctx context.Context, platform domain.Platform, code, redirectURI, codeVerifier string) (*oauth.TokenResult, error)
	fetchUserInfoFn func(ctx context.Context, platform domain.Platform, accessToken string) (*oauth.Profile, error)
}

func (m *mockExchanger) Exchange(ctx context.Context, platform domain.Platform, code, redirectURI, codeVerifier string) (*oauth.TokenResult, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, platform, code, redirectURI, codeVerifier)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockExchanger) FetchUserInfo(ctx context.Context, platform domain.Platform, accessToken string) (*oauth.Profile, error) {
	if m.fetchUserInfoFn != nil {
		return m.fetchUserInfoFn(ctx, platform, accessToken)
	}
	return &oauth.Profile{}, nil
}
