package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/oauthhub/oauthhub/internal/crypto"
	"github.com/oauthhub/oauthhub/internal/domain"
	"github.com/oauthhub/oauthhub/internal/metrics"
	"github.com/oauthhub/oauthhub/internal/oauth"
)

const (
	// codePrefixLen is how much of an authorization code the audit trail
	// retains. Enough to correlate, never enough to replay.
	codePrefixLen = 10

	// maxUserAgentLen bounds audit entries against oversized client headers.
	maxUserAgentLen = 500
)

// TokenExchanger is the provider-facing client the service depends on.
type TokenExchanger interface {
	Exchange(ctx context.Context, platform domain.Platform, code, redirectURI, codeVerifier string) (*oauth.TokenResult, error)
	FetchUserInfo(ctx context.Context, platform domain.Platform, accessToken string) (*oauth.Profile, error)
}

// CallbackParams carries the query parameters a provider sends to the
// callback endpoint.
type CallbackParams struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// Service is the application layer — the only component that references
// multiple domain components. It orchestrates all use cases.
type Service struct {
	connections domain.ConnectionRepository
	sessions    domain.SessionRepository
	logs        domain.LogRepository
	registry    *oauth.Registry
	exchanger   TokenExchanger
	vault       crypto.Service
	clock       clockwork.Clock

	callbackBaseURL string
	connectGroup    singleflight.Group
}

// NewService creates the application layer service.
func NewService(
	connections domain.ConnectionRepository,
	sessions domain.SessionRepository,
	logs domain.LogRepository,
	registry *oauth.Registry,
	exchanger TokenExchanger,
	vault crypto.Service,
	callbackBaseURL string,
	clock clockwork.Clock,
) *Service {
	return &Service{
		connections:     connections,
		sessions:        sessions,
		logs:            logs,
		registry:        registry,
		exchanger:       exchanger,
		vault:           vault,
		callbackBaseURL: callbackBaseURL,
		clock:           clock,
	}
}

func (s *Service) callbackURL(platform domain.Platform) string {
	return fmt.Sprintf("%s/oauth/callback/%s", s.callbackBaseURL, platform)
}

// getOrCreateConnection collapses concurrent lazy creations for the same
// (user, platform) pair onto one database round trip.
func (s *Service) getOrCreateConnection(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.PlatformConnection, error) {
	key := userID.String() + ":" + platform.String()
	v, err, _ := s.connectGroup.Do(key, func() (any, error) {
		return s.connections.GetOrCreate(ctx, userID, platform)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PlatformConnection), nil
}

// logEvent appends an audit entry. Audit failures never fail the operation
// they describe; they are logged and dropped.
func (s *Service) logEvent(ctx context.Context, connectionID uuid.UUID, action domain.LogAction, details string, meta domain.RequestMeta) {
	entry := &domain.ConnectionLog{
		ConnectionID: connectionID,
		Action:       action,
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    truncate(meta.UserAgent, maxUserAgentLen),
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.logs.Record(ctx, entry); err != nil {
		slog.Warn("Failed to record audit entry",
			"connection_id", connectionID.String(),
			"action", string(action),
			"error", err,
		)
	}
}

// InitiateOAuth starts an authorization flow and returns the provider URL to
// redirect the user to.
func (s *Service) InitiateOAuth(ctx context.Context, userID uuid.UUID, platform domain.Platform, meta domain.RequestMeta) (string, error) {
	if !platform.Valid() {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, platform)
	}
	// Check configuration before touching storage: an unconfigured platform
	// must leave no trace.
	if !s.registry.Configured(platform) {
		return "", fmt.Errorf("%w: %s", domain.ErrNotConfigured, platform)
	}

	conn, err := s.getOrCreateConnection(ctx, userID, platform)
	if err != nil {
		return "", err
	}

	state, err := oauth.NewState()
	if err != nil {
		return "", err
	}

	var codeVerifier string
	if oauth.UsesPKCE(platform) {
		codeVerifier, err = oauth.NewCodeVerifier()
		if err != nil {
			return "", err
		}
	}

	redirectURI := s.callbackURL(platform)
	session := &domain.OAuthSession{
		UserID:       userID,
		Platform:     platform,
		State:        state,
		CodeVerifier: codeVerifier,
		RedirectURI:  redirectURI,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create oauth session: %w", err)
	}

	if err := s.connections.UpdateStatus(ctx, conn.ID, domain.StatusConnecting); err != nil {
		return "", err
	}

	s.logEvent(ctx, conn.ID, domain.ActionInitiated, fmt.Sprintf("OAuth flow initiated for %s", platform), meta)

	authURL, err := s.registry.AuthorizeURL(platform, redirectURI, state, codeVerifier)
	if err != nil {
		return "", err
	}

	metrics.OAuthFlowsInitiated.WithLabelValues(platform.String()).Inc()
	slog.Info("OAuth flow initiated", "user_id", userID.String(), "platform", platform.String())

	return authURL, nil
}

// HandleCallback processes the provider redirect: it validates the state,
// exchanges the code, fetches the profile, stores encrypted tokens, and
// completes the session. Exactly one callback per session can succeed.
func (s *Service) HandleCallback(ctx context.Context, platform domain.Platform, params CallbackParams, meta domain.RequestMeta) (*domain.PlatformConnection, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, platform)
	}

	now := s.clock.Now().UTC()
	cutoff := now.Add(-domain.SessionTTL)

	if params.ErrorCode != "" {
		s.handleProviderError(ctx, platform, params, meta, now, cutoff)
		metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "denied").Inc()
		return nil, &domain.ProviderDeniedError{Code: params.ErrorCode, Description: params.ErrorDescription}
	}

	if params.Code == "" || params.State == "" {
		metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "invalid_session").Inc()
		return nil, fmt.Errorf("%w: missing code or state", domain.ErrInvalidOrExpiredSession)
	}

	session, err := s.sessions.FindActive(ctx, params.State, platform, cutoff)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "invalid_session").Inc()
			return nil, domain.ErrInvalidOrExpiredSession
		}
		return nil, err
	}

	conn, err := s.getOrCreateConnection(ctx, session.UserID, platform)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, conn.ID, domain.ActionCallbackReceived, fmt.Sprintf("Code: %s...", truncate(params.Code, codePrefixLen)), meta)

	result, err := s.exchanger.Exchange(ctx, platform, params.Code, session.RedirectURI, session.CodeVerifier)
	if err != nil {
		if setErr := s.connections.SetError(ctx, conn.ID, "Failed to exchange authorization code for access token"); setErr != nil {
			slog.Error("Failed to record exchange error", "connection_id", conn.ID.String(), "error", setErr)
		}
		metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "exchange_failed").Inc()
		return nil, err
	}

	s.logEvent(ctx, conn.ID, domain.ActionTokenExchanged, "Successfully exchanged code for token", meta)

	// Profile fetch is best-effort; a connection without profile data is
	// still a working connection.
	profile, err := s.exchanger.FetchUserInfo(ctx, platform, result.AccessToken)
	if err != nil {
		slog.Warn("Failed to fetch user info", "platform", platform.String(), "error", err)
		profile = &oauth.Profile{}
	}

	encAccess, err := s.vault.Encrypt(result.AccessToken)
	if err != nil {
		if setErr := s.connections.SetError(ctx, conn.ID, "Failed to encrypt tokens"); setErr != nil {
			slog.Error("Failed to record encryption error", "connection_id", conn.ID.String(), "error", setErr)
		}
		metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "error").Inc()
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	var encRefresh string
	if result.RefreshToken != "" {
		encRefresh, err = s.vault.Encrypt(result.RefreshToken)
		if err != nil {
			if setErr := s.connections.SetError(ctx, conn.ID, "Failed to encrypt tokens"); setErr != nil {
				slog.Error("Failed to record encryption error", "connection_id", conn.ID.String(), "error", setErr)
			}
			metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "error").Inc()
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	var expiresAt *time.Time
	if result.ExpiresIn > 0 {
		t := now.Add(time.Duration(result.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	err = s.connections.SetConnected(ctx, conn.ID, domain.ConnectedFields{
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		TokenExpiresAt:        expiresAt,
		PlatformUserID:        profile.ID,
		PlatformUsername:      profile.Username,
		PlatformEmail:         profile.Email,
		ScopeGranted:          result.Scope,
		LastUsedAt:            now,
	})
	if err != nil {
		return nil, err
	}

	// The session completion is the serialization point: losing the
	// compare-and-set means another callback already claimed this session.
	if err := s.sessions.Complete(ctx, params.State, now); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "invalid_session").Inc()
			return nil, domain.ErrInvalidOrExpiredSession
		}
		return nil, err
	}

	displayName := profile.Username
	if displayName == "" {
		displayName = "Unknown"
	}
	s.logEvent(ctx, conn.ID, domain.ActionConnected, fmt.Sprintf("Connected as %s", displayName), meta)

	metrics.OAuthCallbacksTotal.WithLabelValues(platform.String(), "connected").Inc()
	slog.Info("Platform connected", "user_id", session.UserID.String(), "platform", platform.String())

	return s.connections.Get(ctx, session.UserID, platform)
}

// handleProviderError resolves the session (when possible) so a provider
// denial is recorded in the audit trail and the state cannot be reused. The
// connection itself is not mutated; a user declining authorization is not a
// connection fault.
func (s *Service) handleProviderError(ctx context.Context, platform domain.Platform, params CallbackParams, meta domain.RequestMeta, now, cutoff time.Time) {
	slog.Warn("OAuth provider returned error",
		"platform", platform.String(),
		"error_code", params.ErrorCode,
		"error_description", params.ErrorDescription,
	)

	if params.State == "" {
		return
	}
	session, err := s.sessions.FindActive(ctx, params.State, platform, cutoff)
	if err != nil {
		return
	}
	if err := s.sessions.Complete(ctx, params.State, now); err != nil {
		return
	}

	conn, err := s.connections.Get(ctx, session.UserID, platform)
	if err != nil {
		return
	}

	msg := params.ErrorCode
	if params.ErrorDescription != "" {
		msg = fmt.Sprintf("%s: %s", params.ErrorCode, params.ErrorDescription)
	}
	s.logEvent(ctx, conn.ID, domain.ActionError, fmt.Sprintf("Provider error: %s", msg), meta)
}

// Disconnect clears a connection's tokens and profile data. Disconnecting a
// platform that was never connected is a no-op success.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID, platform domain.Platform, meta domain.RequestMeta) error {
	if !platform.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, platform)
	}

	conn, err := s.connections.Get(ctx, userID, platform)
	if errors.Is(err, domain.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.logEvent(ctx, conn.ID, domain.ActionDisconnected, "User manually disconnected", meta)

	if err := s.connections.Disconnect(ctx, conn.ID); err != nil {
		return err
	}

	metrics.ConnectionsDisconnected.WithLabelValues(platform.String()).Inc()
	slog.Info("Platform disconnected", "user_id", userID.String(), "platform", platform.String())
	return nil
}

// GetStatus returns the read model for one platform. A never-connected
// platform gets its connection created lazily in disconnected state, so a
// status read is never a hard failure. A connection whose token expiry has
// passed is persisted as expired before being reported.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.StatusSnapshot, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, platform)
	}

	conn, err := s.getOrCreateConnection(ctx, userID, platform)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if conn.Status == domain.StatusConnected && conn.TokenExpired(now) {
		if err := s.connections.UpdateStatus(ctx, conn.ID, domain.StatusExpired); err != nil {
			return nil, err
		}
		conn.Status = domain.StatusExpired
	}

	snapshot := &domain.StatusSnapshot{
		Platform:         platform,
		Status:           conn.Status,
		IsConnected:      conn.Status == domain.StatusConnected,
		PlatformUsername: conn.PlatformUsername,
		PlatformEmail:    conn.PlatformEmail,
		LastUsedAt:       conn.LastUsedAt,
		TokenExpiresAt:   conn.TokenExpiresAt,
		ErrorMessage:     conn.LastErrorMessage,
	}
	if conn.Status == domain.StatusConnected {
		connectedAt := conn.UpdatedAt
		snapshot.ConnectedAt = &connectedAt
	}
	return snapshot, nil
}

// ListConnections returns a snapshot per supported platform in display
// order, for the dashboard.
func (s *Service) ListConnections(ctx context.Context, userID uuid.UUID) ([]*domain.StatusSnapshot, error) {
	snapshots := make([]*domain.StatusSnapshot, 0, len(domain.Platforms()))
	for _, platform := range domain.Platforms() {
		snapshot, err := s.GetStatus(ctx, userID, platform)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// AccessToken decrypts and returns the stored access token for a connected
// platform. An unreadable ciphertext marks the connection errored rather
// than returning garbage.
func (s *Service) AccessToken(ctx context.Context, userID uuid.UUID, platform domain.Platform) (string, error) {
	if !platform.Valid() {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, platform)
	}

	conn, err := s.connections.Get(ctx, userID, platform)
	if err != nil {
		return "", err
	}
	if conn.Status != domain.StatusConnected || conn.EncryptedAccessToken == "" {
		return "", domain.ErrConnectionNotFound
	}

	token, err := s.vault.Decrypt(conn.EncryptedAccessToken)
	if err != nil {
		metrics.TokenDecryptFailures.WithLabelValues(platform.String()).Inc()
		if setErr := s.connections.SetError(ctx, conn.ID, "Stored token could not be decrypted"); setErr != nil {
			slog.Error("Failed to record decrypt error", "connection_id", conn.ID.String(), "error", setErr)
		}
		return "", fmt.Errorf("%w: %s", domain.ErrDecryptFailed, platform)
	}
	return token, nil
}

// ConnectionLogs returns the audit trail for a connection, newest first.
func (s *Service) ConnectionLogs(ctx context.Context, userID uuid.UUID, platform domain.Platform) ([]*domain.ConnectionLog, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, platform)
	}

	conn, err := s.connections.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	return s.logs.ListByConnection(ctx, conn.ID)
}

// SweepExpiredSessions removes every OAuth session past its TTL and returns
// how many were removed.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-domain.SessionTTL)
	count, err := s.sessions.SweepExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.SessionsSweptTotal.Add(float64(count))
	if count > 0 {
		slog.Info("Swept expired oauth sessions", "count", count)
	}
	return count, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
