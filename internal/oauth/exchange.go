package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/oauthhub/oauthhub/internal/domain"
	"github.com/oauthhub/oauthhub/internal/metrics"
)

const (
	httpCallTimeout = 30 * time.Second

	// maxErrorBodyBytes bounds how much of a provider error response is
	// retained for diagnostics.
	maxErrorBodyBytes = 2048
)

// ErrorKind classifies a token exchange failure.
type ErrorKind string

const (
	ErrorKindNetwork   ErrorKind = "network"
	ErrorKindStatus    ErrorKind = "status"
	ErrorKindMalformed ErrorKind = "malformed"
)

// ExchangeError describes a failed token exchange. It matches
// domain.ErrTokenExchangeFailed via errors.Is.
type ExchangeError struct {
	Platform domain.Platform
	Kind     ErrorKind
	Status   int
	Body     string
	Err      error
}

func (e *ExchangeError) Error() string {
	switch e.Kind {
	case ErrorKindStatus:
		return fmt.Sprintf("token exchange failed for %s: provider returned status %d", e.Platform, e.Status)
	case ErrorKindMalformed:
		return fmt.Sprintf("token exchange failed for %s: malformed token response", e.Platform)
	default:
		return fmt.Sprintf("token exchange failed for %s: %v", e.Platform, e.Err)
	}
}

func (e *ExchangeError) Unwrap() error {
	return domain.ErrTokenExchangeFailed
}

// TokenResult holds the outcome of a successful token exchange.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Scope        []string
}

// Profile holds the subset of provider user info the hub stores.
type Profile struct {
	ID       string
	Username string
	Email    string
}

// Client performs token exchanges and user info fetches against the
// provider HTTP APIs. A circuit breaker per platform keeps one failing
// provider from consuming capacity meant for the others.
type Client struct {
	registry *Registry
	http     *http.Client
	breakers map[domain.Platform]circuitbreaker.CircuitBreaker[any]
}

func NewClient(registry *Registry) *Client {
	breakers := make(map[domain.Platform]circuitbreaker.CircuitBreaker[any], len(domain.Platforms()))
	for _, platform := range domain.Platforms() {
		breakers[platform] = newPlatformBreaker(platform)
	}

	return &Client{
		registry: registry,
		http:     &http.Client{Timeout: httpCallTimeout},
		breakers: breakers,
	}
}

// newPlatformBreaker builds a circuit breaker with the following settings:
// - WithFailureRateThreshold: 60% failure rate, min 5 requests, 60s rolling window
// - WithDelay: 30s before transitioning from open to half-open
// - WithSuccessThreshold: 1 successful request in half-open to close
func newPlatformBreaker(platform domain.Platform) circuitbreaker.CircuitBreaker[any] {
	component := "oauth_" + platform.String()
	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 60*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", component,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)

			metrics.CircuitBreakerStateChanges.WithLabelValues(component, e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(component).Set(stateToFloat(e.NewState))
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// Exchange trades an authorization code for tokens. codeVerifier is sent
// only when non-empty.
func (c *Client) Exchange(ctx context.Context, platform domain.Platform, code, redirectURI, codeVerifier string) (*TokenResult, error) {
	endpoints, err := c.registry.Endpoints(platform)
	if err != nil {
		return nil, err
	}
	creds, err := c.registry.Credentials(platform)
	if err != nil {
		return nil, err
	}

	data := url.Values{}
	data.Set("client_id", creds.ClientID)
	data.Set("client_secret", creds.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("grant_type", "authorization_code")
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoints.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.do(platform, req)
	if err != nil {
		metrics.TokenExchangesTotal.WithLabelValues(platform.String(), string(ErrorKindNetwork)).Inc()
		return nil, &ExchangeError{Platform: platform, Kind: ErrorKindNetwork, Err: err}
	}
	defer resp.Body.Close()
	metrics.TokenExchangeDuration.WithLabelValues(platform.String()).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		metrics.TokenExchangesTotal.WithLabelValues(platform.String(), string(ErrorKindStatus)).Inc()
		return nil, &ExchangeError{Platform: platform, Kind: ErrorKindStatus, Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken  string          `json:"access_token"`
		RefreshToken string          `json:"refresh_token"`
		ExpiresIn    int             `json:"expires_in"`
		Scope        json.RawMessage `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		metrics.TokenExchangesTotal.WithLabelValues(platform.String(), string(ErrorKindMalformed)).Inc()
		return nil, &ExchangeError{Platform: platform, Kind: ErrorKindMalformed, Err: err}
	}
	if tokenResp.AccessToken == "" {
		metrics.TokenExchangesTotal.WithLabelValues(platform.String(), string(ErrorKindMalformed)).Inc()
		return nil, &ExchangeError{Platform: platform, Kind: ErrorKindMalformed, Err: fmt.Errorf("response has no access_token")}
	}

	metrics.TokenExchangesTotal.WithLabelValues(platform.String(), "success").Inc()

	return &TokenResult{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresIn:    tokenResp.ExpiresIn,
		Scope:        parseScope(tokenResp.Scope),
	}, nil
}

// FetchUserInfo retrieves the provider profile for the token's owner. A
// failure here is not fatal to the flow; callers treat it as best-effort.
func (c *Client) FetchUserInfo(ctx context.Context, platform domain.Platform, accessToken string) (*Profile, error) {
	endpoints, err := c.registry.Endpoints(platform)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoints.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(platform, req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s user info API returned status %d", platform, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode user info response: %w", err)
	}

	return parseProfile(raw), nil
}

// do routes the request through the platform's circuit breaker.
func (c *Client) do(platform domain.Platform, req *http.Request) (*http.Response, error) {
	cb, ok := c.breakers[platform]
	if !ok {
		return c.http.Do(req)
	}

	if !cb.TryAcquirePermit() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", platform, circuitbreaker.ErrOpen)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cb.RecordError(err)
		return nil, err
	}
	// Provider 5xx responses count against the breaker; 4xx do not, since
	// they are request-specific and say nothing about provider health.
	if resp.StatusCode >= http.StatusInternalServerError {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return resp, nil
}

// parseScope accepts the two shapes providers use: a single delimited
// string (space or comma separated) or a JSON array of strings.
func parseScope(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return splitScope(single)
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}

	return nil
}

func splitScope(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// parseProfile pulls the identity fields out of a provider response.
// Some providers nest the payload under "data" (and "data.user").
func parseProfile(raw map[string]any) *Profile {
	if data, ok := raw["data"].(map[string]any); ok {
		if user, ok := data["user"].(map[string]any); ok {
			raw = user
		} else {
			raw = data
		}
	}

	profile := Profile{
		ID:    stringField(raw, "id", "open_id", "sub"),
		Email: stringField(raw, "email"),
	}
	profile.Username = stringField(raw, "username", "name", "display_name", "login")

	return &profile
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
