// Package oauth implements the provider-facing half of the connection hub:
// the static platform endpoint registry, state and PKCE verifier generation,
// authorization URL construction, and the HTTP client for token exchange and
// user info fetches. Provider calls go through a per-platform circuit
// breaker so one failing provider does not starve the rest.
package oauth
