package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform means the platform is not one of the fixed set.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrNotConfigured means the platform has no client credentials configured.
	ErrNotConfigured = errors.New("platform not configured")

	// ErrProviderDenied means the provider returned an error on callback,
	// typically because the user declined authorization.
	ErrProviderDenied = errors.New("provider denied authorization")

	// ErrInvalidOrExpiredSession means the callback state did not match an
	// active, non-expired OAuth session.
	ErrInvalidOrExpiredSession = errors.New("invalid or expired oauth session")

	// ErrTokenExchangeFailed means the authorization code could not be
	// exchanged for tokens.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrDecryptFailed means a stored token could not be decrypted.
	ErrDecryptFailed = errors.New("stored token decrypt failed")

	// ErrConnectionNotFound and ErrSessionNotFound are storage-level lookups
	// that came back empty.
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSessionNotFound    = errors.New("session not found")
)

// ProviderDeniedError carries the provider's error code and description from
// a failed callback. It matches ErrProviderDenied via errors.Is.
type ProviderDeniedError struct {
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider denied authorization: %s", e.Code)
	}
	return fmt.Sprintf("provider denied authorization: %s: %s", e.Code, e.Description)
}

func (e *ProviderDeniedError) Unwrap() error {
	return ErrProviderDenied
}
