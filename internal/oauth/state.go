package oauth

import (
	"crypto/rand"
	"fmt"
)

const (
	stateLength    = 32
	verifierLength = 64

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewState generates a cryptographically random state parameter: 32
// characters from [A-Za-z0-9].
func NewState() (string, error) {
	return randomToken(stateLength)
}

// NewCodeVerifier generates an independent PKCE code verifier: 64 characters
// from [A-Za-z0-9]. It is never derived from the state.
func NewCodeVerifier() (string, error) {
	return randomToken(verifierLength)
}

func randomToken(length int) (string, error) {
	// Rejection sampling keeps the character distribution uniform:
	// 62*4 = 248, so bytes >= 248 are discarded instead of biasing the
	// low end of the alphabet.
	const limit = byte(len(alphabet) * 4)

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
