// Package crypto provides authenticated encryption for OAuth tokens at rest.
//
// Tokens are sealed with AES-256-GCM and stored as hex(nonce || ciphertext ||
// tag). The key is derived from a configured secret by truncation or '0'
// padding to exactly 32 bytes. NoopService disables encryption for dev/test.
package crypto
