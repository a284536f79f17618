// Package postgres provides the PostgreSQL persistence layer: connection
// pooling, embedded tern migrations guarded by an advisory lock, and the
// repository implementations for connections, OAuth sessions, and the audit
// log. Repositories store token ciphertext as handed to them; they never see
// plaintext.
package postgres
