// Package app contains the application layer: the service orchestrating
// OAuth flows, connection lifecycle, token access, and the audit trail
// across the domain repositories, the provider registry, and the token
// vault.
package app
