// Package redis provides a Redis-backed OAuth session store and the circuit
// breaker hook shared by all Redis operations. The tracker is a drop-in
// alternative to the PostgreSQL session repository for deployments that want
// native TTL expiry instead of a sweeper.
package redis
