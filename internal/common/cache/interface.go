package cache

import (
	"context"
)

// SetCache is the subset of cache operations used to persist decision sets.
// Keeping it small lets tests swap Redis for miniredis or an in-memory fake.
type SetCache interface {
	SetOps

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// SetOps defines set operations
type SetOps interface {
	// SAdd adds one or more members to a set
	SAdd(ctx context.Context, key string, members ...interface{}) error

	// SMembers returns all members of a set
	SMembers(ctx context.Context, key string) ([]string, error)
}

// ReplaceSet atomically swaps the members of key; an empty members list deletes the key.
type ReplaceSet interface {
	ReplaceSet(ctx context.Context, key string, members []string) error
}
