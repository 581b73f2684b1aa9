// Package cache stores rendered artifacts and layout results between runs.
//
// The pipeline renders the same dataset many times with the same options:
// every `stripesankey render` of an unchanged file and every diagram request
// the HTTP host serves for an idle session. Entries are keyed by a hash of
// the dataset plus the options that affect the output, so a hit is always
// byte-identical to a fresh render.
//
// # Backends
//
//   - [NullCache]: caching disabled
//   - [FileCache]: snappy-compressed entries under a directory, for the CLI
//   - [RedisCache]: shared entries in redis, for the HTTP host
//
// Wrap any backend with [Instrument] to report hits, misses and writes to
// the registered observability hooks.
//
// # Keys
//
// A [Keyer] turns a dataset hash and options into a key. [ScopedKeyer]
// prefixes every key, which separates tenants sharing one redis.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is reported
	// as a miss (hit == false) with a nil error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Default entry lifetimes.
const (
	TTLLayout   = 7 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)
