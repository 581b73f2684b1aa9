package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// DefaultDir returns the per-user cache directory.
func DefaultDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "stripesankey")
}

// Open creates an instrumented cache for backend. An empty dir selects
// [DefaultDir].
func Open(backend, dir, redisAddr string) (Cache, error) {
	switch backend {
	case BackendNone:
		return NewNullCache(), nil
	case BackendRedis:
		if redisAddr == "" {
			return nil, fmt.Errorf("redis cache needs an address")
		}
		return Instrument(NewRedisCache(redisAddr)), nil
	case BackendFile, "":
		if dir == "" {
			dir = DefaultDir()
		}
		fc, err := NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return Instrument(fc), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", backend)
}
