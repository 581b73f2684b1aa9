package session

import (
	"context"
	"fmt"
)

// Backend names accepted by [Open].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Dir           string
	RedisAddr     string
	MongoURI      string
	MongoDatabase string
}

// Open creates the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(opts.Dir)
	case BackendRedis:
		return NewRedisStore(ctx, RedisConfig{Addr: opts.RedisAddr})
	case BackendMongo:
		return NewMongoStore(ctx, MongoConfig{URI: opts.MongoURI, Database: opts.MongoDatabase})
	}
	return nil, fmt.Errorf("unknown session store %q", opts.Backend)
}
