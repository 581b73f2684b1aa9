// Package session stores the state of hosted diagrams between requests.
//
// A session is one diagram the HTTP host serves: its props, including the
// dataset and the committed selection, plus expiry metadata. The host keeps
// a live widget per session and writes the props back to the store after
// every committed change, so a restarted host (or a second host sharing the
// backend) resumes where the user left off.
//
// # Backends
//
//   - [MemoryStore]: in-process, for development and tests
//   - [FileStore]: one JSON file per session
//   - [RedisStore]: shared across hosts, with selection pub/sub
//   - [MongoStore]: shared documents with a TTL index
//
// Stores that can broadcast selection changes also implement [Notifier].
//
// # Usage
//
//	store := session.NewMemoryStore()
//	sess := session.New(props, session.DefaultTTL)
//	if err := store.Set(ctx, sess); err != nil {
//	    return err
//	}
//	sess, err := store.Get(ctx, id)
//	if errors.Is(err, session.ErrNotFound) {
//	    // missing or expired
//	}
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// DefaultTTL is the lifetime of an idle session.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is one hosted diagram.
type Session struct {
	ID        string       `json:"id"`
	Props     widget.Props `json:"props"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// New creates a session with a fresh UUID.
func New(props widget.Props, ttl time.Duration) *Session {
	now := time.Now().UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Session{
		ID:        uuid.NewString(),
		Props:     props,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Touch records an update and extends the expiry by ttl from now.
func (s *Session) Touch(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.UpdatedAt = time.Now().UTC()
	s.ExpiresAt = s.UpdatedAt.Add(ttl)
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID. Missing and expired sessions return
	// ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session, replacing any previous version.
	Set(ctx context.Context, sess *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions. Backends that expire entries on
	// their own may do nothing.
	Cleanup(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Notifier broadcasts selection commits to every host watching a session.
type Notifier interface {
	// Publish announces a committed selection.
	Publish(ctx context.Context, id string, u Update) error

	// Subscribe delivers updates published for id until cancel is called
	// or ctx ends. The channel is closed afterwards.
	Subscribe(ctx context.Context, id string) (ch <-chan Update, cancel func(), err error)
}

// Update is one broadcast selection. Origin names the publishing host so
// it can ignore its own updates.
type Update struct {
	Origin    string             `json:"origin"`
	Selection selection.Snapshot `json:"selection"`
}
