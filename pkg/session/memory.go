package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	broker
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if sess.IsExpired() {
		_ = s.Delete(ctx, id)
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, sess *Session) error {
	cp := *sess
	s.mu.Lock()
	s.sessions[sess.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error {
	s.broker.closeAll()
	return nil
}

// broker fans selections out to in-process subscribers.
type broker struct {
	bmu    sync.Mutex
	subs   map[string]map[int]chan Update
	nextID int
}

func (b *broker) Publish(ctx context.Context, id string, u Update) error {
	b.bmu.Lock()
	defer b.bmu.Unlock()
	for _, ch := range b.subs[id] {
		select {
		case ch <- u:
		default:
			// Slow subscriber; it will read the store on its next request.
		}
	}
	return nil
}

func (b *broker) Subscribe(ctx context.Context, id string) (<-chan Update, func(), error) {
	b.bmu.Lock()
	if b.subs == nil {
		b.subs = make(map[string]map[int]chan Update)
	}
	if b.subs[id] == nil {
		b.subs[id] = make(map[int]chan Update)
	}
	sid := b.nextID
	b.nextID++
	ch := make(chan Update, 8)
	b.subs[id][sid] = ch
	b.bmu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			b.bmu.Lock()
			defer b.bmu.Unlock()
			if c, ok := b.subs[id][sid]; ok {
				delete(b.subs[id], sid)
				close(c)
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

func (b *broker) closeAll() {
	b.bmu.Lock()
	defer b.bmu.Unlock()
	for id, subs := range b.subs {
		for sid, ch := range subs {
			close(ch)
			delete(subs, sid)
		}
		delete(b.subs, id)
	}
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Notifier = (*MemoryStore)(nil)
)
