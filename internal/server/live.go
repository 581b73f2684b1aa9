package server

import (
	"context"
	"errors"
	"sync"
	"time"

	sserrors "github.com/matzehuels/stripesankey/pkg/errors"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/session"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// liveSession is a session with its widget attached.
type liveSession struct {
	mu   sync.Mutex // guards sess and serialises writes to the store
	sess *session.Session
	w    *widget.Widget

	unsubscribe func()
	cancelWatch func()
}

func (ls *liveSession) stop() {
	if ls.unsubscribe != nil {
		ls.unsubscribe()
	}
	if ls.cancelWatch != nil {
		ls.cancelWatch()
	}
}

func (ls *liveSession) expired() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.sess.IsExpired()
}

// open returns the live session for id, loading it from the store when
// this host has not served it yet.
func (s *Server) open(ctx context.Context, id string) (*liveSession, error) {
	if err := sserrors.ValidateSessionID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ls, ok := s.live[id]
	s.mu.Unlock()
	if ok && !ls.expired() {
		return ls, nil
	}
	if ok {
		s.drop(id)
	}

	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, sserrors.New(sserrors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	if err != nil {
		return nil, sserrors.Wrap(sserrors.ErrCodeStorage, err, "load session")
	}
	return s.attach(sess), nil
}

// attach creates the widget of sess and wires it to the store's
// broadcasts. If another request attached the session first, that one
// wins.
func (s *Server) attach(sess *session.Session) *liveSession {
	ls := &liveSession{
		sess: sess,
		w:    widget.New(sess.Props, widget.WithLogger(s.logger.With("session", sess.ID))),
	}

	if n, ok := s.store.(session.Notifier); ok {
		id := sess.ID
		ls.unsubscribe = ls.w.Subscribe(func(snap selection.Snapshot) {
			ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
			defer cancel()
			if err := n.Publish(ctx, id, session.Update{Origin: s.origin, Selection: snap}); err != nil {
				s.logger.Warn("publish selection failed", "session", id, "err", err)
			}
		})
		ch, cancel, err := n.Subscribe(s.ctx, id)
		if err != nil {
			s.logger.Warn("subscribe failed", "session", id, "err", err)
		} else {
			ls.cancelWatch = cancel
			go s.follow(ls, ch)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[sess.ID]; ok {
		ls.stop()
		return existing
	}
	s.live[sess.ID] = ls
	return ls
}

// follow applies selections committed by other hosts.
func (s *Server) follow(ls *liveSession, ch <-chan session.Update) {
	for u := range ch {
		if u.Origin == s.origin {
			continue
		}
		if ls.w.Props().SelectedFlow.Same(u.Selection) {
			continue
		}
		ls.w.SetSelection(u.Selection)
		s.logger.Debug("applied remote selection", "session", ls.sess.ID, "flow", u.Selection.String())
	}
}

// persist writes the widget's props back to the store and extends the
// session's lifetime.
func (s *Server) persist(ctx context.Context, ls *liveSession) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.sess.Props = ls.w.Props()
	ls.sess.Touch(s.ttl)
	if err := s.store.Set(ctx, ls.sess); err != nil {
		return sserrors.Wrap(sserrors.ErrCodeStorage, err, "save session")
	}
	return nil
}

func (s *Server) drop(id string) {
	s.mu.Lock()
	ls, ok := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()
	if ok {
		ls.stop()
	}
}

func (s *Server) evictExpired() {
	s.mu.Lock()
	var expired []string
	for id, ls := range s.live {
		if ls.expired() {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		s.drop(id)
	}
}
