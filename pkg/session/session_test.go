package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

func testProps() widget.Props {
	p := widget.DefaultProps()
	p.Data = &sankey.RawData{
		Nodes: sankey.RawNodes{
			{ID: "K3_MC0", Record: sankey.RawNode{HighCount: 4}},
			{ID: "K2_MC0", Record: sankey.RawNode{HighCount: 8, MediumCount: 2}},
		},
	}
	p.MetricMode = true
	p.SelectedFlow = selection.Snapshot{Source: "K2_MC0_high", Target: "K3_MC0_high", SourceK: 2, TargetK: 3, SampleCount: 12}
	return p
}

func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	sess := New(testProps(), time.Hour)
	if err := s.Set(ctx, sess); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.Props.MetricMode || got.Props.SelectedFlow.String() != "K2_MC0_high → K3_MC0_high" {
		t.Errorf("Get() props = %+v", got.Props)
	}
	if got.Props.Data == nil || len(got.Props.Data.Nodes) != 2 || got.Props.Data.Nodes[0].ID != "K3_MC0" {
		t.Errorf("node order not preserved: %+v", got.Props.Data)
	}

	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Errorf("Delete() of missing session: %v", err)
	}

	expired := New(testProps(), time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := s.Set(ctx, expired); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, expired.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() of expired session = %v, want ErrNotFound", err)
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Errorf("Cleanup() error: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	storeContract(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := New(testProps(), time.Hour)
	_ = s.Set(ctx, sess)
	sess.Props.MetricMode = false

	got, _ := s.Get(ctx, sess.ID)
	if !got.Props.MetricMode {
		t.Error("store should keep its own copy")
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := New(testProps(), time.Hour)
	old.ExpiresAt = time.Now().Add(-time.Second)
	_ = s.Set(ctx, old)
	_ = s.Set(ctx, New(testProps(), time.Hour))

	if err := s.Cleanup(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d after Cleanup, want 1", s.Len())
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	storeContract(t, s)
}

func TestFileStoreRejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir)

	for _, id := range []string{"", "../escape", "not-a-uuid"} {
		if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) = %v, want ErrNotFound", id, err)
		}
	}
	if err := s.Set(ctx, &Session{ID: "../escape"}); err == nil {
		t.Error("Set() with path-like id should fail")
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "escape.json")); !os.IsNotExist(err) {
		t.Error("file written outside the store directory")
	}
}

func TestFileStoreCleanup(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	old := New(testProps(), time.Hour)
	old.ExpiresAt = time.Now().Add(-time.Second)
	_ = s.Set(ctx, old)
	live := New(testProps(), time.Hour)
	_ = s.Set(ctx, live)

	if err := s.Cleanup(ctx); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(s.Path())
	if len(entries) != 1 || entries[0].Name() != live.ID+".json" {
		t.Errorf("entries after Cleanup = %v", entries)
	}
}

func TestMemoryNotifier(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ch, cancel, err := s.Subscribe(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	other, cancelOther, _ := s.Subscribe(ctx, "b")
	defer cancelOther()

	snap := testProps().SelectedFlow
	if err := s.Publish(ctx, "a", Update{Origin: "host-1", Selection: snap}); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-ch:
		if got.Origin != "host-1" || !got.Selection.Same(snap) {
			t.Errorf("received %+v, want %v", got, snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no selection received")
	}
	select {
	case got := <-other:
		t.Errorf("subscriber of another session received %v", got)
	default:
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	cancel()
}

func TestMemoryNotifierContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()
	ch, _, _ := s.Subscribe(ctx, "a")
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected value")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestMongoDocRoundTrip(t *testing.T) {
	sess := New(testProps(), time.Hour)
	doc, err := newMongoDoc(sess)
	if err != nil {
		t.Fatal(err)
	}
	got, err := doc.session()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != sess.ID || !got.Props.SelectedFlow.Same(sess.Props.SelectedFlow) {
		t.Errorf("session() = %+v", got)
	}
	if got.Props.Data.Nodes[1].ID != "K2_MC0" {
		t.Errorf("node order lost: %+v", got.Props.Data.Nodes)
	}
}

func TestTouch(t *testing.T) {
	sess := New(widget.DefaultProps(), time.Minute)
	before := sess.ExpiresAt
	sess.Touch(time.Hour)
	if !sess.ExpiresAt.After(before) {
		t.Error("Touch should extend expiry")
	}
	if sess.IsExpired() {
		t.Error("touched session should not be expired")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Backend: BackendMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(Notifier); !ok {
		t.Error("memory store should implement Notifier")
	}
	if _, err := Open(ctx, Options{Backend: BackendFile, Dir: t.TempDir()}); err != nil {
		t.Errorf("Open(file) error: %v", err)
	}
	if _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Error("Open(etcd) should fail")
	}
}
