package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/stripesankey/pkg/observability"
)

func init() {
	retryDelay = time.Millisecond
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get() = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte(`<path class="flow" d="M0,0"/>`), 100)
	if err := c.Set(ctx, "artifact:svg:abc", payload, time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, hit, err := c.Get(ctx, "artifact:svg:abc")
	if err != nil || !hit {
		t.Fatalf("Get() hit=%v err=%v", hit, err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("Get() returned different bytes")
	}

	// Entries are compressed on disk.
	info, err := os.Stat(c.path("artifact:svg:abc"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() >= int64(len(payload)) {
		t.Errorf("entry size %d not smaller than payload %d", info.Size(), len(payload))
	}

	if err := c.Delete(ctx, "artifact:svg:abc"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "artifact:svg:abc"); hit {
		t.Error("Get() after Delete should miss")
	}
	if err := c.Delete(ctx, "artifact:svg:abc"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}

	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("zero ttl entry should hit")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("\x00\x00\x00\x00\x00\x00\x00\x00not snappy"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v, want clean miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, []byte(k), 0)
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(c.Dir())
	if len(entries) != 0 {
		t.Errorf("Clear() left %d entries", len(entries))
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	lk1 := k.LayoutKey("hash123", LayoutKeyOpts{Height: 680})
	lk2 := k.LayoutKey("hash123", LayoutKeyOpts{Height: 480})
	if lk1 == lk2 {
		t.Error("Different LayoutKeyOpts should produce different keys")
	}

	ak1 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg"})
	ak2 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg", SelectedFlow: "K2_MC0_high → K3_MC1_high"})
	if ak1 == ak2 {
		t.Error("Different selections should produce different keys")
	}
	if !strings.HasPrefix(ak1, "artifact:svg:") {
		t.Errorf("ArtifactKey = %s", ak1)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(nil, "serve:")
	key := scoped.ArtifactKey("h", ArtifactKeyOpts{Format: "png"})
	if !strings.HasPrefix(key, "serve:artifact:png:") {
		t.Errorf("ScopedKeyer key should be prefixed: %s", key)
	}
}

func TestKeyType(t *testing.T) {
	tests := []struct{ key, want string }{
		{"layout:ab", "layout"},
		{"artifact:svg:ab", "artifact"},
		{"prod:artifact:svg:ab", "artifact"},
		{"layouts:ab", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		if got := KeyType(tt.key); got != tt.want {
			t.Errorf("KeyType(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	var out []string
	if err := GetJSON(ctx, c, "k", &out); err != ErrCacheMiss {
		t.Errorf("GetJSON() on empty cache = %v, want ErrCacheMiss", err)
	}
	if err := SetJSON(ctx, c, "k", []string{"K2_MC0", "K2_MC1"}, 0); err != nil {
		t.Fatal(err)
	}
	if err := GetJSON(ctx, c, "k", &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[1] != "K2_MC1" {
		t.Errorf("GetJSON() = %v", out)
	}
}

type countingHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets, bytes int
}

func (h *countingHooks) OnCacheHit(context.Context, string)  { h.hits++ }
func (h *countingHooks) OnCacheMiss(context.Context, string) { h.misses++ }
func (h *countingHooks) OnCacheSet(_ context.Context, _ string, n int) {
	h.sets++
	h.bytes += n
}

func TestInstrument(t *testing.T) {
	observability.Reset()
	defer observability.Reset()
	hooks := &countingHooks{}
	observability.SetCacheHooks(hooks)

	ctx := context.Background()
	fc, _ := NewFileCache(t.TempDir())
	c := Instrument(Instrument(fc))

	_, _, _ = c.Get(ctx, "artifact:svg:x")
	_ = c.Set(ctx, "artifact:svg:x", []byte("abcd"), 0)
	_, _, _ = c.Get(ctx, "artifact:svg:x")

	if hooks.hits != 1 || hooks.misses != 1 || hooks.sets != 1 || hooks.bytes != 4 {
		t.Errorf("hooks = %+v", hooks)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		backend, redisAddr string
		wantErr            bool
	}{
		{BackendNone, "", false},
		{BackendFile, "", false},
		{BackendRedis, "localhost:6379", false},
		{BackendRedis, "", true},
		{"memcached", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			c, err := Open(tt.backend, t.TempDir(), tt.redisAddr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if c != nil {
				_ = c.Close()
			}
		})
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	err := Retryable(ErrNetwork)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != ErrNetwork.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if IsRetryable(ErrCacheMiss) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return ErrCacheMiss
	})
	if err != ErrCacheMiss || calls != 1 {
		t.Errorf("non-retryable: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrNetwork)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry once: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(ErrNetwork)
	})
	if !IsRetryable(err) || calls != 3 {
		t.Errorf("exhausted: err=%v calls=%d", err, calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrNetwork)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}
