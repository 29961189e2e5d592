package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mikey/mailguard/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newEntry(digest string, ttl time.Duration) *core.CacheEntry {
	now := time.Now()
	return &core.CacheEntry{
		Digest:     digest,
		Label:      core.LabelSpam,
		Confidence: 0.93,
		ModelUsed:  "local:spam_model",
		StoredAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
}

// exerciseRepository runs the behaviour every backend must share
func exerciseRepository(t *testing.T, repo core.CacheRepository) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, core.ErrCacheMiss) {
		t.Fatalf("Get(missing) error = %v, want ErrCacheMiss", err)
	}

	if err := repo.Set(ctx, newEntry("live", time.Hour)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := repo.Get(ctx, "live")
	if err != nil {
		t.Fatalf("Get(live): %v", err)
	}
	if got.Label != core.LabelSpam || got.Confidence != 0.93 || got.ModelUsed != "local:spam_model" {
		t.Errorf("unexpected entry %+v", got)
	}

	if err := repo.Set(ctx, newEntry("stale", -time.Minute)); err != nil {
		t.Fatalf("Set(stale): %v", err)
	}
	if _, err := repo.Get(ctx, "stale"); !errors.Is(err, core.ErrCacheMiss) {
		t.Errorf("Get(stale) error = %v, want ErrCacheMiss", err)
	}

	if err := repo.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := repo.Get(ctx, "live"); err != nil {
		t.Errorf("Cleanup removed a live entry: %v", err)
	}

	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "live"); !errors.Is(err, core.ErrCacheMiss) {
		t.Errorf("Get after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t), 0)
	defer c.Stop()

	exerciseRepository(t, c)
}

func TestMemoryCacheCleanupPurgesExpired(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t), 0)
	defer c.Stop()
	ctx := context.Background()

	_ = c.Set(ctx, newEntry("a", -time.Second))
	_ = c.Set(ctx, newEntry("b", -time.Second))
	_ = c.Set(ctx, newEntry("c", time.Hour))

	if err := c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after cleanup, want 1", c.Len())
	}
}

func TestMemoryCacheBackgroundCleanup(t *testing.T) {
	// The cleanup goroutine may still log after the test returns
	c := NewMemoryCache(zap.NewNop(), 10*time.Millisecond)
	defer c.Stop()

	_ = c.Set(context.Background(), newEntry("old", -time.Second))

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background cleanup did not purge the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCacheGetReturnsCopy(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t), 0)
	defer c.Stop()
	ctx := context.Background()

	_ = c.Set(ctx, newEntry("k", time.Hour))
	got, _ := c.Get(ctx, "k")
	got.Label = core.LabelHam

	again, _ := c.Get(ctx, "k")
	if again.Label != core.LabelSpam {
		t.Error("mutating a returned entry changed the cache")
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Millisecond)
	defer c.Stop()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, newEntry("shared", time.Hour))
				_, _ = c.Get(ctx, "shared")
			}
		}()
	}
	wg.Wait()
}

func TestMemoryCacheStopTwice(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t), time.Hour)
	c.Stop()
	c.Stop()
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), zaptest.NewLogger(t), 0)
	if err != nil {
		// The driver needs cgo
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer c.Stop()

	exerciseRepository(t, c)
}

func TestRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisCache(ctx, "127.0.0.1:1", "", 0, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected an error for an unreachable Redis server")
	}
}
