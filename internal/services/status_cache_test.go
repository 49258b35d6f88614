package services_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
	"github.com/agrisense/agrisense-backend/internal/services"
)

type cachedItem struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func exerciseCache(t *testing.T, c services.StatusCache) {
	t.Helper()
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	var out cachedItem
	if ok, err := c.Get(ctx, key, &out); err != nil || ok {
		t.Fatalf("expected a clean miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, key, cachedItem{Name: "soil", Value: 0.31}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, err := c.Get(ctx, key, &out); err != nil || !ok || out.Name != "soil" || out.Value != 0.31 {
		t.Fatalf("unexpected hit ok=%v err=%v %+v", ok, err, out)
	}

	short := key + ":short"
	if err := c.Set(ctx, short, cachedItem{Name: "gone"}, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)
	if ok, _ := c.Get(ctx, short, &out); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestMemoryStatusCache(t *testing.T) {
	exerciseCache(t, services.NewMemoryStatusCache())
}

func TestRedisStatusCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	exerciseCache(t, services.NewRedisStatusCache(testutil.Logger(t), rdb))
}
