package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestDecrementStockMirror_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:test-item")
	adapter.SetStockMirror(ctx, "test-item", 10)

	ok, err := adapter.DecrementStockMirror(ctx, "test-item", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected success")
	}

	stock, _ := client.Get(ctx, "stock:test-item").Int()
	if stock != 7 {
		t.Errorf("expected stock 7, got %d", stock)
	}
}

func TestDecrementStockMirror_Insufficient(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:test-item")
	adapter.SetStockMirror(ctx, "test-item", 5)

	ok, err := adapter.DecrementStockMirror(ctx, "test-item", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected refusal for insufficient mirror stock")
	}

	// Mirror unchanged on refusal.
	stock, _ := client.Get(ctx, "stock:test-item").Int()
	if stock != 5 {
		t.Errorf("expected stock 5, got %d", stock)
	}
}

func TestDecrementStockMirror_UntrackedKeyPasses(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:untracked-item")

	// The mirror is advisory, so an absent key defers to the database
	// instead of refusing the decision.
	ok, err := adapter.DecrementStockMirror(ctx, "untracked-item", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected pass for untracked item")
	}

	// The pass must not create the key.
	if exists, _ := client.Exists(ctx, "stock:untracked-item").Result(); exists != 0 {
		t.Error("untracked key should not be created by a pass")
	}
}

func TestDecrementStockMirror_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	initialStock := 20
	totalRequests := 50

	client.Del(ctx, "stock:concurrent-test")
	adapter.SetStockMirror(ctx, "concurrent-test", initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.DecrementStockMirror(ctx, "concurrent-test", 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}

	stock, _ := client.Get(ctx, "stock:concurrent-test").Int()
	if stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}

func TestIncrementStockMirror(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:test-item")
	adapter.SetStockMirror(ctx, "test-item", 5)

	if err := adapter.IncrementStockMirror(ctx, "test-item", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stock, _ := client.Get(ctx, "stock:test-item").Int()
	if stock != 8 {
		t.Errorf("expected stock 8, got %d", stock)
	}
}

func TestIncrementStockMirror_UntrackedKeyIgnored(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "stock:untracked-item")

	if err := adapter.IncrementStockMirror(ctx, "untracked-item", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A rollback for an item the mirror never tracked must not seed a
	// bogus count.
	if exists, _ := client.Exists(ctx, "stock:untracked-item").Result(); exists != 0 {
		t.Error("increment must not create untracked keys")
	}
}

func TestSetIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "idempotency:test-idem-key")

	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "idempotency:concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}

func TestStatusCountsCache_RoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "status-counts:test-key")

	_, hit, err := adapter.GetStatusCounts(ctx, "test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("expected cache miss")
	}

	want := &domain.StatusCounts{Pending: 2, Approved: 1, Denied: 1, Paid: 1, Total: 4}
	if err := adapter.SetStatusCounts(ctx, "test-key", want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, hit, err := adapter.GetStatusCounts(ctx, "test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if *got != *want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	// The cache expires on its own; a short TTL is what keeps the counts
	// from going permanently stale.
	ttl, _ := client.TTL(ctx, "status-counts:test-key").Result()
	if ttl <= 0 {
		t.Error("expected a positive TTL on the counts key")
	}
}
