package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/restaurant-platform/internal/config"
)

// Runs only against a live Redis, e.g. REDIS_TEST_ADDR=localhost:6379.
func TestRedisLocker_Exclusive(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	l := NewRedisLocker(client, 5*time.Second)
	key := TableKey(uuid.NewString())

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while held, got %v", err)
	}

	unlock()

	again, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestRedisLocker_ExtendsWhileHeld(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	l := NewRedisLocker(client, 300*time.Millisecond)
	key := TableKey(uuid.NewString())

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Держим втрое дольше TTL.
	time.Sleep(900 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the lock to outlive its ttl while held, got %v", err)
	}

	unlock()
	if n, err := client.Exists(context.Background(), key).Result(); err != nil || n != 0 {
		t.Fatalf("expected key to be released, got %d, %v", n, err)
	}
}
