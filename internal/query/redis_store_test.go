package query

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestRedisStore はテスト用のRedisStoreを返す。接続できない場合はスキップする。
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/15"
	}
	client, err := NewRedisClient(redisURL)
	if err != nil {
		t.Fatalf("NewRedisClient failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("テスト用Redisに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "pawmap:test:"+uuid.NewString()+":")
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := NewRedisClient("not-a-redis-url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestNewRedisStore_DefaultPrefix(t *testing.T) {
	s := NewRedisStore(nil, "")
	if s.prefix != defaultKeyPrefix {
		t.Errorf("prefix = %q, want %q", s.prefix, defaultKeyPrefix)
	}
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	fetchedAt := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	if err := store.Set(ctx, "dogs", Entry{FetchedAt: fetchedAt, Data: []byte(`[1,2]`)}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "dogs")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if !got.FetchedAt.Equal(fetchedAt) || string(got.Data) != `[1,2]` {
		t.Errorf("entry = %+v", got)
	}

	if err := store.Delete(ctx, "dogs"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, err := store.Get(ctx, "dogs"); err != nil || got != nil {
		t.Errorf("Get after Delete = %+v, %v; want nil, nil", got, err)
	}
}
