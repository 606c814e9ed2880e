package query

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry はキャッシュに保存されるクエリ結果。
// DataはJSONエンコード済みの値で、プロセス間で共有できる形式を取る。
type Entry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Data      json.RawMessage `json:"data"`
}

// Store はクエリ結果の保存先のインターフェース。
type Store interface {
	// Get はキーに対応するエントリを返す。存在しない場合はnil, nilを返す。
	Get(ctx context.Context, key string) (*Entry, error)
	// Set はエントリをttl経過後に破棄される形で保存する。
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	// Delete はキーに対応するエントリを削除する。
	Delete(ctx context.Context, key string) error
}

// MemoryStore は単一プロセス内で完結するStore実装。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get はキーに対応するエントリを返す。期限切れのエントリは削除してnilを返す。
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, nil
	}
	entry := e.entry
	return &entry, nil
}

// Set はエントリを保存する。ttlが0以下の場合は期限なしで保存する。
func (s *MemoryStore) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{entry: entry, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// Delete はキーに対応するエントリを削除する。
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
