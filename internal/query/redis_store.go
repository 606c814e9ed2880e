package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultKeyPrefix はRedisキーの名前空間。
const defaultKeyPrefix = "pawmap:query:"

// RedisStore は複数インスタンス間でキャッシュを共有するStore実装。
// エントリは{fetched_at, data}のJSONエンベロープとして保存される。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient はREDIS_URL形式の接続文字列からRedisクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLの解析に失敗しました: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisStore はRedisStoreを生成する。prefixが空の場合は既定の名前空間を使う。
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get はキーに対応するエントリを返す。存在しない場合はnil, nilを返す。
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キャッシュの取得に失敗しました: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("キャッシュエントリの解析に失敗しました: %w", err)
	}
	return &entry, nil
}

// Set はエントリをJSONエンベロープとして保存する。
func (s *RedisStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("キャッシュエントリのエンコードに失敗しました: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// Delete はキーに対応するエントリを削除する。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("キャッシュの削除に失敗しました: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
