// Package query はバックエンド読み取り結果をプロセス全体で共有するキャッシュを提供する。
// 鮮度切れの結果は即座に返しつつバックグラウンドで再取得し、
// 同一キーへの同時取得はsingleflightで1回にまとめる。
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/savethepaws/pawmap/internal/model"
)

// キャッシュ参照結果のラベル値
const (
	ResultHit   = "hit"
	ResultStale = "stale"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Options はキャッシュの鮮度・保持・リトライ設定。
type Options struct {
	// StaleTime を過ぎた結果は返却しつつ再取得する。
	StaleTime time.Duration
	// GCTime はストア上でのエントリ保持期間。
	GCTime time.Duration
	// Retry は初回取得失敗後の自動リトライ回数。
	Retry int
	// RetryDelay はリトライまでの待機時間。
	RetryDelay time.Duration
	// RefreshTimeout は取得1回あたりの上限時間。同期取得にも適用する。
	RefreshTimeout time.Duration
}

// DefaultOptions は既定のキャッシュ設定を返す。
func DefaultOptions() Options {
	return Options{
		StaleTime:      2 * time.Minute,
		GCTime:         5 * time.Minute,
		Retry:          1,
		RetryDelay:     time.Second,
		RefreshTimeout: 10 * time.Second,
	}
}

// Recorder はキャッシュ参照結果の記録先。
type Recorder interface {
	RecordCacheResult(key, result string)
}

// Result はキャッシュ経由で取得したクエリ結果。
type Result[T any] struct {
	Data      T
	FetchedAt time.Time
	// Stale は結果が鮮度切れで、再取得がバックグラウンドで進行中であることを示す。
	Stale bool
	// Loading はまだ結果がなく、初回取得が進行中であることを示す。
	Loading bool
}

// FetchFunc はバックエンドから値を取得する関数。
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Client はプロセス全体で共有するクエリキャッシュ。
// 起動時に1つだけ生成し、参照で受け渡す。
type Client struct {
	store    Store
	opts     Options
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewClient はClientを生成する。recorderはnilでもよい。
func NewClient(store Store, opts Options, logger *slog.Logger, recorder Recorder) *Client {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultOptions().RefreshTimeout
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	return &Client{
		store:    store,
		opts:     opts,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Options はクライアントの設定を返す。
func (c *Client) Options() Options {
	return c.opts
}

// Get はキーに対応する結果を返す。
// 鮮度内の結果はそのまま返し、鮮度切れの結果は返しつつバックグラウンドで再取得する。
// 結果がない場合は同期的に取得し、失敗時はRetryDelay後にRetry回まで再試行する。
// すべて失敗した場合は*model.TransientFetchErrorを返す。
func Get[T any](ctx context.Context, c *Client, key string, fetch FetchFunc[T]) (Result[T], error) {
	if res, ok := lookup[T](ctx, c, key); ok {
		if res.Stale {
			c.record(key, ResultStale)
			c.refresh(key, encodeFetch(fetch))
		} else {
			c.record(key, ResultHit)
		}
		return res, nil
	}

	c.record(key, ResultMiss)
	entry, err := c.shared(ctx, key, encodeFetch(fetch))
	if err != nil {
		c.record(key, ResultError)
		return Result[T]{}, err
	}
	return decodeEntry[T](entry)
}

// Snapshot は取得を待たずに現在のキャッシュ状態を返す。
// 結果がない場合はバックグラウンドで初回取得を開始し、Loading=trueを返す。
func Snapshot[T any](ctx context.Context, c *Client, key string, fetch FetchFunc[T]) Result[T] {
	if res, ok := lookup[T](ctx, c, key); ok {
		if res.Stale {
			c.record(key, ResultStale)
			c.refresh(key, encodeFetch(fetch))
		} else {
			c.record(key, ResultHit)
		}
		return res
	}
	c.record(key, ResultMiss)
	c.refresh(key, encodeFetch(fetch))
	return Result[T]{Loading: true}
}

// Peek はキャッシュにある結果を取得処理なしで返す。
func Peek[T any](ctx context.Context, c *Client, key string) (Result[T], bool) {
	return lookup[T](ctx, c, key)
}

// Refresh は鮮度に関係なく同期的に再取得してキャッシュを更新する。
// キャッシュウォーマーから利用する。
func Refresh[T any](ctx context.Context, c *Client, key string, fetch FetchFunc[T]) error {
	_, err := c.shared(ctx, key, encodeFetch(fetch))
	if err != nil {
		c.record(key, ResultError)
	}
	return err
}

// Invalidate はキーに対応する結果を破棄する。次回のGetは同期取得になる。
func (c *Client) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("キャッシュの無効化に失敗しました: %w", err)
	}
	return nil
}

// Close は新規のバックグラウンド再取得を止め、進行中のものの完了を待つ。
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
}

// lookup はストアからエントリを読み出して型付きの結果に変換する。
// ストアの障害や解析失敗はキャッシュミスとして扱う。
func lookup[T any](ctx context.Context, c *Client, key string) (Result[T], bool) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("キャッシュの読み出しに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return Result[T]{}, false
	}
	if entry == nil {
		return Result[T]{}, false
	}

	res, err := decodeEntry[T](entry)
	if err != nil {
		c.logger.Warn("キャッシュエントリを破棄しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return Result[T]{}, false
	}
	res.Stale = c.now().Sub(entry.FetchedAt) >= c.opts.StaleTime
	return res, true
}

// refresh はバックグラウンドでキーを再取得する。同一キーの再取得は1つにまとめられる。
func (c *Client) refresh(key string, fetch func(context.Context) ([]byte, error)) {
	if !c.track() {
		return
	}

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RefreshTimeout)
		defer cancel()

		_, err, _ := c.group.Do(key, func() (any, error) {
			return c.load(ctx, key, fetch)
		})
		if err != nil {
			c.record(key, ResultError)
			c.logger.Warn("キャッシュの再取得に失敗しました",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// shared は同一キーの同期取得を1つにまとめる。
// 取得は呼び出し元のキャンセルから切り離してRefreshTimeoutで打ち切り、
// 各呼び出し元は自身のctxが終わるまで結果を待つ。
func (c *Client) shared(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) (*Entry, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		if c.track() {
			defer c.wg.Done()
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RefreshTimeout)
		defer cancel()
		return c.load(loadCtx, key, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("キャッシュの取得待ちを中断しました (key=%s): %w", key, ctx.Err())
	}
}

// track は進行中の取得としてwgに登録する。Close後は登録しない。
func (c *Client) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

// load はリトライ付きで取得し、成功した結果をストアに保存する。
func (c *Client) load(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) (*Entry, error) {
	attempts := c.opts.Retry + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, c.opts.RetryDelay); err != nil {
				return nil, &model.TransientFetchError{Key: key, Attempts: attempt - 1, Err: lastErr}
			}
		}

		data, err := fetch(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		entry := &Entry{FetchedAt: c.now(), Data: data}
		if err := c.store.Set(ctx, key, *entry, c.opts.GCTime); err != nil {
			c.logger.Warn("キャッシュの保存に失敗しました",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return entry, nil
	}
	return nil, &model.TransientFetchError{Key: key, Attempts: attempts, Err: lastErr}
}

func (c *Client) record(key, result string) {
	if c.recorder != nil {
		c.recorder.RecordCacheResult(key, result)
	}
}

// encodeFetch は型付きの取得関数をJSONを返す関数に変換する。
func encodeFetch[T any](fetch FetchFunc[T]) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("クエリ結果のエンコードに失敗しました: %w", err)
		}
		return data, nil
	}
}

func decodeEntry[T any](entry *Entry) (Result[T], error) {
	var v T
	if err := json.Unmarshal(entry.Data, &v); err != nil {
		return Result[T]{}, fmt.Errorf("クエリ結果の解析に失敗しました: %w", err)
	}
	return Result[T]{Data: v, FetchedAt: entry.FetchedAt}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
