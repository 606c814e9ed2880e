package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/savethepaws/pawmap/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock はテスト用の時計。
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// mockRecorder はテスト用のRecorder実装。
type mockRecorder struct {
	mu      sync.Mutex
	results []string
}

func (m *mockRecorder) RecordCacheResult(key, result string) {
	m.mu.Lock()
	m.results = append(m.results, key+":"+result)
	m.mu.Unlock()
}

func (m *mockRecorder) Results() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.results...)
}

func newTestClient(t *testing.T, clock *fakeClock, rec Recorder) (*Client, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	store.now = clock.Now
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond
	c := NewClient(store, opts, slog.New(slog.NewTextHandler(io.Discard, nil)), rec)
	c.now = clock.Now
	t.Cleanup(c.Close)
	return c, store
}

type dog struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func TestGet_MissThenHit(t *testing.T) {
	clock := newFakeClock()
	rec := &mockRecorder{}
	c, _ := newTestClient(t, clock, rec)

	var calls int32
	fetch := func(ctx context.Context) ([]dog, error) {
		atomic.AddInt32(&calls, 1)
		return []dog{{ID: "d1", Type: "sos"}}, nil
	}

	first, err := Get(context.Background(), c, "dogs", fetch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := Get(context.Background(), c, "dogs", fetch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
	if diff := cmp.Diff(first.Data, second.Data); diff != "" {
		t.Errorf("cached data mismatch (-first +second):\n%s", diff)
	}
	if second.Stale || second.Loading {
		t.Errorf("second result should be fresh: %+v", second)
	}
	if diff := cmp.Diff([]string{"dogs:miss", "dogs:hit"}, rec.Results()); diff != "" {
		t.Errorf("recorded results mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_ConcurrentMissesShareOneFetch(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := Get(context.Background(), c, "facilities", fetch)
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			results[i] = res.Data
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("results[%d] = %d, want 42", i, v)
		}
	}
}

func TestGet_RetriesOnceThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)

	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	}

	res, err := Get(context.Background(), c, "k", fetch)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if res.Data != "ok" {
		t.Errorf("Data = %q, want %q", res.Data, "ok")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch called %d times, want 2", got)
	}
}

func TestGet_SecondFailureSurfacesTransientFetchError(t *testing.T) {
	clock := newFakeClock()
	rec := &mockRecorder{}
	c, _ := newTestClient(t, clock, rec)

	cause := errors.New("backend unavailable")
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", cause
	}

	_, err := Get(context.Background(), c, "k", fetch)
	var tfe *model.TransientFetchError
	if !errors.As(err, &tfe) {
		t.Fatalf("expected TransientFetchError, got %v", err)
	}
	if tfe.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", tfe.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Error("TransientFetchError should wrap the cause")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch called %d times, want 2", got)
	}
	if _, ok := Peek[string](context.Background(), c, "k"); ok {
		t.Error("failed fetch should not populate the cache")
	}
	if diff := cmp.Diff([]string{"k:miss", "k:error"}, rec.Results()); diff != "" {
		t.Errorf("recorded results mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_CancelledCallerStopsWaitingPromptly(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	opts := DefaultOptions()
	opts.RetryDelay = time.Hour
	opts.RefreshTimeout = 100 * time.Millisecond
	c := NewClient(store, opts, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	c.now = clock.Now
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Get(ctx, c, "k", func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Get returned after %v, want prompt return", elapsed)
	}
}

func TestGet_SharedFetchSurvivesFirstCallerCancellation(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "shared", nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Get(firstCtx, c, "dogs", fetch)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		res Result[string]
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := Get(context.Background(), c, "dogs", fetch)
		second <- outcome{res, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller error = %v, want context.Canceled", err)
	}
	close(release)

	got := <-second
	if got.err != nil {
		t.Fatalf("second caller should not see the first caller's cancellation: %v", got.err)
	}
	if got.res.Data != "shared" {
		t.Errorf("Data = %q, want %q", got.res.Data, "shared")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
	if res, ok := Peek[string](context.Background(), c, "dogs"); !ok || res.Data != "shared" {
		t.Errorf("shared fetch should populate the cache: %+v ok=%v", res, ok)
	}
}

func TestGet_StaleServedAndRefreshedInBackground(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)
	ctx := context.Background()

	var version int32
	fetch := func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&version, 1), nil
	}

	if _, err := Get(ctx, c, "dogs", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	clock.Advance(3 * time.Minute)

	stale, err := Get(ctx, c, "dogs", fetch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stale.Stale {
		t.Error("expected stale result after StaleTime")
	}
	if stale.Data != 1 {
		t.Errorf("stale Data = %d, want 1", stale.Data)
	}

	// Closeはバックグラウンド再取得の完了を待つ
	c.Close()

	fresh, ok := Peek[int32](ctx, c, "dogs")
	if !ok {
		t.Fatal("expected refreshed entry")
	}
	if fresh.Data != 2 || fresh.Stale {
		t.Errorf("refreshed result = %+v, want fresh Data=2", fresh)
	}
}

func TestSnapshot_MissReturnsLoadingAndLoadsInBackground(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)
	ctx := context.Background()

	res := Snapshot(ctx, c, "facilities", func(ctx context.Context) ([]string, error) {
		return []string{"vet"}, nil
	})
	if !res.Loading {
		t.Fatalf("expected Loading=true on first snapshot, got %+v", res)
	}

	c.Close()

	loaded, ok := Peek[[]string](ctx, c, "facilities")
	if !ok {
		t.Fatal("expected background load to populate the cache")
	}
	if diff := cmp.Diff([]string{"vet"}, loaded.Data); diff != "" {
		t.Errorf("loaded data mismatch (-want +got):\n%s", diff)
	}
}

func TestClose_PreventsNewRefreshes(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)
	c.Close()

	var calls int32
	res := Snapshot(context.Background(), c, "k", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})
	if !res.Loading {
		t.Error("expected Loading=true")
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("fetch called %d times after Close, want 0", got)
	}
}

func TestInvalidate_ForcesSynchronousFetch(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	if _, err := Get(ctx, c, "dogs", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := c.Invalidate(ctx, "dogs"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	res, err := Get(ctx, c, "dogs", fetch)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Data != 2 {
		t.Errorf("Data = %d, want 2 after invalidation", res.Data)
	}
}

func TestRefresh_UpdatesRegardlessOfFreshness(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestClient(t, clock, nil)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	if _, err := Get(ctx, c, "dogs", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := Refresh(ctx, c, "dogs", fetch); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	res, _ := Peek[int32](ctx, c, "dogs")
	if res.Data != 2 {
		t.Errorf("Data = %d, want 2", res.Data)
	}
}

func TestMemoryStore_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	store.now = clock.Now
	ctx := context.Background()

	entry := Entry{FetchedAt: clock.Now(), Data: []byte(`1`)}
	if err := store.Set(ctx, "k", entry, 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clock.Advance(4 * time.Minute)
	if got, _ := store.Get(ctx, "k"); got == nil {
		t.Fatal("entry should still exist before TTL")
	}

	clock.Advance(time.Minute)
	if got, _ := store.Get(ctx, "k"); got != nil {
		t.Errorf("entry should expire at TTL, got %+v", got)
	}
}

func TestLookup_CorruptEntryTreatedAsMiss(t *testing.T) {
	clock := newFakeClock()
	c, store := newTestClient(t, clock, nil)
	ctx := context.Background()

	_ = store.Set(ctx, "k", Entry{FetchedAt: clock.Now(), Data: []byte(`"not a number"`)}, 0)

	res, err := Get(ctx, c, "k", func(ctx context.Context) (int, error) { return 7, nil })
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Data != 7 {
		t.Errorf("Data = %d, want 7", res.Data)
	}
}
