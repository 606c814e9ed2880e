// Package warm はクエリキャッシュを定期的に再取得するバックグラウンドジョブを提供する。
// 地図ページの初回表示で読み込み中にならないよう、報告と施設の一覧を事前に取得しておく。
package warm

import (
	"context"
	"log/slog"
	"time"
)

// Warmable はキャッシュのウォーム対象。
type Warmable interface {
	Warm(ctx context.Context) error
}

// Recorder はウォーム所要時間の記録先。
type Recorder interface {
	RecordCacheWarm(duration time.Duration)
}

// Warmer は一定間隔でキャッシュをウォームするジョブ。
type Warmer struct {
	target   Warmable
	logger   *slog.Logger
	recorder Recorder
	interval time.Duration
}

// NewWarmer はWarmerを生成する。intervalが0以下の場合は1分を使用する。
func NewWarmer(target Warmable, logger *slog.Logger, recorder Recorder, interval time.Duration) *Warmer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Warmer{
		target:   target,
		logger:   logger,
		recorder: recorder,
		interval: interval,
	}
}

// Start はティッカーでウォームを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Warmer) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("キャッシュウォーマーを開始しました",
		slog.Duration("interval", w.interval),
	)

	// 起動直後に1回実行
	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("キャッシュウォーマーを停止しました")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *Warmer) run(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("キャッシュのウォームに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce はウォームを1回実行する。失敗しても所要時間は記録する。
func (w *Warmer) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := w.target.Warm(ctx)
	duration := time.Since(start)

	if w.recorder != nil {
		w.recorder.RecordCacheWarm(duration)
	}
	if err != nil {
		return err
	}

	w.logger.Info("キャッシュのウォームが完了しました",
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
	)
	return nil
}
