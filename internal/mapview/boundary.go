package mapview

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/savethepaws/pawmap/internal/model"
)

// MaxRenderFailures は再試行を提示しなくなる連続失敗回数。
const MaxRenderFailures = 3

// FailureCookieName は連続失敗回数を再試行リクエストへ引き継ぐCookie名。
const FailureCookieName = "map_failures"

// Mode は地図描画面の状態。
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeDegraded Mode = "degraded"
)

// FailureRecorder は描画失敗の記録先。
type FailureRecorder interface {
	RecordMapRenderFailure()
}

// Boundary は地図描画の失敗をページ全体に波及させずに局所化する。
// 失敗すると縮退表示に切り替わり、連続失敗がMaxRenderFailures未満の間だけ再試行できる。
type Boundary struct {
	mode     Mode
	failures int
	logger   *slog.Logger
	recorder FailureRecorder
}

// NewBoundary は通常状態のBoundaryを生成する。failuresは引き継いだ連続失敗回数。
func NewBoundary(failures int, logger *slog.Logger, recorder FailureRecorder) *Boundary {
	if failures < 0 {
		failures = 0
	}
	mode := ModeNormal
	if failures > 0 {
		mode = ModeDegraded
	}
	return &Boundary{
		mode:     mode,
		failures: failures,
		logger:   logger,
		recorder: recorder,
	}
}

// Mode は現在の状態を返す。
func (b *Boundary) Mode() Mode { return b.mode }

// Failures は連続失敗回数を返す。
func (b *Boundary) Failures() int { return b.failures }

// CanRetry は再試行を提示できるかを返す。
func (b *Boundary) CanRetry() bool { return b.failures < MaxRenderFailures }

// Retry は再試行が許される場合に通常状態へ戻す。成功するかは次のGuardで決まる。
func (b *Boundary) Retry() bool {
	if !b.CanRetry() {
		return false
	}
	b.mode = ModeNormal
	return true
}

// Guard は通常状態の場合にrenderを実行する。
// renderのエラーやpanicは*model.RenderErrorとして返し、縮退状態に切り替える。
// 成功すると連続失敗回数をリセットする。縮退状態ではrenderを実行しない。
func (b *Boundary) Guard(render func() error) (err error) {
	if b.mode == ModeDegraded {
		return &model.RenderError{Err: fmt.Errorf("map surface is degraded after %d failures", b.failures)}
	}

	defer func() {
		if p := recover(); p != nil {
			err = b.fail(&model.RenderError{Panic: p})
		}
	}()

	if rerr := render(); rerr != nil {
		return b.fail(&model.RenderError{Err: rerr})
	}

	b.failures = 0
	b.mode = ModeNormal
	return nil
}

func (b *Boundary) fail(err *model.RenderError) error {
	b.failures++
	b.mode = ModeDegraded
	if b.recorder != nil {
		b.recorder.RecordMapRenderFailure()
	}
	b.logger.Error("地図の描画に失敗しました",
		slog.Int("consecutive_failures", b.failures),
		slog.Bool("can_retry", b.CanRetry()),
		slog.String("error", err.Error()),
	)
	return err
}

// FailuresFromRequest はCookieから連続失敗回数を読み取る。
func FailuresFromRequest(r *http.Request) int {
	c, err := r.Cookie(FailureCookieName)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(c.Value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// WriteCookie は連続失敗回数をCookieに保存する。失敗がない場合はCookieを削除する。
func (b *Boundary) WriteCookie(w http.ResponseWriter) {
	c := &http.Cookie{
		Name:     FailureCookieName,
		Path:     "/map",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if b.failures == 0 {
		c.MaxAge = -1
	} else {
		c.Value = strconv.Itoa(b.failures)
		c.MaxAge = 600
	}
	http.SetCookie(w, c)
}
