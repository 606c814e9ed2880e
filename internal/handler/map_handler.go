package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/savethepaws/pawmap/internal/mapview"
	"github.com/savethepaws/pawmap/internal/middleware"
	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/query"
)

// MapDataService は地図と一覧の表示に必要な読み取りサービスのインターフェース。
// report.Serviceが実装する。
type MapDataService interface {
	ListDogs(ctx context.Context, onlyApproved bool) (query.Result[[]model.DogReport], error)
	ListFacilities(ctx context.Context) (query.Result[[]model.Facility], error)
	SnapshotDogs(ctx context.Context, onlyApproved bool) query.Result[[]model.DogReport]
	SnapshotFacilities(ctx context.Context) query.Result[[]model.Facility]
}

// PageRenderer は地図関連ページのHTML描画インターフェース。
type PageRenderer interface {
	RenderPage(w io.Writer, p mapview.Page) error
	RenderFallback(w io.Writer, p mapview.Page) error
	RenderDogs(w io.Writer, p mapview.DogsPage) error
}

// MapHandler は地図ページと地図データのHTTPハンドラー。
type MapHandler struct {
	service  MapDataService
	renderer PageRenderer
	logger   *slog.Logger
	recorder mapview.FailureRecorder
}

// NewMapHandler はMapHandlerを生成する。recorderはnilでもよい。
func NewMapHandler(service MapDataService, renderer PageRenderer, logger *slog.Logger, recorder mapview.FailureRecorder) *MapHandler {
	return &MapHandler{
		service:  service,
		renderer: renderer,
		logger:   logger,
		recorder: recorder,
	}
}

// mapDataResponse は地図データのAPIレスポンス。
type mapDataResponse struct {
	mapview.View
	Stale bool `json:"stale"`
}

// Page は地図ページを描画する。
// GET /map
//
// キャッシュにデータがなければ読み込み中の表示を返し、取得はバックグラウンドで進む。
// 描画に失敗した場合は代替パネルを表示する。retry=1の場合のみCookieの失敗回数を引き継ぐ。
func (h *MapHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	elevated := middleware.ViewerFromContext(ctx).Elevated()
	q := r.URL.Query()
	params := mapview.ParseParams(q)

	failures := 0
	if q.Get("retry") == "1" {
		failures = mapview.FailuresFromRequest(r)
	}
	boundary := mapview.NewBoundary(failures, h.logger, h.recorder)
	if failures > 0 {
		boundary.Retry()
	}

	dogs := h.service.SnapshotDogs(ctx, !elevated)
	facilities := h.service.SnapshotFacilities(ctx)
	page := mapview.Page{Loading: dogs.Loading || facilities.Loading}

	var buf bytes.Buffer
	err := boundary.Guard(func() error {
		page.View = mapview.BuildView(dogs.Data, facilities.Data, params, elevated)
		return h.renderer.RenderPage(&buf, page)
	})
	boundary.WriteCookie(w)

	if err == nil {
		writeHTML(w, http.StatusOK, buf.Bytes())
		return
	}

	buf.Reset()
	fallback := mapview.Page{
		View:     mapview.View{Legend: mapview.LegendEntries(elevated)},
		Degraded: true,
		CanRetry: boundary.CanRetry(),
		Failures: boundary.Failures(),
		RetryURL: retryURL(q),
	}
	if err := h.renderer.RenderFallback(&buf, fallback); err != nil {
		h.logger.Error("代替パネルの描画に失敗しました",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Map temporarily unavailable", http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// Dogs は犬の一覧ページを描画する。地図を表示できない場合の代替導線。
// GET /dogs
func (h *MapHandler) Dogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	elevated := middleware.ViewerFromContext(ctx).Elevated()

	dogs := h.service.SnapshotDogs(ctx, !elevated)

	var buf bytes.Buffer
	err := h.renderer.RenderDogs(&buf, mapview.DogsPage{
		Dogs:    mapview.BuildDogEntries(dogs.Data, elevated),
		Loading: dogs.Loading,
	})
	if err != nil {
		h.logger.Error("一覧ページの描画に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// Data は地図の描画データをJSONで返す。
// GET /api/map
//
// 報告と施設は並行して取得し、どちらかが失敗した場合は503を返す。
func (h *MapHandler) Data(w http.ResponseWriter, r *http.Request) {
	elevated := middleware.ViewerFromContext(r.Context()).Elevated()
	params := mapview.ParseParams(r.URL.Query())

	var dogs query.Result[[]model.DogReport]
	var facilities query.Result[[]model.Facility]

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		dogs, err = h.service.ListDogs(ctx, !elevated)
		return err
	})
	g.Go(func() error {
		var err error
		facilities, err = h.service.ListFacilities(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("地図データの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapDataResponse{
		View:  mapview.BuildView(dogs.Data, facilities.Data, params, elevated),
		Stale: dogs.Stale || facilities.Stale,
	})
}

// retryURL は現在の表示パラメータを保ったまま再試行フラグを付けたURLを返す。
func retryURL(q url.Values) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = v
	}
	next.Set("retry", "1")
	return "/map?" + next.Encode()
}
