package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/savethepaws/pawmap/internal/mapview"
	"github.com/savethepaws/pawmap/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	TokenVerifier     *middleware.TokenVerifier
	ViewerResolver    middleware.ViewerResolver
	RateLimiter       *middleware.RateLimiter

	// 地図・報告
	MapData       MapDataService
	ReportCreator ReportCreator
	Renderer      PageRenderer
	RenderRecord  mapview.FailureRecorder

	// 写真
	PhotoIntake PhotoIntake

	// 通知
	Notifier      ApplicationNotifier
	WebhookSecret string
	NotifyRecord  NotificationRecorder

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → Viewer → RateLimit(General)
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
// Webhookは独自の共有シークレットで認証するため、Recovery → Logging のみを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", NewHealthHandler(deps.HealthChecker, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	mapHandler := NewMapHandler(deps.MapData, deps.Renderer, deps.Logger, deps.RenderRecord)
	reportHandler := NewReportHandler(deps.MapData, deps.ReportCreator, deps.Logger)
	photoHandler := NewPhotoHandler(deps.PhotoIntake, deps.Logger)
	hookHandler := NewHookHandler(deps.Notifier, deps.WebhookSecret, deps.Logger, deps.NotifyRecord)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewViewerMiddleware(deps.TokenVerifier, deps.ViewerResolver, deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 公開ページ ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/map", http.StatusFound)
		})
		r.Get("/map", mapHandler.Page)
		r.Get("/dogs", mapHandler.Dogs)
		r.Handle("/static/*", mapview.StaticHandler())

		// --- 公開API ---
		r.Get("/api/map", mapHandler.Data)
		r.Get("/api/dogs", reportHandler.ListDogs)
		r.Get("/api/facilities", reportHandler.ListFacilities)

		// --- 認証が必要なAPI ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireViewer)

			r.Post("/api/dogs", reportHandler.CreateDog)
			// 写真アップロードは専用レート制限を追加
			r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/photos", photoHandler.Upload)
			r.Delete("/api/photos/current", photoHandler.Remove)
		})
	})

	// --- Webhook ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))

		r.HandleFunc("/hooks/helper-application", hookHandler.HelperApplication)
	})

	return r
}
