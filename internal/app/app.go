package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/savethepaws/pawmap/internal/config"
	"github.com/savethepaws/pawmap/internal/database"
	"github.com/savethepaws/pawmap/internal/handler"
	"github.com/savethepaws/pawmap/internal/logger"
	"github.com/savethepaws/pawmap/internal/mapview"
	"github.com/savethepaws/pawmap/internal/metrics"
	"github.com/savethepaws/pawmap/internal/middleware"
	"github.com/savethepaws/pawmap/internal/notify"
	"github.com/savethepaws/pawmap/internal/objectstore"
	"github.com/savethepaws/pawmap/internal/photo"
	"github.com/savethepaws/pawmap/internal/query"
	"github.com/savethepaws/pawmap/internal/report"
	"github.com/savethepaws/pawmap/internal/repository"
	"github.com/savethepaws/pawmap/internal/role"
	"github.com/savethepaws/pawmap/internal/security"
	"github.com/savethepaws/pawmap/internal/worker/warm"
)

// shutdownTimeout はグレースフルシャットダウンの上限時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.AppBaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// components はserve/workerの両モードで共有する依存関係。
type components struct {
	registry    *prometheus.Registry
	collector   *metrics.Collector
	redis       *redis.Client
	cache       *query.Client
	reports     *report.Service
	resolver    *role.Resolver
	pipeline    *photo.Pipeline
	notifier    *notify.Notifier
	rateLimiter *middleware.RateLimiter
}

// buildComponents はDB接続以外の依存関係をワイヤリングする。
// 外部への接続はここでは行わない。
func buildComponents(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*components, error) {
	c := &components{}

	// 1. メトリクス
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.collector = metrics.NewCollector(c.registry)

	// 2. クエリキャッシュ（REDIS_URLがあればプロセス間で共有する）
	store, redisClient, err := newQueryStore(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	c.redis = redisClient
	c.cache = query.NewClient(store, query.Options{
		StaleTime:      cfg.QueryStaleTime,
		GCTime:         cfg.QueryGCTime,
		Retry:          cfg.QueryRetry,
		RetryDelay:     cfg.QueryRetryDelay,
		RefreshTimeout: cfg.QueryRefreshTimeout,
	}, logger, c.collector)

	// 3. リポジトリとドメインサービス
	dogRepo := repository.NewPostgresDogReportRepo(db)
	facilityRepo := repository.NewPostgresFacilityRepo(db)
	roleRepo := repository.NewPostgresRoleRepo(db)

	c.reports = report.NewService(dogRepo, facilityRepo, c.cache, logger)
	c.resolver = role.NewResolver(roleRepo, cfg.RoleHelperTimeout, logger)

	// 4. 外部通信はSSRF防止機能付きクライアントに限定する
	guard := security.NewOutboundGuard()
	var extraPorts []int
	if port := security.PortOf(cfg.SupabaseURL); port > 0 {
		extraPorts = append(extraPorts, port)
	}
	backendClient := guard.NewSafeClient(cfg.OutboundTimeout, extraPorts...)

	objectStore := objectstore.NewSupabaseStore(backendClient, logger, cfg.SupabaseURL, cfg.ServiceRoleKey, cfg.StorageBucket)
	c.pipeline = photo.NewPipeline(objectStore, logger, c.collector)

	// 5. 通知（設定が揃っている場合のみ）
	if cfg.NotificationEnabled() {
		lookup := notify.NewAdminUserLookup(backendClient, logger, cfg.SupabaseURL, cfg.ServiceRoleKey)
		mailer := notify.NewResendMailer(guard.NewSafeClient(cfg.OutboundTimeout), logger, cfg.ResendAPIKey)
		c.notifier = notify.NewNotifier(lookup, mailer, security.NewTextSanitizer(), logger, c.collector, notify.Config{
			From:       cfg.ResendFromEmail,
			AdminEmail: cfg.AdminNotifyEmail,
			AppBaseURL: cfg.AppBaseURL,
		})
	} else {
		logger.Warn("通知メールの設定が不足しているため、ヘルパー申請の通知は無効です")
	}

	// 6. レート制限（req/min）
	c.rateLimiter = middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUpload),
		logger,
	)

	return c, nil
}

// close はバックグラウンド処理を止め、外部接続を閉じる。
func (c *components) close() {
	c.rateLimiter.Stop()
	c.cache.Close()
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			slog.Warn("Redis接続のクローズに失敗しました", slog.String("error", err.Error()))
		}
	}
}

// newQueryStore はREDIS_URLが設定されていればRedisStore、なければMemoryStoreを返す。
// Redisクライアントは接続を遅延するため、ここでは疎通確認を行わない。
func newQueryStore(redisURL string) (query.Store, *redis.Client, error) {
	if redisURL == "" {
		return query.NewMemoryStore(), nil, nil
	}
	client, err := query.NewRedisClient(redisURL)
	if err != nil {
		return nil, nil, err
	}
	return query.NewRedisStore(client, ""), client, nil
}

// newRouterDeps はcomponentsからルーターの依存関係を組み立てる。
func newRouterDeps(cfg *config.Config, c *components, db *sql.DB, logger *slog.Logger, renderer *mapview.Renderer) *handler.RouterDeps {
	deps := &handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TokenVerifier:     middleware.NewTokenVerifier(cfg.AuthJWTSecret),
		ViewerResolver:    c.resolver,
		RateLimiter:       c.rateLimiter,

		MapData:       c.reports,
		ReportCreator: c.reports,
		Renderer:      renderer,
		RenderRecord:  c.collector,

		PhotoIntake: c.pipeline,

		WebhookSecret: cfg.WebhookSecret,
		NotifyRecord:  c.collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(c.registry),
	}
	// nilの*notify.Notifierをインターフェースに入れると非nilになるため分岐する
	if c.notifier != nil {
		deps.Notifier = c.notifier
	}
	return deps
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	logger := slog.Default()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	comps, err := buildComponents(cfg, db, logger)
	if err != nil {
		return err
	}
	defer comps.close()

	renderer, err := mapview.NewRenderer()
	if err != nil {
		return err
	}

	router := handler.NewRouter(newRouterDeps(cfg, comps, db, logger, renderer))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// キャッシュがプロセス内にある場合は自プロセスでウォームする
	if comps.redis == nil {
		warmer := warm.NewWarmer(comps.reports, logger, comps.collector, cfg.CacheWarmInterval)
		go warmer.Start(ctx)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 共有キャッシュ（Redis）に報告と施設の一覧を定期的に書き込む。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("worker mode requires REDIS_URL")
	}
	logger := slog.Default()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	comps, err := buildComponents(cfg, db, logger)
	if err != nil {
		return err
	}
	defer comps.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := comps.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// ワーカーのメトリクスは/metricsのみを公開する
	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(comps.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("warm_interval", cfg.CacheWarmInterval),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// ウォーマーをメインgoroutineで実行（ブロッキング）
	warm.NewWarmer(comps.reports, logger, comps.collector, cfg.CacheWarmInterval).Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
