package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Backend (認証・ストレージ)
	SupabaseURL       string
	ServiceRoleKey    string
	AuthJWTSecret     string
	StorageBucket     string
	OutboundTimeout   time.Duration
	RoleHelperTimeout time.Duration

	// Query cache
	RedisURL            string
	QueryStaleTime      time.Duration
	QueryGCTime         time.Duration
	QueryRetry          int
	QueryRetryDelay     time.Duration
	QueryRefreshTimeout time.Duration
	CacheWarmInterval   time.Duration

	// Notification
	ResendAPIKey     string
	ResendFromEmail  string
	AdminNotifyEmail string
	WebhookSecret    string

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitUpload  int

	// Server
	ServerPort string
	AppBaseURL string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込むが、既存の環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.ServiceRoleKey = os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if cfg.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}

	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	if cfg.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.StorageBucket = getEnvString("STORAGE_BUCKET", "dog-photos")
	cfg.OutboundTimeout = getEnvDuration("OUTBOUND_TIMEOUT", 10*time.Second)
	cfg.RoleHelperTimeout = getEnvDuration("ROLE_HELPER_TIMEOUT", 2*time.Second)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.QueryStaleTime = getEnvDuration("QUERY_STALE_TIME", 2*time.Minute)
	cfg.QueryGCTime = getEnvDuration("QUERY_GC_TIME", 5*time.Minute)
	cfg.QueryRetry = getEnvInt("QUERY_RETRY", 1)
	cfg.QueryRetryDelay = getEnvDuration("QUERY_RETRY_DELAY", time.Second)
	cfg.QueryRefreshTimeout = getEnvDuration("QUERY_REFRESH_TIMEOUT", 10*time.Second)
	cfg.CacheWarmInterval = getEnvDuration("CACHE_WARM_INTERVAL", time.Minute)
	cfg.ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	cfg.ResendFromEmail = getEnvString("RESEND_FROM_EMAIL", "")
	cfg.AdminNotifyEmail = getEnvString("ADMIN_NOTIFY_EMAIL", "")
	cfg.WebhookSecret = getEnvString("WEBHOOK_SECRET", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppBaseURL = strings.TrimRight(getEnvString("APP_BASE_URL", "http://localhost:8080"), "/")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	return cfg, nil
}

// NotificationEnabled は通知メール送信に必要な設定が揃っているかを返す。
func (c *Config) NotificationEnabled() bool {
	return c.ResendAPIKey != "" && c.ResendFromEmail != "" && c.AdminNotifyEmail != ""
}

// loadDotEnv は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
