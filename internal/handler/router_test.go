package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/savethepaws/pawmap/internal/middleware"
	"github.com/savethepaws/pawmap/internal/model"
)

const testJWTSecret = "router-test-secret"

type mockResolver struct{}

func (mockResolver) Resolve(ctx context.Context, identity *model.Identity) model.Viewer {
	if identity == nil {
		return model.Viewer{}
	}
	isHelper := true
	return model.Viewer{UserID: identity.UserID, IsHelper: &isHelper}
}

type mockChecker struct {
	err error
}

func (m mockChecker) PingContext(ctx context.Context) error { return m.err }

func signTestToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return signed
}

const testWebhookSecret = "s3cret"

func newTestRouter(t *testing.T, buf *bytes.Buffer, intake *mockIntake) http.Handler {
	t.Helper()
	logger := newTestLogger(buf)
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), logger)
	t.Cleanup(limiter.Stop)

	return NewRouter(&RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: "http://localhost:5173",
		TokenVerifier:     middleware.NewTokenVerifier(testJWTSecret),
		ViewerResolver:    mockResolver{},
		RateLimiter:       limiter,
		MapData:           loadedMapData(nil),
		ReportCreator:     &mockCreator{},
		Renderer:          newTestRenderer(t),
		PhotoIntake:       intake,
		Notifier:          &mockNotifier{},
		WebhookSecret:     testWebhookSecret,
		HealthChecker:     mockChecker{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	var buf bytes.Buffer
	router := newTestRouter(t, &buf, &mockIntake{})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"ヘルスチェック", http.MethodGet, "/health", http.StatusOK},
		{"メトリクス", http.MethodGet, "/metrics", http.StatusOK},
		{"トップは地図へリダイレクト", http.MethodGet, "/", http.StatusFound},
		{"地図ページ", http.MethodGet, "/map", http.StatusOK},
		{"一覧ページ", http.MethodGet, "/dogs", http.StatusOK},
		{"静的ファイル", http.MethodGet, "/static/map.js", http.StatusOK},
		{"報告一覧", http.MethodGet, "/api/dogs", http.StatusOK},
		{"施設一覧", http.MethodGet, "/api/facilities", http.StatusOK},
		{"地図データ", http.MethodGet, "/api/map", http.StatusOK},
		{"未定義のパス", http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_AuthenticatedRoutesRequireViewer(t *testing.T) {
	var buf bytes.Buffer
	intake := &mockIntake{}
	router := newTestRouter(t, &buf, intake)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/dogs"},
		{http.MethodPost, "/api/photos"},
		{http.MethodDelete, "/api/photos/current"},
	}
	for _, rt := range routes {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, strings.NewReader("{}")))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", rt.method, rt.path, w.Code)
		}
	}
	if intake.calls != 0 {
		t.Error("未認証のアップロードはパイプラインに到達すべきでない")
	}
}

func TestRouter_AuthenticatedCreate(t *testing.T) {
	var buf bytes.Buffer
	router := newTestRouter(t, &buf, &mockIntake{})

	req := httptest.NewRequest(http.MethodPost, "/api/dogs", strings.NewReader(`{"lat":30.5,"lng":-9.7,"report_type":"stray"}`))
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "u1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(buf.String(), `"user_id":"u1"`) || !strings.Contains(buf.String(), `"role":"helper"`) {
		t.Errorf("アクセスログに閲覧者が含まれていない: %s", buf.String())
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	var buf bytes.Buffer
	router := newTestRouter(t, &buf, &mockIntake{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/map", nil))

	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("セキュリティヘッダーが付与されていない")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Optionsが付与されていない")
	}

	// /healthはチェーンの外
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("Content-Security-Policy") != "" {
		t.Error("/healthにはミドルウェアを適用すべきでない")
	}
}

func TestRouter_WebhookBypassesViewerChain(t *testing.T) {
	var buf bytes.Buffer
	router := newTestRouter(t, &buf, &mockIntake{})

	req := httptest.NewRequest(http.MethodPost, "/hooks/helper-application", strings.NewReader(testPayload))
	req.Header.Set("Authorization", "Bearer "+testWebhookSecret)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(buf.String(), "不正なアクセストークン") {
		t.Errorf("Webhookの共有シークレットをJWTとして検証すべきでない: %s", buf.String())
	}
	if w.Header().Get("Content-Security-Policy") != "" {
		t.Error("Webhookにはページ向けのセキュリティヘッダーを適用すべきでない")
	}
	if !strings.Contains(buf.String(), "/hooks/helper-application") {
		t.Error("Webhookのリクエストもアクセスログに残すべき")
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	var buf bytes.Buffer
	h := NewHealthHandler(mockChecker{err: errors.New("db down")}, newTestLogger(&buf))

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
