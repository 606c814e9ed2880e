// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/savethepaws/pawmap/internal/model"
)

// AccessTokenCookieName はアクセストークンを保持するCookie名。
const AccessTokenCookieName = "sb-access-token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// viewerContextKey はリクエストコンテキストに閲覧者を格納するためのキー。
var viewerContextKey = contextKey("viewer")

// viewerHolderKey は前段のミドルウェアへ閲覧者を伝えるための入れ物のキー。
var viewerHolderKey = contextKey("viewer_holder")

// viewerHolder はLoggingMiddlewareが後段で確定した閲覧者を受け取るための入れ物。
type viewerHolder struct {
	viewer model.Viewer
}

// ViewerResolver は識別情報から閲覧者の権限集合を導出するインターフェース。
type ViewerResolver interface {
	Resolve(ctx context.Context, identity *model.Identity) model.Viewer
}

// accessClaims はアクセストークンのクレーム。
type accessClaims struct {
	Email       string `json:"email"`
	AppMetadata struct {
		Role *string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// TokenVerifier はHS256で署名されたアクセストークンを検証する。
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenVerifier はTokenVerifierを生成する。
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify はトークンを検証して識別情報を返す。
// app_metadata.roleが存在する場合のみAdminClaimを設定する。
func (v *TokenVerifier) Verify(raw string) (*model.Identity, error) {
	var claims accessClaims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("アクセストークンの検証に失敗しました: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("アクセストークンにsubがありません")
	}

	identity := &model.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
	}
	if claims.AppMetadata.Role != nil {
		isAdmin := *claims.AppMetadata.Role == "admin"
		identity.AdminClaim = &isAdmin
	}
	return identity, nil
}

// NewViewerMiddleware はアクセストークンを検証し、閲覧者をリクエストコンテキストに注入するミドルウェアを返す。
// トークンはAuthorizationヘッダー、なければCookieから読み取る。
// 不正なトークンは匿名として扱い、401は返さない。
func NewViewerMiddleware(verifier *TokenVerifier, resolver ViewerResolver, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *model.Identity
			if raw := accessToken(r); raw != "" {
				id, err := verifier.Verify(raw)
				if err != nil {
					logger.Warn("不正なアクセストークンを匿名として扱います",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				} else {
					identity = id
				}
			}

			viewer := resolver.Resolve(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ContextWithViewer(r.Context(), viewer)))
		})
	}
}

// RequireViewer は認証済みの閲覧者のみを通過させるミドルウェア。
// 匿名の場合は401を返す。
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFromContext(r.Context()).Anonymous() {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(AccessTokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

// ViewerFromContext はリクエストコンテキストから閲覧者を取得する。
// ミドルウェアを通過していない場合は匿名の閲覧者を返す。
func ViewerFromContext(ctx context.Context) model.Viewer {
	viewer, _ := ctx.Value(viewerContextKey).(model.Viewer)
	return viewer
}

// ContextWithViewer はコンテキストに閲覧者を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithViewer(ctx context.Context, viewer model.Viewer) context.Context {
	if h, ok := ctx.Value(viewerHolderKey).(*viewerHolder); ok {
		h.viewer = viewer
	}
	return context.WithValue(ctx, viewerContextKey, viewer)
}
