// Package objectstore はアップロードされた写真を保存するオブジェクトストレージのクライアントを提供する。
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBodySize はエラーレスポンス本文を読み取る上限バイト数。
const maxErrorBodySize = 4 * 1024

// ErrObjectExists は同じキーのオブジェクトが既に存在する場合のエラー。
// 既存オブジェクトは上書きされない。
var ErrObjectExists = errors.New("object already exists")

// PutOptions はオブジェクト保存時のオプション。
type PutOptions struct {
	// Overwrite がfalseの場合、既存オブジェクトがあれば ErrObjectExists を返す。
	Overwrite bool
	// CacheControl は公開URL配信時のキャッシュ秒数（例: "3600"）。
	CacheControl string
}

// Object は保存済みオブジェクトを表す。
type Object struct {
	// Path はバケット内のパス。
	Path string
}

// Store はオブジェクトストレージのインターフェース。
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string, opts PutOptions) (Object, error)
	PublicURL(path string) string
}

// SupabaseStore はSupabase StorageのREST APIを使用するStore実装。
type SupabaseStore struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	serviceKey string
	bucket     string
}

// NewSupabaseStore はSupabaseStoreの新しいインスタンスを生成する。
// baseURLはプロジェクトURL（例: https://abc.supabase.co）。
func NewSupabaseStore(httpClient *http.Client, logger *slog.Logger, baseURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
	}
}

// storageError はStorage APIのエラーレスポンス。
type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// Put はオブジェクトを保存する。
// Overwrite=falseで既存オブジェクトがある場合は ErrObjectExists を返す。
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string, opts PutOptions) (Object, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapePath(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return Object{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", fmt.Sprintf("%t", opts.Overwrite))
	if opts.CacheControl != "" {
		req.Header.Set("cache-control", "max-age="+opts.CacheControl)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("ストレージAPIの呼び出しに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return Object{}, fmt.Errorf("ストレージへの保存に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Object{Path: key}, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if isDuplicate(resp.StatusCode, body) {
		return Object{}, fmt.Errorf("%s: %w", key, ErrObjectExists)
	}

	s.logger.Error("ストレージAPIがエラーステータスを返しました",
		slog.Int("http_status", resp.StatusCode),
		slog.String("key", key),
		slog.String("body", string(body)),
	)
	return Object{}, fmt.Errorf("ストレージAPIがステータス %d を返しました", resp.StatusCode)
}

// PublicURL は公開バケット内のパスに対する公開URLを返す。
func (s *SupabaseStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapePath(path))
}

// isDuplicate は既存オブジェクトとの衝突を示すレスポンスかどうかを判定する。
// Storage APIは衝突を409、またはstatusCode "409"を含む400で返す。
func isDuplicate(status int, body []byte) bool {
	if status == http.StatusConflict {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	var se storageError
	if err := json.Unmarshal(body, &se); err != nil {
		return false
	}
	return se.StatusCode == "409" || strings.EqualFold(se.Error, "Duplicate")
}

// escapePath はスラッシュ区切りのパスの各セグメントをエスケープする。
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

var _ Store = (*SupabaseStore)(nil)
