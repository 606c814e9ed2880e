// Package notify はヘルパー申請を受け取ったときに管理者へメール通知する機能を提供する。
// 申請者情報の取得、ドイツ語での日時整形、メール本文の生成、メールAPIへの送信を含む。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/savethepaws/pawmap/internal/model"
)

// 申請者情報が取得できなかった場合のプレースホルダー
const (
	UnknownEmail = "unbekannt"
	UnknownName  = "Unbekannt"
)

// Applicant は通知メールに記載する申請者情報。
type Applicant struct {
	Email string
	Name  string
}

// UserLookup は申請者情報を取得するインターフェース。
type UserLookup interface {
	Lookup(ctx context.Context, userID string) (Applicant, error)
}

// AdminUserLookup は認証バックエンドの管理APIから申請者情報を取得する。
type AdminUserLookup struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	serviceKey string
}

// NewAdminUserLookup はAdminUserLookupを生成する。
func NewAdminUserLookup(httpClient *http.Client, logger *slog.Logger, baseURL, serviceKey string) *AdminUserLookup {
	return &AdminUserLookup{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
	}
}

type adminUser struct {
	Email        *string `json:"email"`
	UserMetadata struct {
		DisplayName *string `json:"display_name"`
	} `json:"user_metadata"`
}

// Lookup はユーザーIDからメールアドレスと表示名を取得する。
// 表示名はuser_metadata.display_name、なければメールアドレスのローカル部を使う。
// 失敗した場合は*model.LookupErrorを返す。
func (l *AdminUserLookup) Lookup(ctx context.Context, userID string) (Applicant, error) {
	reqURL := l.baseURL + "/auth/v1/admin/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Applicant{}, &model.LookupError{UserID: userID, Err: err}
	}
	req.Header.Set("apikey", l.serviceKey)
	req.Header.Set("Authorization", "Bearer "+l.serviceKey)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Applicant{}, &model.LookupError{UserID: userID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Applicant{}, &model.LookupError{
			UserID: userID,
			Err:    fmt.Errorf("管理APIがステータス %d を返しました", resp.StatusCode),
		}
	}

	var u adminUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Applicant{}, &model.LookupError{
			UserID: userID,
			Err:    fmt.Errorf("ユーザー情報のパースに失敗しました: %w", err),
		}
	}

	return applicantFrom(u), nil
}

func applicantFrom(u adminUser) Applicant {
	a := Applicant{Email: UnknownEmail, Name: UnknownName}
	if u.Email != nil {
		a.Email = *u.Email
	}
	switch {
	case u.UserMetadata.DisplayName != nil:
		a.Name = *u.UserMetadata.DisplayName
	case u.Email != nil:
		local, _, _ := strings.Cut(*u.Email, "@")
		a.Name = local
	}
	return a
}

// ensure interface compliance
var _ UserLookup = (*AdminUserLookup)(nil)
