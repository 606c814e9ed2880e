package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/savethepaws/pawmap/internal/model"
)

const (
	// defaultResendEndpoint はメール送信APIのエンドポイント。
	defaultResendEndpoint = "https://api.resend.com/emails"
	// maxResponseBodySize はレスポンス本文を読み取る上限バイト数。
	maxResponseBodySize = 16 * 1024
)

// Email は送信するメール。
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// ResendMailer はResend APIでメールを送信する。
// 送信は1回のみで、失敗時のリトライは呼び出し元に任せる。
type ResendMailer struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewResendMailer はResendMailerを生成する。
func NewResendMailer(httpClient *http.Client, logger *slog.Logger, apiKey string) *ResendMailer {
	return &ResendMailer{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   defaultResendEndpoint,
	}
}

// Send はメールを送信する。2xx以外の応答や通信失敗は*model.DispatchErrorを返す。
func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	body, err := json.Marshal(email)
	if err != nil {
		return &model.DispatchError{Err: fmt.Errorf("メールのエンコードに失敗しました: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return &model.DispatchError{Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Error("メールAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return &model.DispatchError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Error("メールAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
		return &model.DispatchError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}

// ensure interface compliance
var _ Mailer = (*ResendMailer)(nil)
