package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/savethepaws/pawmap/internal/metrics"
	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/notify"
)

// maxHookBodySize はWebhookペイロードの上限バイト数。
const maxHookBodySize = 64 * 1024

// ApplicationNotifier はヘルパー申請通知のインターフェース。
type ApplicationNotifier interface {
	Notify(ctx context.Context, app notify.Application) error
}

// NotificationRecorder は通知結果の記録先。
type NotificationRecorder interface {
	RecordNotification(outcome string)
}

// HookHandler はデータベースWebhookを受け取るHTTPハンドラー。
// 応答はWebhook送信元向けのプレーンテキストで、APIの統一エラーフォーマットは使わない。
type HookHandler struct {
	notifier ApplicationNotifier
	secret   string
	logger   *slog.Logger
	recorder NotificationRecorder
}

// NewHookHandler はHookHandlerを生成する。
// secretが空の場合は共有シークレットの検証を行わない。notifierがnilの場合は通知が無効とみなす。
func NewHookHandler(notifier ApplicationNotifier, secret string, logger *slog.Logger, recorder NotificationRecorder) *HookHandler {
	return &HookHandler{
		notifier: notifier,
		secret:   secret,
		logger:   logger,
		recorder: recorder,
	}
}

// webhookPayload はデータベースWebhookのペイロード。
type webhookPayload struct {
	Type   string              `json:"type"`
	Table  string              `json:"table"`
	Schema string              `json:"schema"`
	Record *notify.Application `json:"record"`
}

// HelperApplication は新しいヘルパー申請を管理者にメール通知する。
// POST /hooks/helper-application
func (h *HookHandler) HelperApplication(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret != "" && !h.authorized(r) {
		h.record(metrics.OutcomeRejected)
		h.logger.Warn("Webhookの共有シークレットが一致しません",
			slog.String("remote_addr", r.RemoteAddr),
		)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHookBodySize)).Decode(&payload); err != nil || payload.Record == nil {
		h.record(metrics.OutcomeRejected)
		http.Error(w, "No record in payload", http.StatusBadRequest)
		return
	}

	if h.notifier == nil {
		h.logger.Warn("通知メールの設定がないため申請通知をスキップしました",
			slog.String("application_id", payload.Record.ID),
		)
		http.Error(w, "Notifications are not configured", http.StatusServiceUnavailable)
		return
	}

	if err := h.notifier.Notify(r.Context(), *payload.Record); err != nil {
		h.logger.Error("申請通知の送信に失敗しました",
			slog.String("application_id", payload.Record.ID),
			slog.String("error", err.Error()),
		)
		var de *model.DispatchError
		if errors.As(err, &de) && de.Err == nil {
			http.Error(w, "Resend error: "+de.Body, http.StatusInternalServerError)
			return
		}
		http.Error(w, "Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HookHandler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

func (h *HookHandler) record(outcome string) {
	if h.recorder != nil {
		h.recorder.RecordNotification(outcome)
	}
}
