package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/savethepaws/pawmap/internal/metrics"
	"github.com/savethepaws/pawmap/internal/security"
)

// Application はWebhookで通知されたヘルパー申請の行。
type Application struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// Recorder は通知結果の記録先。
type Recorder interface {
	RecordNotification(outcome string)
}

// Config は通知の送信元・送信先設定。
type Config struct {
	From       string
	AdminEmail string
	AppBaseURL string
}

// Notifier はヘルパー申請を管理者にメール通知する。
type Notifier struct {
	lookup    UserLookup
	mailer    Mailer
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
	recorder  Recorder
	config    Config
}

// NewNotifier はNotifierを生成する。recorderはnilでもよい。
func NewNotifier(lookup UserLookup, mailer Mailer, sanitizer security.TextSanitizerService, logger *slog.Logger, recorder Recorder, config Config) *Notifier {
	return &Notifier{
		lookup:    lookup,
		mailer:    mailer,
		sanitizer: sanitizer,
		logger:    logger,
		recorder:  recorder,
		config:    config,
	}
}

// Notify は申請者情報を取得し、通知メールを1通送信する。
// 申請者情報の取得失敗はプレースホルダーで補って送信を続ける。
// 送信失敗は*model.DispatchErrorとして返す。
func (n *Notifier) Notify(ctx context.Context, app Application) error {
	applicant, err := n.lookup.Lookup(ctx, app.UserID)
	if err != nil {
		n.logger.Warn("申請者情報の取得に失敗しました",
			slog.String("application_id", app.ID),
			slog.String("user_id", app.UserID),
			slog.String("error", err.Error()),
		)
		applicant = Applicant{Email: UnknownEmail, Name: UnknownName}
	}

	name := n.sanitizer.Sanitize(applicant.Name)
	if name == "" {
		name = UnknownName
	}

	html, err := RenderEmail(EmailData{
		ApplicationID: app.ID,
		Name:          name,
		Email:         applicant.Email,
		ReceivedAt:    formatCreatedAt(app.CreatedAt),
		Message:       n.sanitizer.Sanitize(app.Message),
		DashboardURL:  n.config.AppBaseURL + "/admin",
	})
	if err != nil {
		n.record(metrics.OutcomeFailed)
		return err
	}

	err = n.mailer.Send(ctx, Email{
		From:    n.config.From,
		To:      []string{n.config.AdminEmail},
		Subject: Subject(name),
		HTML:    html,
	})
	if err != nil {
		n.record(metrics.OutcomeFailed)
		return fmt.Errorf("通知メールの送信に失敗しました: %w", err)
	}

	n.record(metrics.OutcomeSuccess)
	n.logger.Info("ヘルパー申請の通知を送信しました",
		slog.String("application_id", app.ID),
		slog.String("applicant_email", applicant.Email),
	)
	return nil
}

func (n *Notifier) record(outcome string) {
	if n.recorder != nil {
		n.recorder.RecordNotification(outcome)
	}
}

// formatCreatedAt は申請日時を整形する。解析できない値はそのまま返す。
func formatCreatedAt(raw string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return FormatGermanDate(t)
		}
	}
	return raw
}

