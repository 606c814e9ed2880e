package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// FooterText はメール末尾の署名。
const FooterText = "Save The Paws – Taghazout, Morocco"

// EmailData はメール本文テンプレートの入力。
type EmailData struct {
	ApplicationID string
	Name          string
	Email         string
	ReceivedAt    string
	Message       string
	DashboardURL  string
}

var emailTemplate = template.Must(template.New("email").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #d97740; padding: 24px; border-radius: 8px 8px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 22px;">🐾 Neue Helfer-Bewerbung</h1>
  </div>
  <div style="background: #fff; padding: 24px; border: 1px solid #e5e7eb; border-top: none; border-radius: 0 0 8px 8px;">
    <table style="width: 100%; border-collapse: collapse;">
      <tr><td style="padding: 8px 0; color: #6b7280; width: 140px; font-size: 14px;">Name</td><td style="padding: 8px 0; font-weight: 600; font-size: 14px;">{{.Name}}</td></tr>
      <tr><td style="padding: 8px 0; color: #6b7280; font-size: 14px;">E-Mail</td><td style="padding: 8px 0; font-size: 14px;"><a href="mailto:{{.Email}}" style="color: #d97740;">{{.Email}}</a></td></tr>
      <tr><td style="padding: 8px 0; color: #6b7280; font-size: 14px;">Eingegangen am</td><td style="padding: 8px 0; font-size: 14px;">{{.ReceivedAt}}</td></tr>
      <tr><td style="padding: 8px 0; color: #6b7280; font-size: 14px;">Bewerbungs-ID</td><td style="padding: 8px 0; font-size: 12px; color: #9ca3af; font-family: monospace;">{{.ApplicationID}}</td></tr>
    </table>
    <hr style="border: none; border-top: 1px solid #f3f4f6; margin: 20px 0;" />
    <h2 style="font-size: 16px; color: #374151; margin: 0 0 12px 0;">Nachricht der Bewerberin / des Bewerbers:</h2>
    <div style="background: #f9fafb; border-left: 3px solid #d97740; padding: 16px; border-radius: 4px; font-size: 15px; line-height: 1.6; color: #374151; white-space: pre-wrap;">{{.Message}}</div>
    <div style="margin-top: 28px; text-align: center;">
      <a href="{{.DashboardURL}}" style="display: inline-block; background: #d97740; color: white; padding: 12px 28px; border-radius: 6px; text-decoration: none; font-weight: 600; font-size: 15px;">Im Dashboard öffnen →</a>
    </div>
    <p style="margin-top: 24px; font-size: 12px; color: #9ca3af; text-align: center;">{{.Footer}}</p>
  </div>
</div>
`))

type emailView struct {
	EmailData
	Footer string
}

// RenderEmail は通知メールのHTML本文を生成する。値はすべてエスケープされる。
func RenderEmail(data EmailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, emailView{EmailData: data, Footer: FooterText}); err != nil {
		return "", fmt.Errorf("通知メール本文の生成に失敗しました: %w", err)
	}
	return buf.String(), nil
}

// Subject は通知メールの件名を返す。
func Subject(name string) string {
	return "🐾 Neue Helfer-Bewerbung von " + name
}
