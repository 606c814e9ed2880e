// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, report, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidType       = "INVALID_TYPE"
	ErrCodeTooLarge          = "TOO_LARGE"
	ErrCodeInvalidReportType = "INVALID_REPORT_TYPE"
	ErrCodeInvalidCoordinate = "INVALID_COORDINATE"
	ErrCodeUploadFailed      = "UPLOAD_FAILED"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
)

// UploadFailedMessage は画像取り込みのどの段階で失敗してもユーザーに表示する唯一のメッセージ。
const UploadFailedMessage = "Fehler beim Hochladen. Bitte versuche es erneut."

// ValidationError はユーザー入力の修正が必要なエラー（ファイル形式・サイズ・座標など）。
type ValidationError struct {
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Code, e.Message)
}

// APIError はValidationErrorをAPIレスポンス用に変換する。
func (e *ValidationError) APIError() *APIError {
	return &APIError{
		Code:     e.Code,
		Message:  e.Message,
		Category: "validation",
		Action:   "Bitte korrigiere die Eingabe und versuche es erneut.",
	}
}

// ErrInvalidType は画像以外のMIMEタイプが選択された場合のエラー。
var ErrInvalidType = &ValidationError{Code: ErrCodeInvalidType, Message: "Bitte wähle ein Bild aus"}

// ErrTooLarge は5MiBを超えるファイルが選択された場合のエラー。
var ErrTooLarge = &ValidationError{Code: ErrCodeTooLarge, Message: "Das Bild darf maximal 5MB groß sein"}

// NewInvalidReportTypeError は未知の報告種別エラーを生成する。
func NewInvalidReportTypeError(reportType string) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeInvalidReportType,
		Message: fmt.Sprintf("Unbekannter Meldungstyp: %s", reportType),
	}
}

// NewInvalidCoordinateError は範囲外の座標エラーを生成する。
func NewInvalidCoordinateError(lat, lng float64) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeInvalidCoordinate,
		Message: fmt.Sprintf("Ungültige Koordinate: %.6f, %.6f", lat, lng),
	}
}

// TransientFetchError はバックエンド取得の一時的な失敗を表す。
// 1回の自動リトライ後も失敗した場合に呼び出し元へ返される。
type TransientFetchError struct {
	Key      string
	Attempts int
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *TransientFetchError) Unwrap() error { return e.Err }

// RenderError は地図描画中に発生した失敗を表す。panicもこの型に変換される。
type RenderError struct {
	Panic any
	Err   error
}

// Error はerrorインターフェースを実装する。
func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("map render failed: %v", e.Err)
	}
	return fmt.Sprintf("map render panicked: %v", e.Panic)
}

// Unwrap は原因エラーを返す。
func (e *RenderError) Unwrap() error { return e.Err }

// UploadStage は画像取り込みパイプラインの段階。
type UploadStage string

const (
	UploadStageDecode   UploadStage = "decode"
	UploadStageCompress UploadStage = "compress"
	UploadStageStore    UploadStage = "store"
)

// UploadError はストレージへの書き込み・読み出しを含む画像取り込みの失敗を表す。
// 自動リトライは行わず、ユーザーが再選択して手動で再試行する。
type UploadError struct {
	Stage UploadStage
	Err   error
}

// Error はerrorインターフェースを実装する。
func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *UploadError) Unwrap() error { return e.Err }

// LookupError は通知時の申請者情報取得の失敗を表す。
// 呼び出し元で握りつぶされ、プレースホルダーに置き換えられる。
type LookupError struct {
	UserID string
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup user %s: %v", e.UserID, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *LookupError) Unwrap() error { return e.Err }

// DispatchError はメールAPIへの送信失敗を表す。
// Bodyにはメール APIのレスポンス本文を保持する。
type DispatchError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch failed: %v", e.Err)
	}
	return fmt.Sprintf("dispatch failed with status %d: %s", e.StatusCode, e.Body)
}

// Unwrap は原因エラーを返す。
func (e *DispatchError) Unwrap() error { return e.Err }

// NewUnauthorizedError は認証必須エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Anmeldung erforderlich.",
		Category: "auth",
		Action:   "Bitte melde dich an.",
	}
}

// NewUploadFailedError はアップロード失敗エラーを生成する。
func NewUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  UploadFailedMessage,
		Category: "upload",
		Action:   "Wähle das Foto erneut aus.",
	}
}

// NewFetchFailedError はバックエンド取得失敗エラーを生成する。
func NewFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  "Die Daten konnten nicht geladen werden.",
		Category: "report",
		Action:   "Bitte versuche es in Kürze erneut.",
	}
}

// AsValidationError はerrがValidationErrorを含む場合にそれを返す。
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
