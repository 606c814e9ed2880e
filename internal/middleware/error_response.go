package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/savethepaws/pawmap/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Ein interner Fehler ist aufgetreten.",
		Category: "system",
		Action:   "Bitte versuche es später erneut.",
	})
}

// WriteDomainError はドメインエラーの種類に応じたステータスで統一レスポンスを書き込む。
// 入力エラーは400、取得失敗は503、画像取り込み失敗は502、それ以外は500になる。
func WriteDomainError(w http.ResponseWriter, err error) {
	if ve, ok := model.AsValidationError(err); ok {
		WriteErrorResponse(w, http.StatusBadRequest, ve.APIError())
		return
	}

	var fetchErr *model.TransientFetchError
	if errors.As(err, &fetchErr) {
		WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewFetchFailedError())
		return
	}

	var uploadErr *model.UploadError
	if errors.As(err, &uploadErr) {
		WriteErrorResponse(w, http.StatusBadGateway, model.NewUploadFailedError())
		return
	}

	WriteInternalServerError(w)
}
