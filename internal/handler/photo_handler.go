package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/savethepaws/pawmap/internal/middleware"
	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/photo"
)

const (
	// photoFormField は写真を受け取るmultipartフィールド名。
	photoFormField = "photo"
	// maxPhotoRequestSize は写真アップロードリクエスト全体の上限バイト数。
	maxPhotoRequestSize = photo.MaxFileSize + 1<<20
)

// PhotoIntake は写真取り込みパイプラインのインターフェース。
type PhotoIntake interface {
	Intake(ctx context.Context, ownerID string, header photo.FileHeader, data []byte, listener photo.Listener) (*photo.Result, error)
}

// PhotoHandler は写真アップロードのHTTPハンドラー。
type PhotoHandler struct {
	pipeline PhotoIntake
	logger   *slog.Logger
}

// NewPhotoHandler はPhotoHandlerを生成する。
func NewPhotoHandler(pipeline PhotoIntake, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// photoURLResponse は写真を外した場合のレスポンス。空のURLは写真なしを意味する。
type photoURLResponse struct {
	URL string `json:"url"`
}

// Upload は写真を検証・圧縮して保存し、公開URLを返す。認証必須。
// POST /api/photos
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoRequestSize)
	file, fh, err := r.FormFile(photoFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteDomainError(w, model.ErrTooLarge)
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}
	defer file.Close()

	header := photo.FileHeader{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}
	// 中身を読む前に検証し、不正なファイルは読み込まない
	if err := photo.Validate(header); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("写真の読み込みに失敗しました",
			slog.String("user_id", viewer.UserID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	artifact := photo.NewArtifact(nil)
	result, err := h.pipeline.Intake(r.Context(), viewer.UserID, header, data, artifact)
	if err != nil {
		if _, ok := model.AsValidationError(err); !ok {
			h.logger.Error("写真の取り込みに失敗しました",
				slog.String("user_id", viewer.UserID),
				slog.String("state", string(artifact.Snapshot().State)),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Remove は写真なしを選んだことを空のURLで返す。
// サーバー側の状態は変えず、保存済みのオブジェクトも削除しない。
// DELETE /api/photos/current
func (h *PhotoHandler) Remove(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, photoURLResponse{URL: ""})
}
