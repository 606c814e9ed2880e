package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/savethepaws/pawmap/internal/middleware"
	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/report"
)

// maxReportBodySize は報告作成リクエストの上限バイト数。
const maxReportBodySize = 16 * 1024

// ReportCreator は報告作成のサービスインターフェース。
type ReportCreator interface {
	CreateDog(ctx context.Context, reporterID string, input report.CreateDogInput) (*model.DogReport, error)
}

// ReportHandler は報告と施設のJSON APIハンドラー。
type ReportHandler struct {
	reader  MapDataService
	creator ReportCreator
	logger  *slog.Logger
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(reader MapDataService, creator ReportCreator, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reader:  reader,
		creator: creator,
		logger:  logger,
	}
}

// dogListResponse は報告一覧のAPIレスポンス。
type dogListResponse struct {
	Dogs      []model.DogReport `json:"dogs"`
	FetchedAt time.Time         `json:"fetched_at"`
	Stale     bool              `json:"stale"`
}

// facilityListResponse は施設一覧のAPIレスポンス。
type facilityListResponse struct {
	Facilities []model.Facility `json:"facilities"`
	FetchedAt  time.Time        `json:"fetched_at"`
	Stale      bool             `json:"stale"`
}

// ListDogs は報告一覧を返す。ヘルパーと管理者には未承認の報告も含める。
// GET /api/dogs
func (h *ReportHandler) ListDogs(w http.ResponseWriter, r *http.Request) {
	elevated := middleware.ViewerFromContext(r.Context()).Elevated()

	res, err := h.reader.ListDogs(r.Context(), !elevated)
	if err != nil {
		h.logger.Error("報告一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteDomainError(w, err)
		return
	}

	dogs := res.Data
	if dogs == nil {
		dogs = []model.DogReport{}
	}
	writeJSON(w, http.StatusOK, dogListResponse{Dogs: dogs, FetchedAt: res.FetchedAt, Stale: res.Stale})
}

// ListFacilities は施設一覧を返す。
// GET /api/facilities
func (h *ReportHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	res, err := h.reader.ListFacilities(r.Context())
	if err != nil {
		h.logger.Error("施設一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteDomainError(w, err)
		return
	}

	facilities := res.Data
	if facilities == nil {
		facilities = []model.Facility{}
	}
	writeJSON(w, http.StatusOK, facilityListResponse{Facilities: facilities, FetchedAt: res.FetchedAt, Stale: res.Stale})
}

// CreateDog は新しい報告を未承認で作成する。認証必須。
// POST /api/dogs
func (h *ReportHandler) CreateDog(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())

	var input report.CreateDogInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBodySize)).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}
	if input.PhotoURL != "" && !isHTTPURL(input.PhotoURL) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	created, err := h.creator.CreateDog(r.Context(), viewer.UserID, input)
	if err != nil {
		if _, ok := model.AsValidationError(err); !ok {
			h.logger.Error("報告の作成に失敗しました",
				slog.String("user_id", viewer.UserID),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func invalidRequestError() *model.APIError {
	return (&model.ValidationError{
		Code:    model.ErrCodeInvalidRequest,
		Message: "Ungültige Anfrage.",
	}).APIError()
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
