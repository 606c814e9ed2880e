// Package report は犬の報告と施設の読み取り・作成のドメインロジックを提供する。
// 読み取り結果は共有クエリキャッシュを経由する。
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/query"
	"github.com/savethepaws/pawmap/internal/repository"
)

// キャッシュキー
const (
	KeyDogsApproved = "dogs:approved"
	KeyDogsAll      = "dogs:all"
	KeyFacilities   = "facilities"
)

// DogsKey は承認フィルタに対応するキャッシュキーを返す。
func DogsKey(onlyApproved bool) string {
	if onlyApproved {
		return KeyDogsApproved
	}
	return KeyDogsAll
}

// CreateDogInput は報告作成の入力。
type CreateDogInput struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	ReportType  string  `json:"report_type"`
	PhotoURL    string  `json:"photo_url"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

// Service は報告データアクセスのサービス層。
type Service struct {
	dogRepo      repository.DogReportRepository
	facilityRepo repository.FacilityRepository
	cache        *query.Client
	logger       *slog.Logger
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	dogRepo repository.DogReportRepository,
	facilityRepo repository.FacilityRepository,
	cache *query.Client,
	logger *slog.Logger,
) *Service {
	return &Service{
		dogRepo:      dogRepo,
		facilityRepo: facilityRepo,
		cache:        cache,
		logger:       logger,
		now:          time.Now,
	}
}

// ListDogs は犬の報告一覧を返す。
// onlyApproved=trueの場合は承認済みの報告のみを返す。順序は保証しない。
func (s *Service) ListDogs(ctx context.Context, onlyApproved bool) (query.Result[[]model.DogReport], error) {
	return query.Get(ctx, s.cache, DogsKey(onlyApproved), s.fetchDogs(onlyApproved))
}

// ListFacilities は全施設を返す。順序は保証しない。
func (s *Service) ListFacilities(ctx context.Context) (query.Result[[]model.Facility], error) {
	return query.Get(ctx, s.cache, KeyFacilities, s.fetchFacilities)
}

// SnapshotDogs は取得を待たずに犬の報告一覧の現在状態を返す。
func (s *Service) SnapshotDogs(ctx context.Context, onlyApproved bool) query.Result[[]model.DogReport] {
	return query.Snapshot(ctx, s.cache, DogsKey(onlyApproved), s.fetchDogs(onlyApproved))
}

// SnapshotFacilities は取得を待たずに施設一覧の現在状態を返す。
func (s *Service) SnapshotFacilities(ctx context.Context) query.Result[[]model.Facility] {
	return query.Snapshot(ctx, s.cache, KeyFacilities, s.fetchFacilities)
}

// Warm は全キャッシュキーを鮮度に関係なく再取得する。
func (s *Service) Warm(ctx context.Context) error {
	var errs []string
	for _, onlyApproved := range []bool{true, false} {
		if err := query.Refresh(ctx, s.cache, DogsKey(onlyApproved), s.fetchDogs(onlyApproved)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := query.Refresh(ctx, s.cache, KeyFacilities, s.fetchFacilities); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("キャッシュのウォームに失敗しました: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CreateDog は新しい報告を未承認で作成し、犬の報告キャッシュを破棄する。
// キャッシュの破棄に失敗しても報告は作成済みなので、警告ログを残して成功を返す。
// PhotoURLが空文字列の場合は写真なしとして保存する。
func (s *Service) CreateDog(ctx context.Context, reporterID string, input CreateDogInput) (*model.DogReport, error) {
	reportType := model.ReportType(input.ReportType)
	if !reportType.Valid() {
		return nil, model.NewInvalidReportTypeError(input.ReportType)
	}
	if input.Lat < -90 || input.Lat > 90 || input.Lng < -180 || input.Lng > 180 {
		return nil, model.NewInvalidCoordinateError(input.Lat, input.Lng)
	}

	report := &model.DogReport{
		ID:          uuid.NewString(),
		Lat:         input.Lat,
		Lng:         input.Lng,
		ReportType:  reportType,
		Approved:    false,
		PhotoURL:    strings.TrimSpace(input.PhotoURL),
		ReporterID:  reporterID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   s.now(),
	}
	if err := s.dogRepo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("報告の作成に失敗しました: %w", err)
	}

	for _, key := range []string{KeyDogsApproved, KeyDogsAll} {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("報告は作成されましたがキャッシュの破棄に失敗しました",
				slog.String("report_id", report.ID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return report, nil
}

func (s *Service) fetchDogs(onlyApproved bool) query.FetchFunc[[]model.DogReport] {
	return func(ctx context.Context) ([]model.DogReport, error) {
		return s.dogRepo.List(ctx, onlyApproved)
	}
}

func (s *Service) fetchFacilities(ctx context.Context) ([]model.Facility, error) {
	return s.facilityRepo.List(ctx)
}
