package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savethepaws/pawmap/internal/model"
)

// PostgresDogReportRepo はPostgreSQLを使用した犬の報告リポジトリ。
type PostgresDogReportRepo struct {
	db *sql.DB
}

// NewPostgresDogReportRepo はPostgresDogReportRepoを生成する。
func NewPostgresDogReportRepo(db *sql.DB) *PostgresDogReportRepo {
	return &PostgresDogReportRepo{db: db}
}

const dogReportColumns = `id, lat, lng, report_type, approved, photo_url,
		        reporter_id, name, description, created_at`

// List は犬の報告一覧を作成日時の降順で取得する。
func (r *PostgresDogReportRepo) List(ctx context.Context, onlyApproved bool) ([]model.DogReport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+dogReportColumns+`
		 FROM dog_reports
		 WHERE ($1 = false OR approved = true)
		 ORDER BY created_at DESC`,
		onlyApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("犬の報告一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	reports := make([]model.DogReport, 0)
	for rows.Next() {
		report, err := scanDogReport(rows)
		if err != nil {
			return nil, fmt.Errorf("犬の報告行の読み取りに失敗しました: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("犬の報告一覧の走査に失敗しました: %w", err)
	}
	return reports, nil
}

// FindByID は指定IDの報告を取得する。見つからない場合はnilを返す。
func (r *PostgresDogReportRepo) FindByID(ctx context.Context, id string) (*model.DogReport, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+dogReportColumns+` FROM dog_reports WHERE id = $1`,
		id,
	)
	report, err := scanDogReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("犬の報告の取得に失敗しました: %w", err)
	}
	return report, nil
}

// Create は報告を作成する。approvedは常にfalseで保存される。
func (r *PostgresDogReportRepo) Create(ctx context.Context, report *model.DogReport) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dog_reports (id, lat, lng, report_type, approved, photo_url,
		                          reporter_id, name, description, created_at)
		 VALUES ($1, $2, $3, $4, false, $5, $6, $7, $8, $9)`,
		report.ID, report.Lat, report.Lng, string(report.ReportType),
		nullString(report.PhotoURL), report.ReporterID,
		nullString(report.Name), nullString(report.Description),
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("犬の報告の作成に失敗しました: %w", err)
	}
	report.Approved = false
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDogReport(s rowScanner) (*model.DogReport, error) {
	report := &model.DogReport{}
	var reportType string
	var photoURL, name, description sql.NullString

	if err := s.Scan(
		&report.ID, &report.Lat, &report.Lng, &reportType, &report.Approved,
		&photoURL, &report.ReporterID, &name, &description, &report.CreatedAt,
	); err != nil {
		return nil, err
	}

	report.ReportType = model.ReportType(reportType)
	report.PhotoURL = nullStringValue(photoURL)
	report.Name = nullStringValue(name)
	report.Description = nullStringValue(description)
	return report, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
