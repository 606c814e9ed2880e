package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savethepaws/pawmap/internal/model"
)

// PostgresFacilityRepo はPostgreSQLを使用した施設リポジトリ。
type PostgresFacilityRepo struct {
	db *sql.DB
}

// NewPostgresFacilityRepo はPostgresFacilityRepoを生成する。
func NewPostgresFacilityRepo(db *sql.DB) *PostgresFacilityRepo {
	return &PostgresFacilityRepo{db: db}
}

// List は全施設を名前順で取得する。
func (r *PostgresFacilityRepo) List(ctx context.Context) ([]model.Facility, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lat, lng, category, name, address, phone, created_at
		 FROM facilities ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("施設一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	facilities := make([]model.Facility, 0)
	for rows.Next() {
		var f model.Facility
		var category string
		var address, phone sql.NullString
		if err := rows.Scan(&f.ID, &f.Lat, &f.Lng, &category, &f.Name, &address, &phone, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("施設行の読み取りに失敗しました: %w", err)
		}
		f.Category = model.FacilityCategory(category)
		f.Address = nullStringValue(address)
		f.Phone = nullStringValue(phone)
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("施設一覧の走査に失敗しました: %w", err)
	}
	return facilities, nil
}
