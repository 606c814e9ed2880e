package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savethepaws/pawmap/internal/model"
)

// PostgresRoleRepo はPostgreSQLを使用したロール判定リポジトリ。
type PostgresRoleRepo struct {
	db *sql.DB
}

// NewPostgresRoleRepo はPostgresRoleRepoを生成する。
func NewPostgresRoleRepo(db *sql.DB) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: db}
}

// IsApprovedHelper は承認済みのヘルパー申請が存在するかを返す。
func (r *PostgresRoleRepo) IsApprovedHelper(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM helper_applications WHERE user_id = $1 AND status = $2
		 )`,
		userID, model.HelperStatusApproved,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ヘルパー申請の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// IsAdmin はuser_rolesに管理者ロールが登録されているかを返す。
func (r *PostgresRoleRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = 'admin')`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("管理者ロールの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ensure interface compliance
var (
	_ DogReportRepository = (*PostgresDogReportRepo)(nil)
	_ FacilityRepository  = (*PostgresFacilityRepo)(nil)
	_ RoleRepository      = (*PostgresRoleRepo)(nil)
)
