// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/savethepaws/pawmap/internal/model"
)

// DogReportRepository は犬の報告データの永続化インターフェース。
type DogReportRepository interface {
	// List は犬の報告一覧を取得する。
	// onlyApproved=trueの場合は承認済みの報告のみをSQLで絞り込む。
	List(ctx context.Context, onlyApproved bool) ([]model.DogReport, error)

	// FindByID は指定IDの報告を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.DogReport, error)

	// Create は報告を作成する。approvedは常にfalseで保存される。
	Create(ctx context.Context, report *model.DogReport) error
}

// FacilityRepository は施設データの読み取りインターフェース。
type FacilityRepository interface {
	// List は全施設を取得する。
	List(ctx context.Context) ([]model.Facility, error)
}

// RoleRepository は閲覧者ロール判定に必要な読み取りインターフェース。
type RoleRepository interface {
	// IsApprovedHelper は承認済みのヘルパー申請が存在するかを返す。
	IsApprovedHelper(ctx context.Context, userID string) (bool, error)

	// IsAdmin はuser_rolesに管理者ロールが登録されているかを返す。
	IsAdmin(ctx context.Context, userID string) (bool, error)
}
