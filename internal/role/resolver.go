// Package role はリクエストごとの閲覧者ロール（管理者・ヘルパー）を判定する。
package role

import (
	"context"
	"log/slog"
	"time"

	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/repository"
)

// DefaultHelperTimeout はヘルパー判定の既定の上限時間。
const DefaultHelperTimeout = 2 * time.Second

// Resolver は検証済みの識別情報から閲覧者の権限集合を導出する。
// 読み取りのみを行い、結果は永続化しない。
type Resolver struct {
	roles         repository.RoleRepository
	helperTimeout time.Duration
	logger        *slog.Logger
}

// NewResolver はResolverを生成する。helperTimeoutが0以下の場合は既定値を使う。
func NewResolver(roles repository.RoleRepository, helperTimeout time.Duration, logger *slog.Logger) *Resolver {
	if helperTimeout <= 0 {
		helperTimeout = DefaultHelperTimeout
	}
	return &Resolver{
		roles:         roles,
		helperTimeout: helperTimeout,
		logger:        logger,
	}
}

// Resolve は閲覧者の権限集合を返す。
// 未認証の場合は匿名の閲覧者を返す。
// ヘルパー判定がタイムアウトまたは失敗した場合はIsHelper=nil（未確定）とし、非昇格として扱われる。
func (r *Resolver) Resolve(ctx context.Context, identity *model.Identity) model.Viewer {
	if identity == nil || identity.UserID == "" {
		return model.Viewer{}
	}

	return model.Viewer{
		UserID:   identity.UserID,
		IsAdmin:  r.resolveAdmin(ctx, identity),
		IsHelper: r.resolveHelper(ctx, identity.UserID),
	}
}

// resolveAdmin はトークンのクレームを優先し、クレームがない場合のみuser_rolesを参照する。
func (r *Resolver) resolveAdmin(ctx context.Context, identity *model.Identity) bool {
	if identity.AdminClaim != nil {
		return *identity.AdminClaim
	}

	isAdmin, err := r.roles.IsAdmin(ctx, identity.UserID)
	if err != nil {
		r.logger.Warn("管理者ロールの判定に失敗しました",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return isAdmin
}

func (r *Resolver) resolveHelper(ctx context.Context, userID string) *bool {
	ctx, cancel := context.WithTimeout(ctx, r.helperTimeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := r.roles.IsApprovedHelper(ctx, userID)
		done <- result{ok: ok, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			r.logger.Warn("ヘルパー判定に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", res.err.Error()),
			)
			return nil
		}
		return &res.ok
	case <-ctx.Done():
		r.logger.Warn("ヘルパー判定がタイムアウトしました",
			slog.String("user_id", userID),
			slog.Duration("timeout", r.helperTimeout),
		)
		return nil
	}
}
