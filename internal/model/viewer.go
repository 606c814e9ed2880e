package model

// Identity は検証済みアクセストークンから得られる閲覧者の識別情報。
type Identity struct {
	UserID string
	Email  string
	// AdminClaim はトークンのapp_metadata.roleが"admin"の場合にtrue。
	// nilはクレームが存在しないことを示す。
	AdminClaim *bool
}

// Viewer はリクエストごとに導出される閲覧者の権限集合。永続化しない。
// IsHelperがnilの場合はヘルパー判定が未確定（取得中または失敗）であることを示す。
type Viewer struct {
	UserID   string
	IsAdmin  bool
	IsHelper *bool
}

// Anonymous は未認証閲覧者かどうかを返す。
func (v Viewer) Anonymous() bool {
	return v.UserID == ""
}

// Elevated はヘルパーまたは管理者かどうかを返す。
// ヘルパー判定が未確定の場合は非昇格として扱う。
func (v Viewer) Elevated() bool {
	return v.IsAdmin || (v.IsHelper != nil && *v.IsHelper)
}

// Role はログ・メトリクス用の閲覧者ロール名を返す。
func (v Viewer) Role() string {
	switch {
	case v.IsAdmin:
		return "admin"
	case v.IsHelper != nil && *v.IsHelper:
		return "helper"
	case v.Anonymous():
		return "anonymous"
	default:
		return "user"
	}
}
