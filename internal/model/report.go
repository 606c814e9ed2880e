package model

import "time"

// ReportType は犬の目撃報告の種別を表す。作成後は変更されない。
type ReportType string

const (
	// ReportTypeSave はタグ付き・ワクチン接種済みで安全な犬。
	ReportTypeSave ReportType = "save"
	// ReportTypeStray はタグのない野良犬。
	ReportTypeStray ReportType = "stray"
	// ReportTypeSOS は緊急の助けが必要な犬。
	ReportTypeSOS ReportType = "sos"
	// ReportTypeVaccinationWish はタグ付け・ワクチン接種が希望されている犬。
	ReportTypeVaccinationWish ReportType = "vaccination_wish"
)

// ReportTypes は全報告種別を表示順で返す。
func ReportTypes() []ReportType {
	return []ReportType{ReportTypeSave, ReportTypeStray, ReportTypeSOS, ReportTypeVaccinationWish}
}

// Valid は報告種別が既知の値かどうかを返す。
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeSave, ReportTypeStray, ReportTypeSOS, ReportTypeVaccinationWish:
		return true
	}
	return false
}

// DogReport は地図上に表示される犬の報告を表す。
type DogReport struct {
	ID          string     `json:"id"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	ReportType  ReportType `json:"report_type"`
	Approved    bool       `json:"approved"`
	PhotoURL    string     `json:"photo_url,omitempty"`
	ReporterID  string     `json:"reporter_id"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FacilityCategory は施設の種別を表す。
type FacilityCategory string

const (
	// FacilityVet は動物病院。
	FacilityVet FacilityCategory = "vet"
	// FacilityPawFriendHome は犬の預かりに協力する家庭。
	FacilityPawFriendHome FacilityCategory = "pawfriend_home"
)

// Facility は地図上に表示される施設を表す。このサービスからは読み取り専用。
type Facility struct {
	ID        string           `json:"id"`
	Lat       float64          `json:"lat"`
	Lng       float64          `json:"lng"`
	Category  FacilityCategory `json:"category"`
	Name      string           `json:"name"`
	Address   string           `json:"address,omitempty"`
	Phone     string           `json:"phone,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// HelperApplication はヘルパー申請の行を表す。
type HelperApplication struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// HelperStatusApproved は承認済みヘルパー申請のステータス。
const HelperStatusApproved = "approved"
