// Package mapview は地図画面の描画データ（マーカー、凡例、統計）と
// 描画失敗を局所化する境界を提供する。
package mapview

import "github.com/savethepaws/pawmap/internal/model"

// マーカー種別
const (
	KindDog      = "dog"
	KindFacility = "facility"
)

// Style はマーカーの色とアイコン。Badgeは施設用の角丸バッジ表示を示す。
type Style struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Badge bool   `json:"badge"`
}

var dogStyles = map[model.ReportType]Style{
	model.ReportTypeSave:            {Color: "green", Icon: "check"},
	model.ReportTypeStray:           {Color: "yellow", Icon: "alert"},
	model.ReportTypeSOS:             {Color: "red", Icon: "warning"},
	model.ReportTypeVaccinationWish: {Color: "purple", Icon: "syringe"},
}

var facilityStyles = map[model.FacilityCategory]Style{
	model.FacilityVet:           {Color: "red", Icon: "stethoscope", Badge: true},
	model.FacilityPawFriendHome: {Color: "primary", Icon: "house", Badge: true},
}

// DogStyle は報告種別に対応するスタイルを返す。
// showReportTypes=falseの場合は種別に関係なく安全（save）のスタイルを返す。
func DogStyle(t model.ReportType, showReportTypes bool) Style {
	if !showReportTypes {
		return dogStyles[model.ReportTypeSave]
	}
	if s, ok := dogStyles[t]; ok {
		return s
	}
	return dogStyles[model.ReportTypeSave]
}

// FacilityStyle は施設種別に対応するスタイルを返す。
func FacilityStyle(c model.FacilityCategory) Style {
	if s, ok := facilityStyles[c]; ok {
		return s
	}
	return facilityStyles[model.FacilityVet]
}

// Marker は地図上の1エンティティの表示データ。
type Marker struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Category string  `json:"category"`
	Style    Style   `json:"style"`
	Label    string  `json:"label,omitempty"`
	PhotoURL string  `json:"photo_url,omitempty"`
	Focused  bool    `json:"focused,omitempty"`
}

// MarkerOptions はマーカー生成のオプション。
type MarkerOptions struct {
	// ShowReportTypes がfalseの場合、全ての犬マーカーが安全のスタイルになり種別も伏せられる。
	ShowReportTypes bool
	// FocusID に一致するマーカーにFocusedを付ける。
	FocusID string
}

// BuildMarkers はエンティティごとに1つのマーカーを生成する。
func BuildMarkers(dogs []model.DogReport, facilities []model.Facility, opts MarkerOptions) []Marker {
	markers := make([]Marker, 0, len(dogs)+len(facilities))

	for _, d := range dogs {
		category := string(d.ReportType)
		if !opts.ShowReportTypes {
			category = string(model.ReportTypeSave)
		}
		markers = append(markers, Marker{
			ID:       d.ID,
			Kind:     KindDog,
			Lat:      d.Lat,
			Lng:      d.Lng,
			Category: category,
			Style:    DogStyle(d.ReportType, opts.ShowReportTypes),
			Label:    d.Name,
			PhotoURL: d.PhotoURL,
			Focused:  opts.FocusID != "" && d.ID == opts.FocusID,
		})
	}

	for _, f := range facilities {
		markers = append(markers, Marker{
			ID:       f.ID,
			Kind:     KindFacility,
			Lat:      f.Lat,
			Lng:      f.Lng,
			Category: string(f.Category),
			Style:    FacilityStyle(f.Category),
			Label:    f.Name,
			Focused:  opts.FocusID != "" && f.ID == opts.FocusID,
		})
	}

	return markers
}
