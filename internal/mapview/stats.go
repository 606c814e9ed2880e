package mapview

import "github.com/savethepaws/pawmap/internal/model"

// Stats は表示中の犬の報告の集計。
type Stats struct {
	Total   int `json:"total"`
	Tagged  int `json:"tagged"`
	Stray   int `json:"stray"`
	SOS     int `json:"sos"`
	TagWish int `json:"tag_wish"`
}

// ComputeStats は報告一覧を1回走査して種別ごとに集計する。
func ComputeStats(dogs []model.DogReport) Stats {
	s := Stats{Total: len(dogs)}
	for _, d := range dogs {
		switch d.ReportType {
		case model.ReportTypeSave:
			s.Tagged++
		case model.ReportTypeStray:
			s.Stray++
		case model.ReportTypeSOS:
			s.SOS++
		case model.ReportTypeVaccinationWish:
			s.TagWish++
		}
	}
	return s
}

// StatEntry は統計パネルの1項目。
type StatEntry struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// StatsPanel は統計パネルの表示項目を返す。
// 非昇格の閲覧者にはタグ付き頭数の1項目のみ、昇格した閲覧者には種別ごとの4項目を返す。
func StatsPanel(s Stats, elevated bool) []StatEntry {
	if !elevated {
		return []StatEntry{{Label: "Safe dogs", Value: s.Tagged, Color: "safe"}}
	}
	return []StatEntry{
		{Label: "Tagged", Value: s.Tagged, Color: "green"},
		{Label: "Stray", Value: s.Stray, Color: "yellow"},
		{Label: "SOS", Value: s.SOS, Color: "red"},
		{Label: "Tag Wish", Value: s.TagWish, Color: "purple"},
	}
}
