package mapview

import "github.com/savethepaws/pawmap/internal/model"

// LegendEntry は凡例の1項目。
type LegendEntry struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Style       Style  `json:"style"`
	Facility    bool   `json:"facility"`
}

// LegendEntries は凡例の項目を返す。
// 非昇格の閲覧者には安全な犬の1項目、昇格した閲覧者には報告種別ごとの4項目を返し、
// 施設の2項目はどちらにも含める。
func LegendEntries(elevated bool) []LegendEntry {
	var entries []LegendEntry
	if !elevated {
		entries = append(entries, LegendEntry{
			Label:       "Safe dogs",
			Description: "Vaccinated and tagged dogs",
			Style:       DogStyle(model.ReportTypeSave, false),
		})
	} else {
		entries = append(entries,
			LegendEntry{Label: "Tagged", Description: "Vaccinated and tagged dogs", Style: DogStyle(model.ReportTypeSave, true)},
			LegendEntry{Label: "Stray", Description: "Reported stray, no tag", Style: DogStyle(model.ReportTypeStray, true)},
			LegendEntry{Label: "SOS", Description: "Needs help", Style: DogStyle(model.ReportTypeSOS, true)},
			LegendEntry{Label: "Tag Wish", Description: "Vaccination / tag requested", Style: DogStyle(model.ReportTypeVaccinationWish, true)},
		)
	}

	return append(entries,
		LegendEntry{Label: "Vet", Style: FacilityStyle(model.FacilityVet), Facility: true},
		LegendEntry{Label: "PawFriend", Style: FacilityStyle(model.FacilityPawFriendHome), Facility: true},
	)
}
