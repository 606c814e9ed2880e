package mapview

import "github.com/savethepaws/pawmap/internal/model"

// DogEntry は犬の一覧ページの1行。
type DogEntry struct {
	ID          string
	Name        string
	Description string
	Category    string
	Style       Style
}

// DogsPage は犬の一覧ページのテンプレート入力。地図を表示できない場合の代替導線。
type DogsPage struct {
	Dogs    []DogEntry
	Loading bool
}

// BuildDogEntries は一覧ページの行を組み立てる。
// 昇格していない閲覧者には地図と同じく種別を伏せる。
func BuildDogEntries(dogs []model.DogReport, elevated bool) []DogEntry {
	entries := make([]DogEntry, 0, len(dogs))
	for _, d := range dogs {
		category := string(d.ReportType)
		if !elevated {
			category = string(model.ReportTypeSave)
		}
		entries = append(entries, DogEntry{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Category:    category,
			Style:       DogStyle(d.ReportType, elevated),
		})
	}
	return entries
}
