package mapview

import "github.com/savethepaws/pawmap/internal/model"

// View は地図画面1回分の描画データ。
type View struct {
	Markers  []Marker      `json:"markers"`
	Stats    []StatEntry   `json:"stats"`
	Legend   []LegendEntry `json:"legend"`
	Center   LatLng        `json:"center"`
	Zoom     int           `json:"zoom"`
	Elevated bool          `json:"elevated"`
}

// BuildView は報告・施設・表示設定から描画データを組み立てる。
// 種別の内訳は昇格した閲覧者にのみ見せる。
// 中心が明示されずフォーカス対象が見つかった場合は、その位置を中心にする。
func BuildView(dogs []model.DogReport, facilities []model.Facility, params Params, elevated bool) View {
	markers := BuildMarkers(dogs, facilities, MarkerOptions{
		ShowReportTypes: elevated,
		FocusID:         params.FocusID,
	})

	center, zoom := params.Center, params.Zoom
	if !params.HasCenter && params.FocusID != "" {
		for _, m := range markers {
			if m.Focused {
				center = LatLng{Lat: m.Lat, Lng: m.Lng}
				zoom = FocusZoom
				break
			}
		}
	}

	return View{
		Markers:  markers,
		Stats:    StatsPanel(ComputeStats(dogs), elevated),
		Legend:   LegendEntries(elevated),
		Center:   center,
		Zoom:     zoom,
		Elevated: elevated,
	}
}
