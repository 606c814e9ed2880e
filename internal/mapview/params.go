package mapview

import (
	"math"
	"net/url"
	"strconv"
)

const (
	// DefaultZoom は中心指定がない場合のズーム。
	DefaultZoom = 13
	// FocusZoom は座標または報告が指定された場合のズーム。
	FocusZoom = 15
)

// LatLng は地図上の座標。
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCenter はTaghazoutの中心座標。
var DefaultCenter = LatLng{Lat: 30.5447, Lng: -9.7092}

// Params はURLクエリから得られる地図の初期表示設定。
type Params struct {
	Center LatLng
	Zoom   int
	// HasCenter はlat/lngが明示的に指定されたことを示す。
	HasCenter bool
	FocusID   string
}

// ParseParams はlat, lng, dogクエリを解釈する。
// lat/lngの両方が数値として解釈できる場合のみ中心を指定し、ズームをFocusZoomにする。
func ParseParams(q url.Values) Params {
	p := Params{
		Center:  DefaultCenter,
		Zoom:    DefaultZoom,
		FocusID: q.Get("dog"),
	}

	lat, latOK := parseCoordinate(q.Get("lat"), 90)
	lng, lngOK := parseCoordinate(q.Get("lng"), 180)
	if latOK && lngOK {
		p.Center = LatLng{Lat: lat, Lng: lng}
		p.Zoom = FocusZoom
		p.HasCenter = true
	}
	return p
}

func parseCoordinate(raw string, limit float64) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, false
	}
	return v, true
}
