package notify

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// displayZone は通知メールの日時表示に使うタイムゾーン名。
const displayZone = "Europe/Berlin"

var germanWeekdays = [...]string{
	"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag",
}

var germanMonths = [...]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

var berlin = mustLoadLocation(displayZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("タイムゾーン %s の読み込みに失敗しました: %v", name, err))
	}
	return loc
}

// FormatGermanDate はベルリン時間の長い日付と短い時刻で整形する。
// 例: "Samstag, 17. Oktober 2026 um 13:45"
func FormatGermanDate(t time.Time) string {
	t = t.In(berlin)
	return fmt.Sprintf("%s, %d. %s %d um %02d:%02d",
		germanWeekdays[t.Weekday()],
		t.Day(),
		germanMonths[t.Month()-1],
		t.Year(),
		t.Hour(),
		t.Minute(),
	)
}
