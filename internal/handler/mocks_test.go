package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/savethepaws/pawmap/internal/mapview"
	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/notify"
	"github.com/savethepaws/pawmap/internal/photo"
	"github.com/savethepaws/pawmap/internal/query"
	"github.com/savethepaws/pawmap/internal/report"
)

// --- モック定義 ---

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// mockMapData はMapDataServiceのモック実装。
type mockMapData struct {
	listDogsFn           func(ctx context.Context, onlyApproved bool) (query.Result[[]model.DogReport], error)
	listFacilitiesFn     func(ctx context.Context) (query.Result[[]model.Facility], error)
	snapshotDogsFn       func(ctx context.Context, onlyApproved bool) query.Result[[]model.DogReport]
	snapshotFacilitiesFn func(ctx context.Context) query.Result[[]model.Facility]
}

func (m *mockMapData) ListDogs(ctx context.Context, onlyApproved bool) (query.Result[[]model.DogReport], error) {
	if m.listDogsFn != nil {
		return m.listDogsFn(ctx, onlyApproved)
	}
	return query.Result[[]model.DogReport]{}, nil
}

func (m *mockMapData) ListFacilities(ctx context.Context) (query.Result[[]model.Facility], error) {
	if m.listFacilitiesFn != nil {
		return m.listFacilitiesFn(ctx)
	}
	return query.Result[[]model.Facility]{}, nil
}

func (m *mockMapData) SnapshotDogs(ctx context.Context, onlyApproved bool) query.Result[[]model.DogReport] {
	if m.snapshotDogsFn != nil {
		return m.snapshotDogsFn(ctx, onlyApproved)
	}
	return query.Result[[]model.DogReport]{}
}

func (m *mockMapData) SnapshotFacilities(ctx context.Context) query.Result[[]model.Facility] {
	if m.snapshotFacilitiesFn != nil {
		return m.snapshotFacilitiesFn(ctx)
	}
	return query.Result[[]model.Facility]{}
}

// failingRenderer は地図ページの描画だけを失敗させるPageRenderer。
type failingRenderer struct {
	*mapview.Renderer
	panics bool
	calls  int
}

func (f *failingRenderer) RenderPage(w io.Writer, p mapview.Page) error {
	f.calls++
	if f.panics {
		panic("tile layer crashed")
	}
	return errors.New("render failed")
}

// mockCreator はReportCreatorのモック実装。
type mockCreator struct {
	createDogFn func(ctx context.Context, reporterID string, input report.CreateDogInput) (*model.DogReport, error)
}

func (m *mockCreator) CreateDog(ctx context.Context, reporterID string, input report.CreateDogInput) (*model.DogReport, error) {
	if m.createDogFn != nil {
		return m.createDogFn(ctx, reporterID, input)
	}
	return &model.DogReport{ID: "new"}, nil
}

// mockIntake はPhotoIntakeのモック実装。
type mockIntake struct {
	intakeFn func(ctx context.Context, ownerID string, header photo.FileHeader, data []byte, listener photo.Listener) (*photo.Result, error)
	calls    int
}

func (m *mockIntake) Intake(ctx context.Context, ownerID string, header photo.FileHeader, data []byte, listener photo.Listener) (*photo.Result, error) {
	m.calls++
	if m.intakeFn != nil {
		return m.intakeFn(ctx, ownerID, header, data, listener)
	}
	return &photo.Result{}, nil
}

// mockNotifier はApplicationNotifierのモック実装。
type mockNotifier struct {
	notifyFn func(ctx context.Context, app notify.Application) error
	calls    int
}

func (m *mockNotifier) Notify(ctx context.Context, app notify.Application) error {
	m.calls++
	if m.notifyFn != nil {
		return m.notifyFn(ctx, app)
	}
	return nil
}

// mockRecorder は地図描画失敗と通知結果の記録先のモック実装。
type mockRecorder struct {
	renderFailures int
	notifications  []string
}

func (m *mockRecorder) RecordMapRenderFailure() { m.renderFailures++ }

func (m *mockRecorder) RecordNotification(outcome string) {
	m.notifications = append(m.notifications, outcome)
}

// --- HTMLヘルパー ---

func parseHTML(body string) (*html.Node, error) {
	return html.Parse(strings.NewReader(body))
}

// findByID はid属性が一致する要素を返す。
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func testDogs() []model.DogReport {
	return []model.DogReport{
		{ID: "d-save", Lat: 30.54, Lng: -9.70, ReportType: model.ReportTypeSave, Approved: true, Name: "Luna"},
		{ID: "d-sos", Lat: 30.55, Lng: -9.71, ReportType: model.ReportTypeSOS, Approved: false, Name: "Rex"},
	}
}

func testFacilities() []model.Facility {
	return []model.Facility{
		{ID: "f-vet", Lat: 30.50, Lng: -9.69, Category: model.FacilityVet, Name: "Clinique"},
	}
}

// findAll はclass属性に指定クラスを含む要素をすべて返す。
func findAll(n *html.Node, class string) []*html.Node {
	if n == nil {
		return nil
	}
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, c := range strings.Fields(attr(n, "class")) {
				if c == class {
					found = append(found, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}
