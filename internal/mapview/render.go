package mapview

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticHandler は地図ページが読み込むスクリプトを配信する。/static/ 配下にマウントする。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets are missing: %v", err))
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Page は地図ページのテンプレート入力。
type Page struct {
	View    View
	Loading bool
	// Degraded は描画に失敗し代替パネルを表示することを示す。
	Degraded bool
	CanRetry bool
	// Failures は連続して描画に失敗した回数。
	Failures int
	// RetryURL は再試行リンクの遷移先。
	RetryURL string
}

// Renderer は地図ページをHTMLとして描画する。
type Renderer struct {
	page     *template.Template
	fallback *template.Template
	dogs     *template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	page, err := template.ParseFS(templateFS, "templates/layout.html.tmpl", "templates/map.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("地図テンプレートの解析に失敗しました: %w", err)
	}
	fallback, err := template.ParseFS(templateFS, "templates/layout.html.tmpl", "templates/fallback.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("代替テンプレートの解析に失敗しました: %w", err)
	}
	dogs, err := template.ParseFS(templateFS, "templates/layout.html.tmpl", "templates/dogs.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("一覧テンプレートの解析に失敗しました: %w", err)
	}
	return &Renderer{page: page, fallback: fallback, dogs: dogs}, nil
}

// RenderPage は地図ページを描画する。
func (r *Renderer) RenderPage(w io.Writer, p Page) error {
	return r.page.ExecuteTemplate(w, "layout", p)
}

// RenderFallback は地図を表示できない場合の代替パネルを描画する。
// 再試行リンクはCanRetryがtrueの場合のみ表示される。
func (r *Renderer) RenderFallback(w io.Writer, p Page) error {
	return r.fallback.ExecuteTemplate(w, "layout", p)
}

// RenderDogs は犬の一覧ページを描画する。
func (r *Renderer) RenderDogs(w io.Writer, p DogsPage) error {
	return r.dogs.ExecuteTemplate(w, "layout", p)
}
