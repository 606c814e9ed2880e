package photo

import "sync"

// State は写真取り込みの状態。
type State string

const (
	StateEmpty      State = "empty"
	StatePreviewing State = "previewing"
	StateUploaded   State = "uploaded"
	StateFailed     State = "failed"
)

// Listener は取り込み処理の進行通知を受け取る。
// Previewは圧縮開始前に、UploadedまたはFailedは最後に1回だけ呼ばれる。
type Listener interface {
	Preview(previewURL string)
	Uploaded(url string)
	Failed(message string)
}

// ArtifactState はArtifactのある時点の状態。
type ArtifactState struct {
	State      State
	PreviewURL string
	URL        string
	Message    string
}

// Artifact は1件の写真取り込みの状態を保持するListener実装。
// 確定したURLの変化はonChangeに通知される。削除時は空文字列が通知され、
// 「写真なし」を明示的な状態として扱える。
type Artifact struct {
	mu       sync.Mutex
	state    ArtifactState
	onChange func(url string)
}

// NewArtifact は空の状態のArtifactを生成する。onChangeはnilでもよい。
func NewArtifact(onChange func(url string)) *Artifact {
	return &Artifact{
		state:    ArtifactState{State: StateEmpty},
		onChange: onChange,
	}
}

// Preview はプレビューを表示中の状態にする。以前の確定URLは破棄される。
func (a *Artifact) Preview(previewURL string) {
	a.mu.Lock()
	a.state = ArtifactState{State: StatePreviewing, PreviewURL: previewURL}
	a.mu.Unlock()
}

// Uploaded は確定URLを記録し、onChangeに通知する。
func (a *Artifact) Uploaded(url string) {
	a.mu.Lock()
	a.state.State = StateUploaded
	a.state.URL = url
	a.mu.Unlock()
	a.notify(url)
}

// Failed はプレビューを破棄して失敗状態にする。
func (a *Artifact) Failed(message string) {
	a.mu.Lock()
	a.state = ArtifactState{State: StateFailed, Message: message}
	a.mu.Unlock()
}

// Remove は空の状態に戻し、onChangeに空文字列を通知する。
func (a *Artifact) Remove() {
	a.mu.Lock()
	a.state = ArtifactState{State: StateEmpty}
	a.mu.Unlock()
	a.notify("")
}

// Snapshot は現在の状態を返す。
func (a *Artifact) Snapshot() ArtifactState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Artifact) notify(url string) {
	if a.onChange != nil {
		a.onChange(url)
	}
}

var _ Listener = (*Artifact)(nil)
