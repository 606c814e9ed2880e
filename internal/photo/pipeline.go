package photo

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/savethepaws/pawmap/internal/metrics"
	"github.com/savethepaws/pawmap/internal/model"
	"github.com/savethepaws/pawmap/internal/objectstore"
)

// cacheControlSeconds は保存した写真の公開配信キャッシュ秒数。
const cacheControlSeconds = "3600"

// Recorder は取り込み結果の記録先。
type Recorder interface {
	RecordPhotoUpload(outcome string, size int64)
}

// Result は取り込みに成功した写真の情報。
// PreviewURLはListener.Previewで先に渡しているため、JSONには含めない。
type Result struct {
	URL        string `json:"url"`
	PreviewURL string `json:"-"`
	Path       string `json:"path"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
}

// Pipeline は写真の検証から保存までを行う。
type Pipeline struct {
	store    objectstore.Store
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewPipeline はPipelineを生成する。recorderはnilでもよい。
func NewPipeline(store objectstore.Store, logger *slog.Logger, recorder Recorder) *Pipeline {
	return &Pipeline{
		store:    store,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Intake は写真を取り込み、公開URLを返す。
//
// 検証に失敗した場合は*model.ValidationErrorを返し、プレビューも保存も行わない。
// 検証に通ればlistener.Previewを圧縮開始前に呼び、その後デコード・縮小・JPEG圧縮を行い
// "{ownerID}/{unixMillis}.jpg"に上書きなしで保存する。
// 途中のどの段階で失敗してもlistener.Failedに同一のメッセージを渡し、*model.UploadErrorを返す。
// 自動リトライは行わない。
//
// ストレージへの書き込みはctxのキャンセルから切り離される。
// 呼び出し元が途中で離脱した場合、保存済みの写真は参照されないまま残る。
func (p *Pipeline) Intake(ctx context.Context, ownerID string, header FileHeader, data []byte, listener Listener) (*Result, error) {
	if header.Size == 0 {
		header.Size = int64(len(data))
	}
	if err := Validate(header); err != nil {
		p.record(metrics.OutcomeRejected, 0)
		return nil, err
	}

	previewURL := dataURI(header.ContentType, data)
	listener.Preview(previewURL)

	img, _, err := Decode(data)
	if err != nil {
		return nil, p.fail(listener, ownerID, &model.UploadError{Stage: model.UploadStageDecode, Err: err})
	}

	encoded, width, height, err := Compress(img)
	if err != nil {
		return nil, p.fail(listener, ownerID, &model.UploadError{Stage: model.UploadStageCompress, Err: err})
	}

	key := fmt.Sprintf("%s/%d.jpg", ownerID, p.now().UnixMilli())
	obj, err := p.store.Put(context.WithoutCancel(ctx), key, encoded, "image/jpeg", objectstore.PutOptions{
		Overwrite:    false,
		CacheControl: cacheControlSeconds,
	})
	if err != nil {
		return nil, p.fail(listener, ownerID, &model.UploadError{Stage: model.UploadStageStore, Err: err})
	}

	url := p.store.PublicURL(obj.Path)
	listener.Uploaded(url)
	p.record(metrics.OutcomeSuccess, int64(len(encoded)))

	p.logger.Info("写真を保存しました",
		slog.String("user_id", ownerID),
		slog.String("path", obj.Path),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("original_bytes", len(data)),
		slog.Int("stored_bytes", len(encoded)),
	)

	return &Result{
		URL:        url,
		PreviewURL: previewURL,
		Path:       obj.Path,
		Width:      width,
		Height:     height,
		Size:       int64(len(encoded)),
	}, nil
}

func (p *Pipeline) fail(listener Listener, ownerID string, err *model.UploadError) error {
	p.logger.Error("写真の取り込みに失敗しました",
		slog.String("user_id", ownerID),
		slog.String("stage", string(err.Stage)),
		slog.String("error", err.Error()),
	)
	listener.Failed(model.UploadFailedMessage)
	p.record(metrics.OutcomeFailed, 0)
	return err
}

func (p *Pipeline) record(outcome string, size int64) {
	if p.recorder != nil {
		p.recorder.RecordPhotoUpload(outcome, size)
	}
}

// dataURI は元のバイト列からネットワーク不要のプレビューURLを生成する。
func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
