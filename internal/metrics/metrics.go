// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 画像アップロード結果のラベル値
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー・ワーカー・サービス層から利用する。
type MetricsCollector interface {
	RecordPhotoUpload(outcome string, size int64)
	RecordCacheResult(key, result string)
	RecordMapRenderFailure()
	RecordNotification(outcome string)
	RecordCacheWarm(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	photoUploads      *prometheus.CounterVec
	photoUploadBytes  prometheus.Histogram
	cacheResults      *prometheus.CounterVec
	mapRenderFailures prometheus.Counter
	notifications     *prometheus.CounterVec
	cacheWarmLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		photoUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pawmap_photo_uploads_total",
			Help: "結果別の写真アップロード数",
		}, []string{"outcome"}),
		photoUploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pawmap_photo_upload_bytes",
			Help:    "圧縮後にストレージへ保存した写真のバイト数",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pawmap_query_cache_total",
			Help: "キー・結果別のクエリキャッシュ参照数",
		}, []string{"key", "result"}),
		mapRenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pawmap_map_render_failures_total",
			Help: "地図描画失敗の合計数",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pawmap_notifications_total",
			Help: "結果別のヘルパー申請通知数",
		}, []string{"outcome"}),
		cacheWarmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pawmap_cache_warm_duration_seconds",
			Help:    "キャッシュウォームサイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.photoUploads,
		c.photoUploadBytes,
		c.cacheResults,
		c.mapRenderFailures,
		c.notifications,
		c.cacheWarmLatency,
	)

	return c
}

// RecordPhotoUpload は写真アップロードの結果を記録する。
// 成功時のみ保存バイト数をヒストグラムに記録する。
func (c *Collector) RecordPhotoUpload(outcome string, size int64) {
	c.photoUploads.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess && size > 0 {
		c.photoUploadBytes.Observe(float64(size))
	}
}

// RecordCacheResult はクエリキャッシュの参照結果（hit/stale/miss/error）を記録する。
func (c *Collector) RecordCacheResult(key, result string) {
	c.cacheResults.WithLabelValues(key, result).Inc()
}

// RecordMapRenderFailure は地図描画失敗を記録する。
func (c *Collector) RecordMapRenderFailure() {
	c.mapRenderFailures.Inc()
}

// RecordNotification は通知送信の結果を記録する。
func (c *Collector) RecordNotification(outcome string) {
	c.notifications.WithLabelValues(outcome).Inc()
}

// RecordCacheWarm はキャッシュウォームサイクルの所要時間を記録する。
func (c *Collector) RecordCacheWarm(duration time.Duration) {
	c.cacheWarmLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスのスクレイプ用に使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// ensure interface compliance
var _ MetricsCollector = (*Collector)(nil)
