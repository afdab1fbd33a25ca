// Package metrics はPrometheus形式のアプリケーションメトリクスを提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はアプリケーション全体のメトリクスを保持する。
// nilレシーバでも各記録メソッドは安全に動作するため、メトリクスが
// 不要な構成ではnilを渡せる。
type Collector struct {
	registry *prometheus.Registry

	fetchRuns        *prometheus.CounterVec
	articlesImported prometheus.Counter
	imageUploads     *prometheus.CounterVec
	viewCountDrops   prometheus.Counter
	httpDuration     *prometheus.HistogramVec
}

// NewCollector はCollectorの新しいインスタンスを生成し、
// 専用レジストリに全メトリクスを登録する。
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		fetchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsportal_fetch_runs_total",
			Help: "ソースフェッチの実行回数（結果別）",
		}, []string{"result"}),
		articlesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsportal_articles_imported_total",
			Help: "取り込みに成功した記事数",
		}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsportal_image_uploads_total",
			Help: "画像アップロードの回数（結果別）",
		}, []string{"result"}),
		viewCountDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsportal_view_count_drops_total",
			Help: "キュー満杯で破棄された閲覧数加算の回数",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsportal_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	registry.MustRegister(
		c.fetchRuns,
		c.articlesImported,
		c.imageUploads,
		c.viewCountDrops,
		c.httpDuration,
	)

	return c
}

// Handler はメトリクスを公開するHTTPハンドラを返す。
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordFetchSuccess はソースフェッチの成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	if c == nil {
		return
	}
	c.fetchRuns.WithLabelValues("success").Inc()
}

// RecordFetchFailure はソースフェッチの失敗を記録する。
func (c *Collector) RecordFetchFailure() {
	if c == nil {
		return
	}
	c.fetchRuns.WithLabelValues("failure").Inc()
}

// RecordArticlesImported は取り込みに成功した記事数を加算する。
func (c *Collector) RecordArticlesImported(count int) {
	if c == nil || count <= 0 {
		return
	}
	c.articlesImported.Add(float64(count))
}

// RecordImageUpload は画像アップロードの結果を記録する。
func (c *Collector) RecordImageUpload(success bool) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	c.imageUploads.WithLabelValues(result).Inc()
}

// RecordViewCountDrop はキュー満杯による閲覧数加算の破棄を記録する。
func (c *Collector) RecordViewCountDrop() {
	if c == nil {
		return
	}
	c.viewCountDrops.Inc()
}

// RecordHTTPRequest はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
