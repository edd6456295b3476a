// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordGrant(reason string)
	RecordReset()
	RecordSignup(provider string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	grants         *prometheus.CounterVec
	resets         prometheus.Counter
	signups        *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampcard_grants_total",
			Help: "スタンプ付与の合計数（理由別）",
		}, []string{"reason"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stampcard_resets_total",
			Help: "スタンプリセットの合計数",
		}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampcard_signups_total",
			Help: "新規ユーザー登録の合計数（プロバイダ別）",
		}, []string{"provider"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampcard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stampcard_request_latency_seconds",
			Help:    "リクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.grants,
		c.resets,
		c.signups,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordGrant はスタンプ付与を理由付きで記録する。
func (c *Collector) RecordGrant(reason string) {
	c.grants.WithLabelValues(reason).Inc()
}

// RecordReset はスタンプリセットを記録する。
func (c *Collector) RecordReset() {
	c.resets.Inc()
}

// RecordSignup は新規登録をプロバイダ付きで記録する。
func (c *Collector) RecordSignup(provider string) {
	c.signups.WithLabelValues(provider).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
