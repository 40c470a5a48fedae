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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	RecordRegistration()
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordVaultOperation(operation string)
	RecordProviderValidation(provider string, valid bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	registrations      prometheus.Counter
	loginSuccess       prometheus.Counter
	loginFailure       prometheus.Counter
	vaultOperations    *prometheus.CounterVec
	providerValidation *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aihub_http_requests_total",
			Help: "HTTPリクエストの合計数（メソッド・パス・ステータスコード別）",
		}, []string{"method", "path", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aihub_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aihub_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aihub_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aihub_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
		vaultOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aihub_vault_operations_total",
			Help: "APIキー保管庫の操作数（操作種別）",
		}, []string{"operation"}),
		providerValidation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aihub_provider_validation_total",
			Help: "プロバイダーAPIキー検証の合計数（プロバイダー・結果別）",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.registrations,
		c.loginSuccess,
		c.loginFailure,
		c.vaultOperations,
		c.providerValidation,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの完了を記録する。
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordVaultOperation はAPIキー保管庫の操作（save/delete/validate等）を記録する。
func (c *Collector) RecordVaultOperation(operation string) {
	c.vaultOperations.WithLabelValues(operation).Inc()
}

// RecordProviderValidation はプロバイダーAPIキー検証の結果を記録する。
func (c *Collector) RecordProviderValidation(provider string, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	c.providerValidation.WithLabelValues(provider, result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// アプリケーション本体とは別のリスナーで公開する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
