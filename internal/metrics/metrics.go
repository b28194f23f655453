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
// サービス層・オーケストレーターから利用する。
type MetricsCollector interface {
	RecordChatSuccess()
	RecordChatFailure(reason string)
	RecordToolCall(tool string, success bool)
	RecordLLMLatency(duration time.Duration)
	RecordLLMTokens(promptTokens, completionTokens int64)
	RecordOAuthRefreshSuccess()
	RecordOAuthRefreshFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	chatSuccess  prometheus.Counter
	chatFail     *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	llmLatency   prometheus.Histogram
	llmTokens    *prometheus.CounterVec
	oauthRefresh *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		chatSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hisho_chat_success_total",
			Help: "チャット実行成功の合計数",
		}),
		chatFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hisho_chat_fail_total",
			Help: "チャット実行失敗の合計数（理由別）",
		}, []string{"reason"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hisho_tool_calls_total",
			Help: "LLMツール呼び出しの合計数（ツール名・結果別）",
		}, []string{"tool", "outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hisho_llm_latency_seconds",
			Help:    "LLM呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hisho_llm_tokens_total",
			Help: "LLM使用トークンの合計数（種別ごと）",
		}, []string{"kind"}),
		oauthRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hisho_oauth_refresh_total",
			Help: "OAuthトークンリフレッシュの合計数（結果別）",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hisho_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.chatSuccess,
		c.chatFail,
		c.toolCalls,
		c.llmLatency,
		c.llmTokens,
		c.oauthRefresh,
		c.httpStatus,
	)

	return c
}

// RecordChatSuccess はチャット実行成功を記録する。
func (c *Collector) RecordChatSuccess() {
	c.chatSuccess.Inc()
}

// RecordChatFailure はチャット実行失敗を理由別に記録する。
func (c *Collector) RecordChatFailure(reason string) {
	c.chatFail.WithLabelValues(reason).Inc()
}

// RecordToolCall はツール呼び出しを記録する。
func (c *Collector) RecordToolCall(tool string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordLLMLatency はLLM呼び出しのレイテンシを記録する。
func (c *Collector) RecordLLMLatency(duration time.Duration) {
	c.llmLatency.Observe(duration.Seconds())
}

// RecordLLMTokens はLLMの使用トークン数を記録する。
func (c *Collector) RecordLLMTokens(promptTokens, completionTokens int64) {
	c.llmTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	c.llmTokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// RecordOAuthRefreshSuccess はトークンリフレッシュ成功を記録する。
func (c *Collector) RecordOAuthRefreshSuccess() {
	c.oauthRefresh.WithLabelValues("success").Inc()
}

// RecordOAuthRefreshFailure はトークンリフレッシュ失敗を記録する。
func (c *Collector) RecordOAuthRefreshFailure() {
	c.oauthRefresh.WithLabelValues("failure").Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
