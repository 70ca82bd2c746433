package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有 Record* 方法在接收者为 nil 时什么都不做，命令行模式可不启用指标。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 提供商调用指标
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// 会话指标
	SessionsCreated *prometheus.CounterVec
	SessionsExpired prometheus.Counter

	// 轮询指标
	PollTicksTotal    *prometheus.CounterVec
	PollOutcomesTotal *prometheus.CounterVec

	// 存储指标
	StoreOperationsTotal *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标，注册到独立的 registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_provider_requests_total",
				Help: "Total number of requests sent to mailbox providers",
			},
			[]string{"provider", "operation", "outcome"},
		),

		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_provider_request_duration_seconds",
				Help:    "Provider request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"provider", "operation"},
		),

		SessionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_sessions_created_total",
				Help: "Total number of mailbox sessions created",
			},
			[]string{"provider"},
		),

		SessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_sessions_expired_total",
				Help: "Total number of expired sessions purged from the store",
			},
		),

		PollTicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_poll_ticks_total",
				Help: "Total number of poll ticks issued",
			},
			[]string{"provider"},
		),

		PollOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_poll_outcomes_total",
				Help: "Terminal states reached by polling operations",
			},
			[]string{"state"},
		),

		StoreOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_store_operations_total",
				Help: "Total number of session store operations",
			},
			[]string{"operation", "outcome"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordProviderRequest 记录一次提供商调用
func (m *Metrics) RecordProviderRequest(provider, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordSessionCreated 记录会话创建
func (m *Metrics) RecordSessionCreated(provider string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(provider).Inc()
}

// RecordSessionsExpired 记录清理的过期会话数
func (m *Metrics) RecordSessionsExpired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsExpired.Add(float64(count))
}

// RecordPollTick 记录一次轮询
func (m *Metrics) RecordPollTick(provider string) {
	if m == nil {
		return
	}
	m.PollTicksTotal.WithLabelValues(provider).Inc()
}

// RecordPollOutcome 记录轮询终态
func (m *Metrics) RecordPollOutcome(state string) {
	if m == nil {
		return
	}
	m.PollOutcomesTotal.WithLabelValues(state).Inc()
}

// RecordStoreOperation 记录存储操作
func (m *Metrics) RecordStoreOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(kind, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
