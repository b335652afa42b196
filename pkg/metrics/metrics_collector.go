package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器。所有方法对 nil 接收者安全，测试中可直接传 nil
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 业务指标
	supportsRecorded   *prometheus.CounterVec
	coinsRecorded      prometheus.Counter
	recomputeDuration  prometheus.Histogram
	recomputeSupporter prometheus.Histogram
	goalsReached       prometheus.Counter
	commentsCreated    prometheus.Counter
	reactionsChanged   *prometheus.CounterVec

	// 后台任务
	backgroundFailures *prometheus.CounterVec
	workerQueueDepth   prometheus.Gauge
}

// NewMetricsCollector 在指定注册表上创建指标
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)
	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		supportsRecorded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdvote_supports_recorded_total",
				Help: "Support contributions recorded, by outcome",
			},
			[]string{"outcome"},
		),

		coinsRecorded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "crowdvote_coins_recorded_total",
				Help: "Coins added to campaign supports",
			},
		),

		recomputeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crowdvote_rank_recompute_duration_seconds",
				Help:    "Duration of a full campaign re-rank",
				Buckets: prometheus.DefBuckets,
			},
		),

		recomputeSupporter: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crowdvote_rank_recompute_supporters",
				Help:    "Supporters touched by a single campaign re-rank",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		goalsReached: f.NewCounter(
			prometheus.CounterOpts{
				Name: "crowdvote_campaign_goals_reached_total",
				Help: "Campaigns transitioned to goal_reached",
			},
		),

		commentsCreated: f.NewCounter(
			prometheus.CounterOpts{
				Name: "crowdvote_comments_created_total",
				Help: "Comments and replies created",
			},
		),

		reactionsChanged: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdvote_comment_reactions_total",
				Help: "Comment reaction writes, by action",
			},
			[]string{"action"},
		),

		backgroundFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdvote_background_failures_total",
				Help: "Best-effort steps that failed and were logged",
			},
			[]string{"step"},
		),

		workerQueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "crowdvote_worker_queue_depth",
				Help: "Tasks waiting in the background worker queue",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSupport 记录一次助力
func (m *MetricsCollector) RecordSupport(coins int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.supportsRecorded.WithLabelValues("error").Inc()
		return
	}
	m.supportsRecorded.WithLabelValues("ok").Inc()
	m.coinsRecorded.Add(float64(coins))
}

// RecordRecompute 记录一次全量重排
func (m *MetricsCollector) RecordRecompute(supporters int, duration time.Duration) {
	if m == nil {
		return
	}
	m.recomputeDuration.Observe(duration.Seconds())
	m.recomputeSupporter.Observe(float64(supporters))
}

func (m *MetricsCollector) RecordGoalReached() {
	if m == nil {
		return
	}
	m.goalsReached.Inc()
}

func (m *MetricsCollector) RecordComment() {
	if m == nil {
		return
	}
	m.commentsCreated.Inc()
}

func (m *MetricsCollector) RecordReaction(action string) {
	if m == nil {
		return
	}
	m.reactionsChanged.WithLabelValues(action).Inc()
}

// RecordBackgroundFailure 记录被吞掉的次要步骤失败
func (m *MetricsCollector) RecordBackgroundFailure(step string) {
	if m == nil {
		return
	}
	m.backgroundFailures.WithLabelValues(step).Inc()
}

func (m *MetricsCollector) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.workerQueueDepth.Set(float64(depth))
}

var (
	globalCollector *MetricsCollector
	once            sync.Once
)

// GetGlobalCollector 获取注册在默认注册表上的收集器
func GetGlobalCollector() *MetricsCollector {
	once.Do(func() {
		globalCollector = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
	return globalCollector
}
