// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リマインダーサービスや配信ワーカーから利用する。
type MetricsCollector interface {
	RecordPlan(outcome string, pace string, suggestMl int)
	RecordIntakeLogged(amountMl int)
	RecordRemindersClaimed(count int)
	RecordDelivery(channel string, success bool)
	RecordReminderFailed()
	RecordDispatchLatency(duration time.Duration)
	SetRealtimeSessions(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	plans            *prometheus.CounterVec
	suggestMl        prometheus.Histogram
	intakeMl         prometheus.Counter
	intakeLogs       prometheus.Counter
	remindersClaimed prometheus.Counter
	deliveries       *prometheus.CounterVec
	remindersFailed  prometheus.Counter
	dispatchLatency  prometheus.Histogram
	realtimeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydrate_plans_total",
			Help: "リマインダー計画の結果区分・ペース別の合計数",
		}, []string{"outcome", "pace"}),
		suggestMl: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hydrate_suggest_ml",
			Help:    "計画された1回あたりの提案摂取量（ml）",
			Buckets: []float64{50, 120, 200, 250, 300, 350, 400},
		}),
		intakeMl: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydrate_intake_ml_total",
			Help: "記録された摂取量の合計（ml）",
		}),
		intakeLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydrate_intake_logs_total",
			Help: "摂取記録の合計数",
		}),
		remindersClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydrate_reminders_claimed_total",
			Help: "配信ワーカーが取得したリマインダーの合計数",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydrate_deliveries_total",
			Help: "配信チャネル・結果別の配信数",
		}, []string{"channel", "result"}),
		remindersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydrate_reminders_failed_total",
			Help: "再試行上限に達して失敗したリマインダーの合計数",
		}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hydrate_dispatch_latency_seconds",
			Help:    "リマインダー1件の配信レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		realtimeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hydrate_realtime_sessions",
			Help: "接続中のWebSocketセッション数",
		}),
	}

	reg.MustRegister(
		c.plans,
		c.suggestMl,
		c.intakeMl,
		c.intakeLogs,
		c.remindersClaimed,
		c.deliveries,
		c.remindersFailed,
		c.dispatchLatency,
		c.realtimeSessions,
	)

	return c
}

// RecordPlan は計画結果を記録する。提案量は次回通知がある場合のみ観測する。
func (c *Collector) RecordPlan(outcome string, pace string, suggestMl int) {
	c.plans.WithLabelValues(outcome, pace).Inc()
	if outcome == "active" {
		c.suggestMl.Observe(float64(suggestMl))
	}
}

// RecordIntakeLogged は摂取記録を記録する。
func (c *Collector) RecordIntakeLogged(amountMl int) {
	c.intakeLogs.Inc()
	c.intakeMl.Add(float64(amountMl))
}

// RecordRemindersClaimed は取得したリマインダー数を記録する。
func (c *Collector) RecordRemindersClaimed(count int) {
	c.remindersClaimed.Add(float64(count))
}

// RecordDelivery はチャネルごとの配信結果を記録する。
func (c *Collector) RecordDelivery(channel string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.deliveries.WithLabelValues(channel, result).Inc()
}

// RecordReminderFailed は配信失敗の確定を記録する。
func (c *Collector) RecordReminderFailed() {
	c.remindersFailed.Inc()
}

// RecordDispatchLatency は配信のレイテンシを記録する。
func (c *Collector) RecordDispatchLatency(duration time.Duration) {
	c.dispatchLatency.Observe(duration.Seconds())
}

// SetRealtimeSessions は接続中のWebSocketセッション数を設定する。
func (c *Collector) SetRealtimeSessions(count int) {
	c.realtimeSessions.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
