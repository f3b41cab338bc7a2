package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skills"

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	gateDecisionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Request gate decisions by outcome.",
	}, []string{"outcome"})

	quotaRolloversTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quota",
		Name:      "rollovers_total",
		Help:      "Per-account window rollovers applied on request.",
	})

	extractionDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "extraction",
		Name:      "duration_seconds",
		Help:      "Skill extraction latency by result.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"status"})

	webhookEventsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Billing webhook events by type and result.",
	}, []string{"event_type", "result"})

	webhookRejectionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_rejections_total",
		Help:      "Billing webhook deliveries rejected before dispatch.",
	}, []string{"reason"})

	providerCallsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "provider_calls_total",
		Help:      "Outbound billing provider API calls.",
	}, []string{"endpoint", "status"})

	sweepRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweep",
		Name:      "runs_total",
		Help:      "Monthly counter sweep runs.",
	}, []string{"status"})

	sweepAccountsReset = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sweep",
		Name:      "last_accounts_reset",
		Help:      "Accounts reset by the most recent sweep.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry exposes the collector registry, mostly for tests.
func Registry() *prometheus.Registry {
	return registry
}

func RecordGateDecision(outcome string) {
	gateDecisionsTotal.WithLabelValues(outcome).Inc()
}

func IncQuotaRollover() {
	quotaRolloversTotal.Inc()
}

// ObserveExtraction records one extraction call.
func ObserveExtraction(d time.Duration, status string) {
	if d < 0 {
		d = 0
	}
	extractionDuration.WithLabelValues(status).Observe(d.Seconds())
}

func RecordWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

func RecordWebhookRejection(reason string) {
	webhookRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordProviderCall(endpoint, status string) {
	providerCallsTotal.WithLabelValues(endpoint, status).Inc()
}

func RecordSweep(reset int64, err error) {
	if err != nil {
		sweepRunsTotal.WithLabelValues("error").Inc()
		return
	}
	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepAccountsReset.Set(float64(reset))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return gin.WrapH(h)
}
