package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ceats_feed_events_total",
			Help: "Change feed events handled, by event kind",
		},
		[]string{"kind"},
	)

	DetailFetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ceats_detail_fetch_failures_total",
			Help: "Order detail fetches that failed after a feed event",
		},
	)

	AlarmsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ceats_alarms_started_total",
			Help: "Looping alarms started",
		},
	)

	AlarmsStopped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ceats_alarms_stopped_total",
			Help: "Looping alarms stopped",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ceats_dashboard_sessions_active",
			Help: "Currently connected dashboard sessions",
		},
	)

	OrdersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ceats_orders_created_total",
			Help: "Orders accepted through the intake API",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FeedEventsTotal,
		DetailFetchFailures,
		AlarmsStarted,
		AlarmsStopped,
		ActiveSessions,
		OrdersCreated,
	)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
