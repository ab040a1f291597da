package telemetry

import "net/http"

import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/promhttp"


//=========================================== Telemetry


var (
	Registry = prometheus.NewRegistry()

	UpdatesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterlist",
			Name: "updates_sent_total",
			Help: "Total server list messages dispatched to followers.",
		},
		[]string{"type", "outcome"},
	)

	UpdateRpcDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clusterlist",
			Name: "update_rpc_duration_seconds",
			Help: "Latency of server list update rpcs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
		},
	)

	InFlightUpdates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clusterlist",
			Name: "in_flight_updates",
			Help: "Server list update rpcs currently outstanding.",
		},
	)

	ConcurrentRpcSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clusterlist",
			Name: "concurrent_rpc_slots",
			Help: "Current adaptive size of the dispatcher slot pool.",
		},
	)

	ServerListVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clusterlist",
			Name: "server_list_version",
			Help: "Version of the most recently committed server list update.",
		},
	)

	Masters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clusterlist",
			Name: "masters",
			Help: "Masters currently up.",
		},
	)

	Backups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clusterlist",
			Name: "backups",
			Help: "Backups currently up.",
		},
	)
)

func init() {
	Registry.MustRegister(
		UpdatesSentTotal,
		UpdateRpcDuration,
		InFlightUpdates,
		ConcurrentRpcSlots,
		ServerListVersion,
		Masters,
		Backups,
	)
}

// MetricsHandler exposes /metrics. Mount it on the admin router.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
