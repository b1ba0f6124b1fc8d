package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nacoslite_api_requests_total",
			Help: "Total number of API requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nacoslite_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Config store metrics
	ConfigPublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nacoslite_config_publishes_total",
			Help: "Total number of config publish operations",
		},
	)

	ConfigsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nacoslite_configs_total",
			Help: "Total number of live configs",
		},
	)

	// Long-poll metrics
	ActiveListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nacoslite_active_listeners",
			Help: "Number of long-poll listener requests currently held open",
		},
	)

	ListenerWakeups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nacoslite_listener_wakeups_total",
			Help: "Total number of listener requests answered with a change",
		},
	)

	// Registry metrics
	ServicesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nacoslite_services_total",
			Help: "Total number of registered services",
		},
	)

	InstancesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nacoslite_instances_total",
			Help: "Total number of registered instances",
		},
	)

	HeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nacoslite_heartbeats_total",
			Help: "Total number of instance heartbeats processed",
		},
	)
)

func init() {
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ConfigPublishesTotal)
	prometheus.MustRegister(ConfigsTotal)
	prometheus.MustRegister(ActiveListeners)
	prometheus.MustRegister(ListenerWakeups)
	prometheus.MustRegister(ServicesTotal)
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(HeartbeatsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
