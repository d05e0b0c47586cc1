package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Bridge request rate by route template. Watch for: a presentation layer stuck in a retry loop.
	HTTPRequestsTotal *prometheus.CounterVec

	// Bridge request latency. Should stay in the sub-millisecond range; events are only enqueued.
	HTTPRequestDuration *prometheus.HistogramVec

	// Station fetches by outcome (success, error, circuit_open).
	StationFetchesTotal *prometheus.CounterVec

	// Station round-trip latency. A hung request never lands here.
	StationFetchDuration *prometheus.HistogramVec

	// Station fetch failures by category. Each one means the panel showed "no data".
	StationFetchErrorsTotal *prometheus.CounterVec

	// Fetches started but not yet completed. Grows when the station hangs.
	StationFetchesInFlight prometheus.Gauge

	// Events processed by the applet loop, by kind.
	AppletEventsTotal *prometheus.CounterVec

	// Events dropped because the loop queue was full or the loop had stopped.
	AppletEventsDroppedTotal *prometheus.CounterVec

	// 1 while the popover is open.
	PopupOpen prometheus.Gauge

	// Failed settings writes by field. The in-memory value is kept regardless.
	SettingsWriteErrorsTotal *prometheus.CounterVec

	// Bridge event requests denied by the rate limiter (429).
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of bridge HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "Bridge HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	StationFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationFetchesTotal",
			Help: "Total number of weather station fetches by outcome",
		},
		[]string{"status"},
	)
	StationFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stationFetchDurationSeconds",
			Help:    "Weather station round-trip latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	StationFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationFetchErrorsTotal",
			Help: "Weather station fetch failures by category",
		},
		[]string{"category"},
	)
	StationFetchesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stationFetchesInFlight",
			Help: "Number of station fetches currently running",
		},
	)
	AppletEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appletEventsTotal",
			Help: "Events processed by the applet loop",
		},
		[]string{"event"},
	)
	AppletEventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appletEventsDroppedTotal",
			Help: "Events that could not be queued for the applet loop",
		},
		[]string{"event"},
	)
	PopupOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "appletPopupOpen",
			Help: "1 while the applet popover is open",
		},
	)
	SettingsWriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settingsWriteErrorsTotal",
			Help: "Failed writes of persisted applet settings by field",
		},
		[]string{"field"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of bridge requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration,
		StationFetchesTotal, StationFetchDuration, StationFetchErrorsTotal, StationFetchesInFlight,
		AppletEventsTotal, AppletEventsDroppedTotal, PopupOpen,
		SettingsWriteErrorsTotal,
		RateLimitDeniedTotal,
	)
}

// RecordPopup sets the popup gauge.
func RecordPopup(open bool) {
	if open {
		PopupOpen.Set(1)
		return
	}
	PopupOpen.Set(0)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
