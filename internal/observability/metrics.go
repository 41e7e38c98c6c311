package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_delivery_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ad_delivery_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ad_delivery_in_flight",
		Help: "In-flight HTTP requests",
	})
	ImpressionsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_impressions_recorded_total",
		Help: "Impressions written to the ledger",
	})
	ClicksRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_clicks_recorded_total",
		Help: "Clicks written to the ledger",
	})
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_events_dropped_total",
		Help: "Attribution events dropped before reaching the ledger",
	})
	RecordFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_record_failures_total",
			Help: "Ledger write failures by event type",
		}, []string{"type"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight,
		ImpressionsRecorded, ClicksRecorded, EventsDropped, RecordFailures)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
