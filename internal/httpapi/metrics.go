package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"swapd/pkg/types"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swapd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	watchPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "swapd",
			Subsystem: "watch",
			Name:      "polls_total",
			Help:      "Total number of watch poll ticks",
		},
	)

	watchRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swapd",
			Subsystem: "watch",
			Name:      "restarts_total",
			Help:      "Restart commands issued, by outcome",
		},
		[]string{"outcome"},
	)

	watchBaselineSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "swapd",
			Subsystem: "watch",
			Name:      "baseline_seconds",
			Help:      "Last observed mtime of the watched file (unix seconds)",
		},
	)

	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swapd",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Reconciliation runs, by result",
		},
		[]string{"result"},
	)

	syncFilesCopiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "swapd",
			Subsystem: "sync",
			Name:      "files_copied_total",
			Help:      "Files copied by reconciliation",
		},
	)

	syncBytesCopiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "swapd",
			Subsystem: "sync",
			Name:      "bytes_copied_total",
			Help:      "Bytes copied by reconciliation",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		watchPollsTotal,
		watchRestartsTotal,
		watchBaselineSeconds,
		syncRunsTotal,
		syncFilesCopiedTotal,
		syncBytesCopiedTotal,
	)
}

// ObservePoll counts one watch tick.
func ObservePoll() { watchPollsTotal.Inc() }

// ObserveRestart records a restart event and moves the baseline gauge.
func ObserveRestart(ev types.RestartEvent) {
	outcome := "ok"
	if ev.Err != "" {
		outcome = "error"
	}
	watchRestartsTotal.WithLabelValues(outcome).Inc()
	watchBaselineSeconds.Set(float64(ev.Baseline.Unix()))
}

// SetBaseline seeds the baseline gauge at supervisor start.
func SetBaseline(t time.Time) { watchBaselineSeconds.Set(float64(t.Unix())) }

// ObserveSync records one reconciliation run.
func ObserveSync(res types.SyncResult, err error) {
	switch {
	case err != nil:
		syncRunsTotal.WithLabelValues("error").Inc()
	case res.Skipped:
		syncRunsTotal.WithLabelValues("skipped").Inc()
	default:
		syncRunsTotal.WithLabelValues("ok").Inc()
	}
	syncFilesCopiedTotal.Add(float64(res.FilesCopied))
	syncBytesCopiedTotal.Add(float64(res.BytesCopied))
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(sr, r)
		httpRequestsTotal.WithLabelValues(routePatternOrPath(r), r.Method, strconv.Itoa(sr.status)).Inc()
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
