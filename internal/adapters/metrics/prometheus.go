package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kyc"

// Prometheus records workflow counters and HTTP latency on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	submissions *prometheus.CounterVec
	reviews     *prometheus.CounterVec
	logins      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

func New() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Prometheus{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "submissions_total",
			Help:      "KYC submissions by outcome.",
		}, []string{"outcome"}),
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "reviews_total",
			Help:      "Completed reviews by resulting status.",
		}, []string{"status"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Admin login attempts by result.",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
}

func (p *Prometheus) SubmissionAccepted() {
	p.submissions.WithLabelValues("accepted").Inc()
}

// SubmissionFailed counts a refused submission; reason is one of
// validation, duplicate, upload or persistence.
func (p *Prometheus) SubmissionFailed(reason string) {
	p.submissions.WithLabelValues(reason).Inc()
}

func (p *Prometheus) Reviewed(status domain.Status) {
	p.reviews.WithLabelValues(string(status)).Inc()
}

func (p *Prometheus) LoginAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	p.logins.WithLabelValues(result).Inc()
}

// Middleware labels requests by route pattern rather than raw path so ids
// do not explode cardinality.
func (p *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			p.httpInFlight.Inc()
			defer p.httpInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			p.httpDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
			return err
		}
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
