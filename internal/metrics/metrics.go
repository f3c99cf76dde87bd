package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Taskora backend.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics.
	AuthFailuresTotal  prometheus.Counter
	AuthSuccessesTotal prometheus.Counter

	// Project session metrics.
	SessionLoginsTotal        prometheus.Counter
	SessionLogoutsTotal       prometheus.Counter
	ContributionMinutesTotal  prometheus.Counter
	LoginRateLimitRejectTotal prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskora_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskora_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskora_auth_failures_total",
			Help: "Total number of failed login attempts.",
		}),

		AuthSuccessesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskora_auth_successes_total",
			Help: "Total number of successful logins.",
		}),

		SessionLoginsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskora_project_session_logins_total",
			Help: "Total number of project session logins recorded.",
		}),

		SessionLogoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskora_project_session_logouts_total",
			Help: "Total number of project session logouts recorded.",
		}),

		ContributionMinutesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskora_contribution_minutes_total",
			Help: "Total contribution minutes accrued across all memberships.",
		}),

		LoginRateLimitRejectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskora_login_ratelimit_rejections_total",
			Help: "Total number of login attempts rejected by the rate limiter.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskora_server_start_time_seconds",
			Help: "Unix timestamp of when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.SessionLoginsTotal,
		m.SessionLogoutsTotal,
		m.ContributionMinutesTotal,
		m.LoginRateLimitRejectTotal,
		m.ServerStartTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	return m
}

// RegisterDBCollector attaches the DB pool collector to the registry.
func (m *Metrics) RegisterDBCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}
