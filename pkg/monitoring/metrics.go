package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Scheduling metrics
	appointmentsBookedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Total number of appointments booked",
		},
		[]string{"site_id"},
	)

	slotConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_conflicts_total",
			Help: "Total number of booking attempts rejected for slot conflicts",
		},
	)

	// Authentication metrics
	loginFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "login_failures_total",
			Help: "Total number of failed login attempts",
		},
	)

	accountLockoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "account_lockouts_total",
			Help: "Total number of accounts locked for repeated login failures",
		},
	)

	rateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		appointmentsBookedTotal,
		slotConflictsTotal,
		loginFailuresTotal,
		accountLockoutsTotal,
		rateLimitRejectionsTotal,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records a completed HTTP request
func ObserveHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// AppointmentBooked records a successful booking for a site
func AppointmentBooked(siteID string) {
	appointmentsBookedTotal.WithLabelValues(siteID).Inc()
}

// SlotConflict records a booking attempt rejected for overlapping an
// existing appointment
func SlotConflict() {
	slotConflictsTotal.Inc()
}

// LoginFailure records a failed login attempt
func LoginFailure() {
	loginFailuresTotal.Inc()
}

// AccountLockout records an account being locked
func AccountLockout() {
	accountLockoutsTotal.Inc()
}

// RateLimitRejection records a request rejected by the rate limiter
func RateLimitRejection() {
	rateLimitRejectionsTotal.Inc()
}
