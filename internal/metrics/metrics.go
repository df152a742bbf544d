package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   prometheus.CounterVec
	HTTPRequestDuration prometheus.HistogramVec

	// Engagement metrics
	AgentViewsTotal      prometheus.CounterVec
	AgentViewsDeduped    prometheus.CounterVec
	AgentClicksTotal     prometheus.CounterVec
	AgentSessionsTotal   prometheus.CounterVec
	SessionsDiscarded    prometheus.CounterVec
	RatingsSubmitted     prometheus.CounterVec
	ReviewsSubmitted     prometheus.CounterVec
	HelpfulVotesTotal    prometheus.CounterVec

	// Moderation metrics
	AgentSubmissions  prometheus.CounterVec
	AgentTransitions  prometheus.CounterVec
	UserRegistrations prometheus.CounterVec
	UserTransitions   prometheus.CounterVec

	// Auth metrics
	OTPIssued        prometheus.CounterVec
	OTPVerifications prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),

			AgentViewsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_views_total",
					Help: "Total number of counted agent views",
				},
				[]string{"category"},
			),
			AgentViewsDeduped: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_views_deduped_total",
					Help: "View events suppressed by the rolling-hour dedup window",
				},
				[]string{"category"},
			),
			AgentClicksTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_clicks_total",
					Help: "Total number of agent click events",
				},
				[]string{"click_type"},
			),
			AgentSessionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_sessions_total",
					Help: "Total number of persisted agent sessions",
				},
				[]string{"category"},
			),
			SessionsDiscarded: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_sessions_discarded_total",
					Help: "Session reports discarded as too short",
				},
				[]string{"category"},
			),
			RatingsSubmitted: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_ratings_submitted_total",
					Help: "Rating submissions, new or overwriting",
				},
				[]string{"rating"},
			),
			ReviewsSubmitted: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_reviews_submitted_total",
					Help: "Review submissions, create or update",
				},
				[]string{"operation"},
			),
			HelpfulVotesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "review_helpful_votes_total",
					Help: "Helpful votes recorded on reviews",
				},
				[]string{"outcome"},
			),

			AgentSubmissions: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_submissions_total",
					Help: "Agents submitted to the catalog",
				},
				[]string{"category"},
			),
			AgentTransitions: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_status_transitions_total",
					Help: "Agent moderation state transitions",
				},
				[]string{"to_status"},
			),
			UserRegistrations: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "user_registrations_total",
					Help: "New user registrations",
				},
				[]string{"status"},
			),
			UserTransitions: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "user_lifecycle_transitions_total",
					Help: "User lifecycle transitions (approve, deactivate, reject)",
				},
				[]string{"transition"},
			),

			OTPIssued: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "auth_otp_issued_total",
					Help: "One-time login codes issued",
				},
				[]string{"delivery"},
			),
			OTPVerifications: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "auth_otp_verifications_total",
					Help: "One-time code verification attempts",
				},
				[]string{"outcome"},
			),

			CacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),

			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by rate limiting",
				},
				[]string{"scope"},
			),

			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Application errors by code",
				},
				[]string{"code"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if necessary
func Get() *Metrics {
	return Initialize()
}
