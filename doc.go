// Package backend provides the Agent Hub API server.

// This package contains the main application entry point. The actual API
// documentation is organized into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/models: Data models and database schemas
// - internal/auth: Password + email-code authentication services
// - internal/tracking: Engagement tracking (views, clicks, sessions, ratings, reviews)
// - internal/repository: User lifecycle and admin approval operations
// - internal/database: Database connection and migrations
// - internal/cache: Redis caching for rating statistics
// - internal/email: SES email notifications
// - internal/middleware: HTTP middleware (auth, rate limiting, metrics)
// - internal/metrics: Prometheus instrumentation
// - internal/telemetry: OpenTelemetry tracing setup
// - internal/seed: Development data seeding

// See the individual package documentation for detailed API reference.
package backend
