// Package middleware provides the gin middleware stack for the playground API.
//
// Middleware stack includes:
//   - RequestID: propagates or assigns X-Request-ID
//   - Logger: one zap line per request, levelled by status
//   - CORS: cross-origin access for browser editors
//   - RateLimit: per-IP token bucket with idle eviction
//   - BodyLimit: caps request body size
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
