// Package middleware provides per-caller rate limiting for the decision API.
//
// Callers are keyed by their verified email, so the limiter must run after
// authentication. Unauthenticated requests fall back to the client address.
//
// RateLimiter: in-memory token bucket per caller
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	v1.Use(middleware.RateLimitMiddleware(limiter, "memory", logger, metrics))
//
// DistributedRateLimiter: fixed-window counter in Redis, shared by replicas
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "")
//	v1.Use(middleware.RateLimitMiddleware(limiter, "redis", logger, metrics))
//
// Rejected requests get 429 with Retry-After. X-RateLimit-Limit and
// X-RateLimit-Remaining are set on every limited response. When the limiter
// itself fails the request is allowed.
package middleware
