// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, decision)
//	httputil.WriteBadRequest(w, "ticket is required")
//	httputil.WriteUnauthorized(w, "missing bearer token")
//
// Every error body has the shape {"error": "..."}.
//
// # Request Parsing
//
//	var req DecisionRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
//	router.Use(httputil.RequestIDMiddleware)
//	router.Use(httputil.LoggingMiddleware(log))
//	router.Use(httputil.RecoveryMiddleware(log))
package httputil
