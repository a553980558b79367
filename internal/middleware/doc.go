// Package middleware provides HTTP middleware for the CivicFix API.
//
// The middleware package contains reusable components for session
// authentication, rate limiting, idempotent request handling, metrics, and
// request processing.
//
// # Authentication
//
// The auth middleware resolves the session cookie to a user:
//
//	mux.Handle("POST /api/problems", middleware.Chain(handler, middleware.Auth(authService, cookieName)))
//
// After authentication, handlers can access the user:
//
//	user := middleware.GetUser(r.Context())
//
// # Context Values
//
// Middleware sets context values accessible via helper functions:
//
//   - GetUser(ctx): Returns the authenticated user
//   - GetUserID(ctx): Returns the authenticated user ID
//   - GetRequestID(ctx): Returns the unique request identifier
package middleware
