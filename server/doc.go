// Package server provides the meetscribe HTTP server: a Gin engine served
// through h2c so HTTP/1.1 clients (including WebSocket upgrades) and
// cleartext HTTP/2 clients share one port.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: request ID generation and propagation
//   - CORS: cross-origin headers and preflight handling
//   - BodySizeLimit: request body size limits
//   - RequestLogger: request logging with duration tracking
//   - Auth: optional bearer token verification
//
// # Endpoints
//
// Built-in endpoints (server/endpoint): /health, /ready, /info, /metrics.
package server
