// Package auth verifies the optional bearer tokens that guard the HTTP API.
//
// Tokens are HMAC-signed JWTs. When auth is disabled the server installs no
// middleware and every route is public.
package auth
