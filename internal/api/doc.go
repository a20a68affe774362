// Package api implements the HTTP surface of the MQTT MCP server.
//
// This package provides:
//   - The MCP streamable HTTP endpoint, mounted at the configured path
//   - Read-only REST endpoints for session state, subscriptions and history
//   - Runtime metrics for monitoring
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Optional bearer-token authorisation (see package auth)
//
// # Authentication
//
// When api.auth.jwt_secret is set every route except /api/v1/health needs
// an "Authorization: Bearer" token. The MCP endpoint requires the operator
// role and /api/v1/audit requires admin.
//
// # Graceful Degradation
//
// The server answers while the broker is unreachable: reads report the
// session state alongside whatever history exists, and /health reports
// "degraded" rather than failing.
package api
