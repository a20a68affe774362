// Package auth provides bearer-token authorisation for the HTTP surface.
//
// Tokens are HS256-signed JWTs carrying a subject and a role. There is no
// user store: operators mint tokens with "mqttmcp token" using the shared
// secret from api.auth.jwt_secret, and the API validates them by signature
// and expiry alone.
//
// Roles form a ladder (viewer → operator → admin) with a static
// role-permission mapping:
//   - viewer reads the REST views (session, subscriptions, messages)
//   - operator also reaches the MCP endpoint and can therefore publish
//   - admin also reads the command audit trail
package auth
