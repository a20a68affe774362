package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read the REST views but cannot reach the MCP endpoint.
	RoleViewer Role = "viewer"

	// RoleOperator can use every MCP tool, including publishing commands.
	RoleOperator Role = "operator"

	// RoleAdmin has operator access plus the command audit trail.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// MinSecretLength is the shortest HS256 secret accepted for signing.
const MinSecretLength = 32

// Domain errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenMissing = errors.New("missing bearer token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrWeakSecret   = errors.New("jwt secret too short")
	ErrForbidden    = errors.New("insufficient permissions")
)
