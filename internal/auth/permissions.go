package auth

import "slices"

// Permission represents a named capability on the HTTP surface.
type Permission string

// Permission constants.
const (
	PermViewRead  Permission = "view:read"
	PermMCPAccess Permission = "mcp:access"
	PermAuditRead Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermViewRead,
	},
	RoleOperator: {
		PermViewRead,
		PermMCPAccess,
	},
	RoleAdmin: {
		PermViewRead,
		PermMCPAccess,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}
