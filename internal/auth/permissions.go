package auth

// Role is an authorisation tier.
type Role string

// Roles.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// ValidRoles lists every role in ascending privilege.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	_, ok := rolePermissions[r]
	return ok
}

// Permission is a named capability.
type Permission string

// Permissions.
const (
	PermRead    Permission = "hub:read"
	PermRefresh Permission = "hub:refresh"
	PermReboot  Permission = "hub:reboot"
	PermManage  Permission = "hub:manage"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermRead},
	RoleOperator: {PermRead, PermRefresh},
	RoleAdmin:    {PermRead, PermRefresh, PermReboot, PermManage},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role,
// or nil for an unknown role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
