// Package permission maps (role, permission) pairs to allow/deny. Pure and
// total: no I/O, no state, no error returns. Invalid enum values panic at
// the rank lookup; callers validate external input with the model parsers.
package permission

import "github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"

// HasPermission reports whether role holds perm. The relation is monotonic
// in role level: raising a level never removes a permission.
func HasPermission(role models.Role, perm models.Permission) bool {
	return role.Level() >= perm.RequiredLevel()
}

// PermissionsFor returns every permission the role holds.
func PermissionsFor(role models.Role) []models.Permission {
	var perms []models.Permission
	for _, p := range models.AllPermissions {
		if HasPermission(role, p) {
			perms = append(perms, p)
		}
	}
	return perms
}

// RolesAllowedToChange returns the roles whose level strictly exceeds the
// target's. Equal levels cannot act on each other: no lateral demotion.
func RolesAllowedToChange(target models.Role) []models.Role {
	var roles []models.Role
	for _, r := range models.AllRoles {
		if r.Level() > target.Level() {
			roles = append(roles, r)
		}
	}
	return roles
}
