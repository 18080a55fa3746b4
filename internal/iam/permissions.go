package iam

import (
	"strings"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// Permission strings are "module:action" capabilities. A permission entry is
// either exact ("agenda:read"), a module wildcard ("agenda:*"), or the
// universal wildcard ("*").

// rolePermissions is the fixed role defaults table. It is consulted once at
// user creation to snapshot the user's permission list; editing this table
// does not retroactively change existing users.
var rolePermissions = map[types.UserRole][]string{
	// Owner is matched by the role bypass in HasPermission; the entry exists
	// so the snapshot is still meaningful if the role is later downgraded.
	types.RoleOwner: {"*"},
	types.RoleHQAnalyst: {
		"agenda:read",
		"patients:read",
		"billing:read",
		"reports:*",
	},
	types.RoleSiteManager: {
		"agenda:*",
		"patients:*",
		"billing:*",
		"reports:read",
		"users:read",
	},
	types.RoleDentist: {
		"agenda:read",
		"agenda:update",
		"patients:read",
		"patients:update",
	},
	types.RoleAssistant: {
		"agenda:read",
		"agenda:update",
		"patients:read",
	},
	types.RoleReception: {
		"agenda:*",
		"patients:read",
		"patients:create",
	},
}

// DefaultPermissions returns the default permission snapshot for a role.
func DefaultPermissions(role types.UserRole) []string {
	defaults, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	perms := make([]string, len(defaults))
	copy(perms, defaults)
	return perms
}

// HasPermission decides whether a caller with the given role and permission
// snapshot is granted the requested capability. Owners always pass. A pure
// function with no side effects.
func HasPermission(role types.UserRole, permissions []string, requested string) bool {
	if role == types.RoleOwner {
		return true
	}

	for _, p := range permissions {
		if p == requested || p == "*" {
			return true
		}
		if strings.HasSuffix(p, "*") && strings.HasPrefix(requested, strings.TrimSuffix(p, "*")) {
			return true
		}
	}
	return false
}
