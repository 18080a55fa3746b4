package iam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

func TestHasPermission_ExactMatch(t *testing.T) {
	perms := []string{"agenda:read", "patients:read"}

	assert.True(t, HasPermission(types.RoleReception, perms, "agenda:read"))
	assert.True(t, HasPermission(types.RoleReception, perms, "patients:read"))
	assert.False(t, HasPermission(types.RoleReception, perms, "agenda:create"))
	assert.False(t, HasPermission(types.RoleReception, perms, "billing:read"))
}

func TestHasPermission_ModuleWildcard(t *testing.T) {
	perms := []string{"agenda:*"}

	assert.True(t, HasPermission(types.RoleReception, perms, "agenda:read"))
	assert.True(t, HasPermission(types.RoleReception, perms, "agenda:create"))
	assert.True(t, HasPermission(types.RoleReception, perms, "agenda:delete"))
	assert.False(t, HasPermission(types.RoleReception, perms, "billing:read"))
}

func TestHasPermission_UniversalWildcard(t *testing.T) {
	perms := []string{"*"}

	assert.True(t, HasPermission(types.RoleAssistant, perms, "agenda:read"))
	assert.True(t, HasPermission(types.RoleAssistant, perms, "billing:delete"))
	assert.True(t, HasPermission(types.RoleAssistant, perms, "anything:at:all"))
}

func TestHasPermission_OwnerBypass(t *testing.T) {
	assert.True(t, HasPermission(types.RoleOwner, nil, "agenda:read"))
	assert.True(t, HasPermission(types.RoleOwner, []string{}, "billing:delete"))
	assert.True(t, HasPermission(types.RoleOwner, []string{"agenda:read"}, "users:delete"))
}

func TestHasPermission_EmptyListDeniesNonOwner(t *testing.T) {
	for _, role := range []types.UserRole{
		types.RoleHQAnalyst, types.RoleSiteManager, types.RoleDentist,
		types.RoleAssistant, types.RoleReception,
	} {
		assert.False(t, HasPermission(role, nil, "agenda:read"), "role %s", role)
	}
}

func TestDefaultPermissions_KnownRoles(t *testing.T) {
	for _, role := range types.AllRoles {
		assert.NotEmpty(t, DefaultPermissions(role), "role %s has no defaults", role)
	}
	assert.Nil(t, DefaultPermissions(types.UserRole("ghost")))
}

func TestDefaultPermissions_ReturnsCopy(t *testing.T) {
	perms := DefaultPermissions(types.RoleReception)
	perms[0] = "tampered"

	fresh := DefaultPermissions(types.RoleReception)
	assert.NotEqual(t, "tampered", fresh[0])
}
