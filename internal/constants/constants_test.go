package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedRole(t *testing.T) {
	assert.True(t, AllowedRole(ViewLedger, Viewer))
	assert.False(t, AllowedRole(ExecuteTransfer, Manager))
	assert.True(t, AllowedRole(ExecuteTransfer, Admin))
	assert.False(t, AllowedRole("unknown", Superadmin))
}

func TestEveryPermissionHasValidRoles(t *testing.T) {
	for perm, roles := range PermissionRoles {
		assert.NotEmpty(t, roles, perm)
		for _, r := range roles {
			assert.True(t, IsValidRole(r), "%s: %s", perm, r)
		}
	}
}
