package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/kernel"
)

func TestParsePermission(t *testing.T) {
	perm, err := ParsePermission("  Users:Read ")
	require.NoError(t, err)
	assert.Equal(t, Permission("users:read"), perm)
	assert.Equal(t, "users", perm.Resource())
	assert.Equal(t, "read", perm.Action())

	for _, bad := range []string{"", "users", "users:", ":read", "a:b:c"} {
		_, err := ParsePermission(bad)
		require.Error(t, err, bad)
		assert.True(t, errx.HasCode(err, "RBAC_INVALID_PERMISSION"), bad)
	}
}

func TestGrants(t *testing.T) {
	read := Permission("users:read")
	wildcard := Permission("users:*")

	assert.True(t, read.Grants(read))
	assert.False(t, read.Grants(Permission("users:write")))
	assert.True(t, wildcard.Grants(read))
	assert.True(t, wildcard.Grants(Permission("users:write")))
	assert.False(t, wildcard.Grants(Permission("billing:read")))
}

func TestNormalizeAll(t *testing.T) {
	perms, err := NormalizeAll([]string{"Users:Write", "users:read", "USERS:READ", "billing:view"})
	require.NoError(t, err)
	assert.Equal(t, []Permission{"billing:view", "users:read", "users:write"}, perms)
}

func TestUnion(t *testing.T) {
	a := []Permission{"users:read", "users:write"}
	b := []Permission{"users:read", "billing:view"}

	assert.Equal(t, []Permission{"billing:view", "users:read", "users:write"}, Union(a, b))
	assert.Empty(t, Union())
}

func TestNewRole(t *testing.T) {
	tenant := kernel.OrgTenant(kernel.NewOrgID("org-1"))

	role, err := NewRole(tenant, " Admin ", "full access", []string{"Users:*", "users:*"})
	require.NoError(t, err)
	assert.Equal(t, "Admin", role.Name)
	assert.Equal(t, []Permission{"users:*"}, role.Permissions)
	assert.NotEmpty(t, role.ID)

	_, err = NewRole(tenant, "", "", nil)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, "RBAC_INVALID_ROLE"))

	_, err = NewRole(tenant, "Broken", "", []string{"not-a-permission"})
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, "RBAC_INVALID_PERMISSION"))
}
