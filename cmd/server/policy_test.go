package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/biometric"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/storage"
)

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
privileged_roles:
  - super_admin
  - admin
users:
  - id: admin-1
    email: admin@example.com
    name: Admin
    role: admin
  - email: second@example.com
    role: super_admin
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleSuperAdmin, models.RoleAdmin}, policy.PrivilegedRoles)
	require.Len(t, policy.Users, 2)
	assert.Equal(t, "admin-1", policy.Users[0].ID)
}

func TestLoadPolicyMissingFileUsesDefaults(t *testing.T) {
	policy, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, biometric.DefaultPrivilegedRoles, policy.PrivilegedRoles)
	assert.Empty(t, policy.Users)
}

func TestLoadPolicyEmptyRolesUseDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: []\n"), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, biometric.DefaultPrivilegedRoles, policy.PrivilegedRoles)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	dir := storage.NewMemoryUserDirectory()

	policy := &SecurityPolicy{
		Users: []SeedUser{
			{ID: "admin-1", Email: "admin@example.com", Name: "Admin", Role: models.RoleAdmin},
			{Email: "generated@example.com", Role: models.RoleEditor},
		},
	}
	require.NoError(t, policy.Seed(ctx, dir))

	user, err := dir.FindByID(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	// Users without an explicit id get one generated.
	user, err = dir.FindByEmail(ctx, "generated@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
}

func TestSeedRequiresEmail(t *testing.T) {
	policy := &SecurityPolicy{Users: []SeedUser{{Name: "No Email"}}}
	err := policy.Seed(context.Background(), storage.NewMemoryUserDirectory())
	assert.Error(t, err)
}
