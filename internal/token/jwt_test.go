package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
)

func TestIssueAndValidate(t *testing.T) {
	svc, err := NewService("test-secret", "test-issuer", time.Minute)
	require.NoError(t, err)

	user := &models.User{ID: "user-1", Email: "admin@example.com", Role: models.RoleAdmin}
	raw, err := svc.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := svc.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "test-issuer", claims.Issuer)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, err := NewService("test-secret", "test-issuer", time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer, err := NewService("secret-a", "test-issuer", time.Minute)
	require.NoError(t, err)
	validator, err := NewService("secret-b", "test-issuer", time.Minute)
	require.NoError(t, err)

	raw, err := issuer.Issue(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = validator.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc, err := NewService("test-secret", "test-issuer", time.Minute)
	require.NoError(t, err)
	svc.ttl = -time.Minute

	raw, err := svc.Issue(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = svc.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService("", "test-issuer", time.Minute)
	assert.Error(t, err)
}
