package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, "alice@example.com", "acme", RoleUser)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestParseRejects(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, "visitor-1", "acme", RoleWidget)
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("secret", -time.Minute, "visitor-1", "acme", RoleWidget)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GenerateToken("secret", time.Hour, "", "acme", RoleUser)
	assert.Error(t, err)
}
