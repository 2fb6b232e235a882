package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantCreate(t *testing.T) {
	e := newTestEnv(t)
	svc := NewTenantService(e.tenants)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, TenantInput{ID: " Acme ", Name: "Acme Corp", Tone: "playful"})
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.ID)
	assert.Equal(t, "free", tenant.Plan)
	assert.True(t, strings.HasPrefix(tenant.APIKey, apiKeyPrefix))

	byKey, err := e.tenants.GetByAPIKey(ctx, tenant.APIKey)
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, "Acme Corp", byKey.Name)

	_, err = svc.Create(ctx, TenantInput{ID: "acme", Name: "Again"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	other, err := svc.Create(ctx, TenantInput{Name: "Generated"})
	require.NoError(t, err)
	assert.NotEmpty(t, other.ID)
	assert.NotEqual(t, tenant.APIKey, other.APIKey)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTenantCreateValidation(t *testing.T) {
	e := newTestEnv(t)
	svc := NewTenantService(e.tenants)
	ctx := context.Background()

	_, err := svc.Create(ctx, TenantInput{ID: "acme"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, TenantInput{ID: "bad id!", Name: "Bad"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, TenantInput{ID: "acme", Name: "Acme", PageQuota: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}
