package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workorder-service/internal/models"
)

func TestAssertActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.scope.AssertActive(ctx, env.tenantID))

	// Trial accounts can write
	env.db.tenants[env.tenantID].Status = models.TenantTrial
	require.NoError(t, env.scope.AssertActive(ctx, env.tenantID))

	env.db.tenants[env.tenantID].Status = models.TenantSuspended
	assert.ErrorIs(t, env.scope.AssertActive(ctx, env.tenantID), ErrTenantSuspended)

	assert.ErrorIs(t, env.scope.AssertActive(ctx, uuid.New()), ErrNotFound)
}

func TestResolveBySlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant, err := env.scope.ResolveBySlug(ctx, "acme-repairs")
	require.NoError(t, err)
	assert.Equal(t, env.tenantID, tenant.ID)

	_, err = env.scope.ResolveBySlug(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssertSameTenant(t *testing.T) {
	id := uuid.New()
	assert.NoError(t, AssertSameTenant(id, id))
	assert.ErrorIs(t, AssertSameTenant(id, uuid.New()), ErrTenantMismatch)
}

func TestCreateTenant_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant, err := env.scope.CreateTenant(ctx, "North End Repairs", "north-end", "")
	require.NoError(t, err)
	assert.Equal(t, models.TenantTrial, tenant.Status)
	assert.Equal(t, models.PlanFree, tenant.Plan)

	_, err = env.scope.CreateTenant(ctx, "", "no-name", models.PlanFree)
	if _, ok := IsValidationError(err); !ok {
		t.Errorf("expected validation error for missing name, got %v", err)
	}

	_, err = env.scope.CreateTenant(ctx, "Bad Slug", "Bad Slug", models.PlanFree)
	if _, ok := IsValidationError(err); !ok {
		t.Errorf("expected validation error for bad slug, got %v", err)
	}
}

func TestSetTenantStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.scope.SetTenantStatus(ctx, env.tenantID, models.TenantSuspended))
	assert.Equal(t, models.TenantSuspended, env.db.tenants[env.tenantID].Status)

	err := env.scope.SetTenantStatus(ctx, env.tenantID, models.TenantStatus("frozen"))
	if _, ok := IsValidationError(err); !ok {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}

	assert.ErrorIs(t, env.scope.SetTenantStatus(ctx, uuid.New(), models.TenantActive), ErrNotFound)
}
