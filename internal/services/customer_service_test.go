package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workorder-service/internal/models"
)

func TestUpsert_CreatesWhenPhoneUnknown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.customers.Upsert(ctx, env.tenantID, &CustomerPayload{
		Name:  "Maya Lindqvist",
		Phone: "555-0300",
	}, UpsertByPhone)
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, "Maya Lindqvist", result.Customer.Name)
	assert.Equal(t, models.TierBronze, result.Customer.LoyaltyTier)
	assert.Len(t, env.db.customers, 1)
}

func TestUpsert_UpdatesExistingByPhone(t *testing.T) {
	env := newTestEnv(t)
	existing := env.seedCustomer("555-0301")
	ctx := context.Background()

	result, err := env.customers.Upsert(ctx, env.tenantID, &CustomerPayload{
		Name:  "Jordan Reyes-Smith",
		Phone: "555-0301",
		Email: "jordan@example.com",
	}, UpsertByPhone)
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.Equal(t, existing.ID, result.Customer.ID)
	assert.Equal(t, "Jordan Reyes-Smith", result.Customer.Name)
	assert.Equal(t, "jordan@example.com", result.Customer.Email)
	assert.Len(t, env.db.customers, 1)
}

func TestUpsert_ByEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.customers.Upsert(ctx, env.tenantID, &CustomerPayload{
		Name:  "Ade Bello",
		Email: "ade@example.com",
	}, UpsertByEmail)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := env.customers.Upsert(ctx, env.tenantID, &CustomerPayload{
		Name:  "Ade B.",
		Email: "ade@example.com",
		Phone: "555-0302",
	}, UpsertByEmail)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.Equal(t, "555-0302", second.Customer.Phone)
}

func TestUpsert_RequiresContactChannel(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.customers.Upsert(context.Background(), env.tenantID, &CustomerPayload{
		Name: "No Contact",
	}, UpsertByPhone)

	ve, ok := IsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, "contact", ve.Field)
	assert.Empty(t, env.db.customers)
}

func TestUpsert_RequiresName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.customers.Upsert(context.Background(), env.tenantID, &CustomerPayload{
		Phone: "555-0303",
	}, UpsertByPhone)

	_, ok := IsValidationError(err)
	assert.True(t, ok, "expected validation error, got %v", err)
}

func TestUpsert_SuspendedTenantBlocked(t *testing.T) {
	env := newTestEnv(t)
	env.db.tenants[env.tenantID].Status = models.TenantSuspended

	_, err := env.customers.Upsert(context.Background(), env.tenantID, &CustomerPayload{
		Name:  "Blocked",
		Phone: "555-0304",
	}, UpsertByPhone)
	assert.ErrorIs(t, err, ErrTenantSuspended)
}

func TestCustomerGet_TenantScoped(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer("555-0305")
	ctx := context.Background()

	got, err := env.customers.Get(ctx, env.tenantID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)

	_, err = env.customers.Get(ctx, uuid.New(), customer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch_ExactPhoneFirst(t *testing.T) {
	env := newTestEnv(t)
	exact := env.seedCustomer("555-0306")
	other := env.seedCustomer("555-0306-99")
	other.Name = "Different Person"
	ctx := context.Background()

	results, err := env.customers.Search(ctx, env.tenantID, "555-0306", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, exact.ID, results[0].ID, "exact phone match should rank first")
}
