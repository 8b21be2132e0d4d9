package services

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workorder-service/internal/models"
)

func TestAdjustStandalone_Restock(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(3, "10")
	ctx := context.Background()

	movement, err := env.ledger.AdjustStandalone(ctx, env.tenantID, AdjustRequest{
		ProductID:     product.ID,
		Delta:         5,
		MovementType:  models.MovementPurchase,
		ReferenceType: "restock",
		Actor:         testActor,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, movement.PreviousStock)
	assert.Equal(t, 8, movement.NewStock)
	assert.Equal(t, 5, movement.Quantity)
	assert.Equal(t, "tech", movement.PerformedBy)
	assert.Equal(t, 8, env.db.products[product.ID].Stock)
}

func TestAdjustStandalone_MovementInvariant(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(10, "10")
	ctx := context.Background()

	deltas := []struct {
		delta int
		mtype models.MovementType
	}{
		{-3, models.MovementSale},
		{2, models.MovementReturn},
		{-1, models.MovementAdjustment},
	}
	for _, d := range deltas {
		_, err := env.ledger.AdjustStandalone(ctx, env.tenantID, AdjustRequest{
			ProductID:    product.ID,
			Delta:        d.delta,
			MovementType: d.mtype,
			Actor:        testActor,
		})
		require.NoError(t, err)
	}

	// new_stock = previous_stock + quantity holds for every row, and
	// consecutive rows chain
	require.Len(t, env.db.movements, 3)
	for i, m := range env.db.movements {
		assert.Equal(t, m.PreviousStock+m.Quantity, m.NewStock, "row %d", i)
		if i > 0 {
			assert.Equal(t, env.db.movements[i-1].NewStock, m.PreviousStock, "row %d must chain", i)
		}
		assert.GreaterOrEqual(t, m.NewStock, 0)
	}
	assert.Equal(t, 8, env.db.products[product.ID].Stock)
}

func TestAdjust_NeverDrivesStockNegative(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(2, "10")
	ctx := context.Background()

	_, err := env.ledger.AdjustStandalone(ctx, env.tenantID, AdjustRequest{
		ProductID:    product.ID,
		Delta:        -3,
		MovementType: models.MovementSale,
		Actor:        testActor,
	})

	ise, ok := IsInsufficientStock(err)
	require.True(t, ok, "expected InsufficientStockError, got %v", err)
	assert.Equal(t, 3, ise.Requested)
	assert.Equal(t, 2, ise.Available)

	// Failed adjustment writes nothing
	assert.Equal(t, 2, env.db.products[product.ID].Stock)
	assert.Empty(t, env.db.movements)
}

func TestAdjust_RandomizedConcurrentDeltas(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(10, "10")
	ctx := context.Background()

	const workers = 8
	const opsPerWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < opsPerWorker; i++ {
				delta := r.Intn(6) - 3
				if delta >= 0 {
					delta++
				}
				mtype := models.MovementReturn
				if delta < 0 {
					mtype = models.MovementSale
				}
				_, err := env.ledger.AdjustStandalone(ctx, env.tenantID, AdjustRequest{
					ProductID:    product.ID,
					Delta:        delta,
					MovementType: mtype,
					Actor:        testActor,
				})
				if err != nil {
					_, ok := IsInsufficientStock(err)
					assert.True(t, ok, "unexpected adjust error: %v", err)
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()

	// stock never goes negative, and the committed movements chain:
	// each row's new_stock is previous_stock + quantity, consecutive
	// rows hand over, and the last row matches the stored stock
	final := env.db.products[product.ID].Stock
	assert.GreaterOrEqual(t, final, 0)

	prev := 10
	for i, m := range env.db.movements {
		assert.Equal(t, prev, m.PreviousStock, "movement %d breaks the chain", i)
		assert.Equal(t, m.PreviousStock+m.Quantity, m.NewStock, "movement %d quantity mismatch", i)
		assert.GreaterOrEqual(t, m.NewStock, 0, "movement %d drove stock negative", i)
		prev = m.NewStock
	}
	assert.Equal(t, final, prev)
}

func TestAdjust_ZeroDeltaRejected(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(2, "10")

	_, err := env.ledger.AdjustStandalone(context.Background(), env.tenantID, AdjustRequest{
		ProductID:    product.ID,
		Delta:        0,
		MovementType: models.MovementAdjustment,
		Actor:        testActor,
	})
	_, ok := IsValidationError(err)
	assert.True(t, ok)
}

func TestAdjust_UnknownMovementType(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(2, "10")

	_, err := env.ledger.AdjustStandalone(context.Background(), env.tenantID, AdjustRequest{
		ProductID:    product.ID,
		Delta:        1,
		MovementType: models.MovementType("transfer"),
		Actor:        testActor,
	})
	_, ok := IsValidationError(err)
	assert.True(t, ok)
}

func TestAdjust_UnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.AdjustStandalone(context.Background(), env.tenantID, AdjustRequest{
		ProductID:    uuid.New(),
		Delta:        1,
		MovementType: models.MovementPurchase,
		Actor:        testActor,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProduct_OpeningStockMovement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product, err := env.ledger.CreateProduct(ctx, env.tenantID, &ProductPayload{
		SKU:      "SCR-13",
		Name:     "Screen 13 inch",
		Price:    decimal.RequireFromString("79.90"),
		Stock:    4,
		MinStock: 2,
	}, testActor)
	require.NoError(t, err)

	assert.Equal(t, 4, env.db.products[product.ID].Stock)
	require.Len(t, env.db.movements, 1)
	assert.Equal(t, models.MovementPurchase, env.db.movements[0].MovementType)
	assert.Equal(t, 0, env.db.movements[0].PreviousStock)
	assert.Equal(t, 4, env.db.movements[0].NewStock)
}

func TestCreateProduct_ZeroStockHasNoMovement(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.CreateProduct(context.Background(), env.tenantID, &ProductPayload{
		Name:  "Cable",
		Price: decimal.NewFromInt(5),
	}, testActor)
	require.NoError(t, err)
	assert.Empty(t, env.db.movements)
}

func TestLowStock(t *testing.T) {
	env := newTestEnv(t)
	low := env.seedProduct(1, "10")
	low.MinStock = 2
	ok := env.seedProduct(10, "10")
	ok.MinStock = 2
	inactive := env.seedProduct(0, "10")
	inactive.MinStock = 2
	inactive.Active = false

	products, err := env.ledger.LowStock(context.Background(), env.tenantID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, low.ID, products[0].ID)
}

func TestMovements_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(10, "10")
	ctx := context.Background()

	for _, delta := range []int{-1, -2, 3} {
		mtype := models.MovementSale
		if delta > 0 {
			mtype = models.MovementReturn
		}
		_, err := env.ledger.AdjustStandalone(ctx, env.tenantID, AdjustRequest{
			ProductID:    product.ID,
			Delta:        delta,
			MovementType: mtype,
			Actor:        testActor,
		})
		require.NoError(t, err)
	}

	movements, err := env.ledger.Movements(ctx, env.tenantID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, 3, movements[0].Quantity, "newest movement first")
	assert.Equal(t, -2, movements[1].Quantity)
}
