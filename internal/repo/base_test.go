package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/testdb"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

func TestBaseDB_BindsContext(t *testing.T) {
	conn := testdb.Open(t)
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, conn, base.DB(nil))
}

func TestBindKeepsConnectionForNilTx(t *testing.T) {
	conn := testdb.Open(t)
	base := NewBase(conn)

	assert.Same(t, conn, base.Bind(nil).db)

	err := conn.Transaction(func(tx *gorm.DB) error {
		assert.Same(t, tx, base.Bind(tx).db)
		return nil
	})
	require.NoError(t, err)
}

func TestLockOrderAndSave(t *testing.T) {
	conn := testdb.Open(t)
	base := NewBase(conn)
	ctx := context.Background()

	producer := testdb.SeedProducer(t, conn)
	dish := testdb.SeedDish(t, conn, producer.ID, "100.00", 30)
	order := testdb.SeedOrder(t, conn, producer, dish, enums.OrderStatusCooking)

	locked, err := base.LockOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCooking, locked.Status)

	locked.Status = enums.OrderStatusReadyForDelivery
	locked.PenaltyAmount = decimal.RequireFromString("12.50")
	require.NoError(t, base.SaveOrder(ctx, locked))

	reloaded, err := base.LockOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReadyForDelivery, reloaded.Status)
	assert.True(t, reloaded.PenaltyAmount.Equal(decimal.RequireFromString("12.50")))

	_, err = base.LockOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestIncrementSales(t *testing.T) {
	conn := testdb.Open(t)
	base := NewBase(conn)
	ctx := context.Background()

	producer := testdb.SeedProducer(t, conn)
	dish := testdb.SeedDish(t, conn, producer.ID, "50.00", 20)

	require.NoError(t, base.IncrementSales(ctx, producer.ID, dish.ID, 3))
	require.NoError(t, base.IncrementSales(ctx, producer.ID, dish.ID, 2))

	locked, err := base.LockProducer(ctx, producer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, locked.TotalSales)

	var reloaded models.Dish
	require.NoError(t, conn.First(&reloaded, "id = ?", dish.ID).Error)
	assert.Equal(t, 5, reloaded.SalesCount)
}
