package ratings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecook-backend/internal/testdb"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

func TestRecalculateProducerWritesProducerAndDishScores(t *testing.T) {
	conn := testdb.Open(t)
	producer := testdb.SeedProducer(t, conn, func(p *models.Producer) { p.PenaltyPoints = 1 })
	reviewed := testdb.SeedDish(t, conn, producer.ID, "100", 30)
	quiet := testdb.SeedDish(t, conn, producer.ID, "80", 20)
	order := testdb.SeedOrder(t, conn, producer, reviewed, enums.OrderStatusCompleted)

	require.NoError(t, conn.Create(&models.Review{
		ID:         uuid.New(),
		OrderID:    order.ID,
		ProducerID: producer.ID,
		DishID:     reviewed.ID,
		BuyerID:    order.BuyerID,
		Taste:      5,
		Appearance: 5,
		Service:    5,
		CreatedAt:  now.AddDate(0, 0, -1),
	}).Error)

	svc, err := NewService(NewRepository(conn), DefaultConfig())
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return now }

	rating, err := svc.RecalculateProducer(context.Background(), nil, producer.ID)
	require.NoError(t, err)
	// (4.7*10 + 5) / 11 - 0.1
	assert.Equal(t, "4.63", rating.StringFixed(2))

	var stored models.Producer
	require.NoError(t, conn.First(&stored, "id = ?", producer.ID).Error)
	assert.True(t, stored.Rating.Equal(rating))
	assert.Equal(t, 1, stored.RatingCount)

	var dishes []models.Dish
	require.NoError(t, conn.Where("producer_id = ?", producer.ID).Find(&dishes).Error)
	require.Len(t, dishes, 2)
	for _, dish := range dishes {
		switch dish.ID {
		case reviewed.ID:
			assert.Equal(t, "5.00", dish.Rating.StringFixed(2))
			assert.Equal(t, "4.8890", dish.SortScore.StringFixed(4))
		case quiet.ID:
			assert.True(t, dish.Rating.IsZero())
			assert.True(t, dish.SortScore.Equal(rating))
		}
	}
}

func TestRecalculateProducerCountsSLAViolations(t *testing.T) {
	conn := testdb.Open(t)
	producer := testdb.SeedProducer(t, conn)
	dish := testdb.SeedDish(t, conn, producer.ID, "100", 30)
	timeout := enums.CancelReasonAcceptanceTimeout
	testdb.SeedOrder(t, conn, producer, dish, enums.OrderStatusCancelled, func(o *models.Order) {
		o.CancelReasonCode = &timeout
	})
	testdb.SeedOrder(t, conn, producer, dish, enums.OrderStatusCompleted)

	repo := NewRepository(conn)
	stats, err := repo.WindowStats(context.Background(), producer.ID, now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Orders)
	assert.EqualValues(t, 1, stats.SLAViolations)
}
