package ratings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
)

// Service recomputes stored producer and dish scores.
type Service interface {
	RecalculateProducer(ctx context.Context, tx *gorm.DB, producerID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

func NewService(repo Repository, cfg Config) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ratings repository required")
	}
	return &service{repo: repo, cfg: cfg, now: time.Now}, nil
}

// RecalculateProducer writes producer rating/rating_count and every dish's
// rating and sort_score. It returns the new producer rating.
func (s *service) RecalculateProducer(ctx context.Context, tx *gorm.DB, producerID uuid.UUID) (decimal.Decimal, error) {
	repo := s.repo.WithTx(tx)
	now := s.now().UTC()

	producer, err := repo.FindProducer(ctx, producerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load producer: %w", err)
	}
	reviews, err := repo.ListProducerReviews(ctx, producerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list reviews: %w", err)
	}
	stats, err := repo.WindowStats(ctx, producerID, now.Add(-s.cfg.Window))
	if err != nil {
		return decimal.Zero, fmt.Errorf("window stats: %w", err)
	}

	rating := s.cfg.ProducerScore(reviews, stats, producer.PenaltyPoints, now)
	if err := repo.UpdateProducerRating(ctx, producerID, rating, len(reviews)); err != nil {
		return decimal.Zero, fmt.Errorf("update producer rating: %w", err)
	}

	dishes, err := repo.ListDishes(ctx, producerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list dishes: %w", err)
	}
	byDish := make(map[uuid.UUID][]models.Review, len(dishes))
	for _, r := range reviews {
		byDish[r.DishID] = append(byDish[r.DishID], r)
	}
	for _, dish := range dishes {
		dishRating := s.cfg.DishRating(byDish[dish.ID], now)
		if err := repo.UpdateDishScores(ctx, dish.ID, dishRating, s.cfg.SortScore(dishRating, rating)); err != nil {
			return decimal.Zero, fmt.Errorf("update dish %s scores: %w", dish.ID, err)
		}
	}
	return rating, nil
}
