package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Dish struct {
	ID                      uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProducerID              uuid.UUID       `gorm:"column:producer_id;type:uuid;not null;index"`
	Name                    string          `gorm:"column:name;not null"`
	Price                   decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	EstimatedCookingMinutes int             `gorm:"column:estimated_cooking_minutes;not null"`
	IsHidden                bool            `gorm:"column:is_hidden;not null;default:false"`
	Rating                  decimal.Decimal `gorm:"column:rating;type:numeric(4,2);not null"`
	SortScore               decimal.Decimal `gorm:"column:sort_score;type:numeric(6,4);not null"`
	SalesCount              int             `gorm:"column:sales_count;not null;default:0"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
