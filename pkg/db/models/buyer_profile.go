package models

import (
	"time"

	"github.com/google/uuid"
)

// BuyerProfile keeps per-buyer dispute history.
type BuyerProfile struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	DisputesLost   int       `gorm:"column:disputes_lost;not null;default:0"`
	IsProblemBuyer bool      `gorm:"column:is_problem_buyer;not null;default:false"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
