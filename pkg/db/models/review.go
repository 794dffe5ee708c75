package models

import (
	"time"

	"github.com/google/uuid"
)

// Review scores are integers in [1,5]. Auto-generated reviews are created by
// rejection penalties and removed when the producer pays the fine.
type Review struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProducerID      uuid.UUID `gorm:"column:producer_id;type:uuid;not null;index"`
	DishID          uuid.UUID `gorm:"column:dish_id;type:uuid;not null;index"`
	BuyerID         uuid.UUID `gorm:"column:buyer_id;type:uuid;not null"`
	Taste           int       `gorm:"column:taste;not null"`
	Appearance      int       `gorm:"column:appearance;not null"`
	Service         int       `gorm:"column:service;not null"`
	Comment         *string   `gorm:"column:comment"`
	IsAutoGenerated bool      `gorm:"column:is_auto_generated;not null;default:false"`
	RefundAccepted  bool      `gorm:"column:refund_accepted;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
