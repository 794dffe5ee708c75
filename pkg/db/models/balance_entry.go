package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// BalanceEntry records one signed movement of a producer's balance.
type BalanceEntry struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProducerID   uuid.UUID              `gorm:"column:producer_id;type:uuid;not null;index"`
	OrderID      *uuid.UUID             `gorm:"column:order_id;type:uuid;index"`
	Type         enums.BalanceEntryType `gorm:"column:entry_type;type:balance_entry_type;not null"`
	Amount       decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceAfter decimal.Decimal        `gorm:"column:balance_after;type:numeric(12,2);not null"`
	Note         *string                `gorm:"column:note"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
