package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

type Dispute struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ReviewID           *uuid.UUID            `gorm:"column:review_id;type:uuid"`
	OpenedBy           uuid.UUID             `gorm:"column:opened_by;type:uuid;not null"`
	OpenedByRole       enums.ActorRole       `gorm:"column:opened_by_role;type:actor_role;not null"`
	Reason             string                `gorm:"column:reason;not null"`
	Status             enums.DisputeStatus   `gorm:"column:status;type:dispute_status;not null"`
	Outcome            *enums.DisputeOutcome `gorm:"column:outcome;type:dispute_outcome"`
	ResolutionComment  *string               `gorm:"column:resolution_comment"`
	RefundAmount       decimal.Decimal       `gorm:"column:refund_amount;type:numeric(12,2);not null"`
	CompensationAmount decimal.Decimal       `gorm:"column:compensation_amount;type:numeric(12,2);not null"`
	ResolvedBy         *uuid.UUID            `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt         *time.Time            `gorm:"column:resolved_at"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
