package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

var (
	selfEmployedRate           = decimal.RequireFromString("0.05")
	individualEntrepreneurRate = decimal.RequireFromString("0.10")
)

// Producer is a home cook selling dishes. Balance holds accrued payable funds.
type Producer struct {
	ID                     uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                 uuid.UUID               `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DisplayName            string                  `gorm:"column:display_name;not null"`
	LegalType              enums.ProducerLegalType `gorm:"column:legal_type;type:producer_legal_type;not null"`
	ExtraCommissionRate    decimal.Decimal         `gorm:"column:extra_commission_rate;type:numeric(6,2);not null"`
	Balance                decimal.Decimal         `gorm:"column:balance;type:numeric(12,2);not null"`
	PenaltyPoints          int                     `gorm:"column:penalty_points;not null;default:0"`
	ConsecutiveRejections  int                     `gorm:"column:consecutive_rejections;not null;default:0"`
	IsBanned               bool                    `gorm:"column:is_banned;not null;default:false"`
	BanReason              *string                 `gorm:"column:ban_reason"`
	BannedAt               *time.Time              `gorm:"column:banned_at"`
	LastPenaltyPaymentDate *time.Time              `gorm:"column:last_penalty_payment_date"`
	Rating                 decimal.Decimal         `gorm:"column:rating;type:numeric(4,2);not null"`
	RatingCount            int                     `gorm:"column:rating_count;not null;default:0"`
	TotalSales             int                     `gorm:"column:total_sales;not null;default:0"`
	CreatedAt              time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// BaseCommissionRate depends on the producer's legal form.
func (p Producer) BaseCommissionRate() decimal.Decimal {
	if p.LegalType == enums.LegalTypeIndividualEntrepreneur {
		return individualEntrepreneurRate
	}
	return selfEmployedRate
}

// TotalCommissionRate is base + extra/100, rounded to the rate scale.
func (p Producer) TotalCommissionRate() decimal.Decimal {
	return money.RoundRate(p.BaseCommissionRate().Add(money.PercentToRate(p.ExtraCommissionRate)))
}
