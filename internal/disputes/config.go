package disputes

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// Config is the immutable dispute settlement policy.
type Config struct {
	// ProblemBuyerThreshold is the number of lost disputes that flags a buyer.
	ProblemBuyerThreshold int
	// SellerWinCompensationRate is the share of total_price paid to the
	// producer when the seller wins and no explicit amount is given.
	SellerWinCompensationRate decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		ProblemBuyerThreshold:     3,
		SellerWinCompensationRate: money.MustParse("0.10"),
	}
}

func ConfigFromOrders(cfg config.OrdersConfig) (Config, error) {
	c := DefaultConfig()
	if cfg.ProblemBuyerThreshold > 0 {
		c.ProblemBuyerThreshold = cfg.ProblemBuyerThreshold
	}
	if cfg.SellerWinCompensation != "" {
		rate, err := money.Parse(cfg.SellerWinCompensation)
		if err != nil {
			return Config{}, fmt.Errorf("seller win compensation: %w", err)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return Config{}, fmt.Errorf("seller win compensation must be within [0, 1]")
		}
		c.SellerWinCompensationRate = rate
	}
	return c, nil
}
