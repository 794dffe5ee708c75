package enums

import "fmt"

// PayoutStatus tracks whether producer earnings for an order reached the balance.
type PayoutStatus string

const (
	PayoutNotAccrued PayoutStatus = "not_accrued"
	PayoutAccrued    PayoutStatus = "accrued"
	PayoutPaidOut    PayoutStatus = "paid_out"
)

var validPayoutStatuses = []PayoutStatus{PayoutNotAccrued, PayoutAccrued, PayoutPaidOut}

func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
