package enums

import "fmt"

// BalanceEntryType maps to the balance_entry_type enum in Postgres.
type BalanceEntryType string

const (
	BalanceEntryPayoutAccrual       BalanceEntryType = "payout_accrual"
	BalanceEntryRefundAdjustment    BalanceEntryType = "refund_adjustment"
	BalanceEntryAccrualReversal     BalanceEntryType = "accrual_reversal"
	BalanceEntryPenaltyFine         BalanceEntryType = "penalty_fine"
	BalanceEntryCancelCompensation  BalanceEntryType = "cancellation_compensation"
	BalanceEntryDisputeCompensation BalanceEntryType = "dispute_compensation"
)

var validBalanceEntryTypes = []BalanceEntryType{
	BalanceEntryPayoutAccrual,
	BalanceEntryRefundAdjustment,
	BalanceEntryAccrualReversal,
	BalanceEntryPenaltyFine,
	BalanceEntryCancelCompensation,
	BalanceEntryDisputeCompensation,
}

// PayoutEntryTypes are the entries whose per-order sum equals the accrued payable amount.
var PayoutEntryTypes = []BalanceEntryType{
	BalanceEntryPayoutAccrual,
	BalanceEntryRefundAdjustment,
	BalanceEntryAccrualReversal,
}

// IsValid reports whether the value matches the canonical balance entry enum.
func (t BalanceEntryType) IsValid() bool {
	for _, candidate := range validBalanceEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBalanceEntryType converts raw input into BalanceEntryType.
func ParseBalanceEntryType(value string) (BalanceEntryType, error) {
	for _, candidate := range validBalanceEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid balance entry type %q", value)
}
