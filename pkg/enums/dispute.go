package enums

import "fmt"

// DisputeStatus maps to the dispute_status enum in Postgres.
type DisputeStatus string

const (
	DisputeStatusOpen              DisputeStatus = "open"
	DisputeStatusWaitingSeller     DisputeStatus = "waiting_seller"
	DisputeStatusWaitingSupport    DisputeStatus = "waiting_support"
	DisputeStatusResolvedBuyerWon  DisputeStatus = "resolved_buyer_won"
	DisputeStatusResolvedSellerWon DisputeStatus = "resolved_seller_won"
	DisputeStatusResolvedPartial   DisputeStatus = "resolved_partial"
	DisputeStatusCancelled         DisputeStatus = "cancelled"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusWaitingSeller,
	DisputeStatusWaitingSupport,
	DisputeStatusResolvedBuyerWon,
	DisputeStatusResolvedSellerWon,
	DisputeStatusResolvedPartial,
	DisputeStatusCancelled,
}

// ActiveDisputeStatuses lists statuses that still await a resolution.
var ActiveDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusWaitingSeller,
	DisputeStatusWaitingSupport,
}

func (s DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the dispute can still be resolved.
func (s DisputeStatus) IsActive() bool {
	for _, candidate := range ActiveDisputeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// DisputeOutcome is the admin decision applied when resolving a dispute.
type DisputeOutcome string

const (
	DisputeOutcomeBuyerWon      DisputeOutcome = "buyer_won"
	DisputeOutcomeSellerWon     DisputeOutcome = "seller_won"
	DisputeOutcomePartialRefund DisputeOutcome = "partial_refund"
)

var validDisputeOutcomes = []DisputeOutcome{
	DisputeOutcomeBuyerWon,
	DisputeOutcomeSellerWon,
	DisputeOutcomePartialRefund,
}

func (o DisputeOutcome) IsValid() bool {
	for _, candidate := range validDisputeOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ResolvedStatus maps the outcome onto the terminal dispute status.
func (o DisputeOutcome) ResolvedStatus() DisputeStatus {
	switch o {
	case DisputeOutcomeBuyerWon:
		return DisputeStatusResolvedBuyerWon
	case DisputeOutcomeSellerWon:
		return DisputeStatusResolvedSellerWon
	default:
		return DisputeStatusResolvedPartial
	}
}

// ParseDisputeOutcome converts raw input into a DisputeOutcome.
func ParseDisputeOutcome(value string) (DisputeOutcome, error) {
	for _, candidate := range validDisputeOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute outcome %q", value)
}
