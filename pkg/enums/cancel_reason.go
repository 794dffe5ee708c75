package enums

import "fmt"

// CancelReasonCode classifies why an order was cancelled. SLA scoring keys off it.
type CancelReasonCode string

const (
	CancelReasonBuyerRequest      CancelReasonCode = "buyer_request"
	CancelReasonSellerRequest     CancelReasonCode = "seller_request"
	CancelReasonSellerRejected    CancelReasonCode = "seller_rejected"
	CancelReasonAdmin             CancelReasonCode = "admin"
	CancelReasonAcceptanceTimeout CancelReasonCode = "acceptance_timeout"
	CancelReasonCookingTimeout    CancelReasonCode = "cooking_timeout"
	CancelReasonDeliveryTimeout   CancelReasonCode = "delivery_timeout"
	CancelReasonLateDelivery      CancelReasonCode = "late_delivery"
	CancelReasonGiftExpired       CancelReasonCode = "gift_expired"
	CancelReasonDisputeBuyerWon   CancelReasonCode = "dispute_buyer_won"
)

var validCancelReasons = []CancelReasonCode{
	CancelReasonBuyerRequest,
	CancelReasonSellerRequest,
	CancelReasonSellerRejected,
	CancelReasonAdmin,
	CancelReasonAcceptanceTimeout,
	CancelReasonCookingTimeout,
	CancelReasonDeliveryTimeout,
	CancelReasonLateDelivery,
	CancelReasonGiftExpired,
	CancelReasonDisputeBuyerWon,
}

// SLAViolationReasons are the system cancellations counted against a producer's SLA score.
var SLAViolationReasons = []CancelReasonCode{
	CancelReasonAcceptanceTimeout,
	CancelReasonCookingTimeout,
	CancelReasonDeliveryTimeout,
	CancelReasonLateDelivery,
}

func (c CancelReasonCode) IsValid() bool {
	for _, candidate := range validCancelReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

func (c CancelReasonCode) IsSLAViolation() bool {
	for _, candidate := range SLAViolationReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelReasonCode converts raw input into a CancelReasonCode.
func ParseCancelReasonCode(value string) (CancelReasonCode, error) {
	for _, candidate := range validCancelReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel reason %q", value)
}
