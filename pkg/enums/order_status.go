package enums

import "fmt"

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusWaitingForPayment    OrderStatus = "waiting_for_payment"
	OrderStatusWaitingForRecipient  OrderStatus = "waiting_for_recipient"
	OrderStatusWaitingForAcceptance OrderStatus = "waiting_for_acceptance"
	OrderStatusCooking              OrderStatus = "cooking"
	OrderStatusReadyForReview       OrderStatus = "ready_for_review"
	OrderStatusReadyForDelivery     OrderStatus = "ready_for_delivery"
	OrderStatusDelivering           OrderStatus = "delivering"
	OrderStatusArrived              OrderStatus = "arrived"
	OrderStatusCompleted            OrderStatus = "completed"
	OrderStatusCancelled            OrderStatus = "cancelled"
	OrderStatusDispute              OrderStatus = "dispute"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusWaitingForPayment,
	OrderStatusWaitingForRecipient,
	OrderStatusWaitingForAcceptance,
	OrderStatusCooking,
	OrderStatusReadyForReview,
	OrderStatusReadyForDelivery,
	OrderStatusDelivering,
	OrderStatusArrived,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusDispute,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// In reports whether s is one of the candidates.
func (s OrderStatus) In(candidates ...OrderStatus) bool {
	for _, c := range candidates {
		if c == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
