package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// ErrUnknownPayment is returned for provider ids the gateway never issued.
var ErrUnknownPayment = errors.New("unknown provider payment")

// SimulatedGateway is an in-process provider used in dev and tests.
type SimulatedGateway struct {
	mu          sync.Mutex
	baseURL     string
	payments    map[string]*simulatedPayment
	refundErr   error
	initErr     error
	refundCalls int
}

type simulatedPayment struct {
	amount   decimal.Decimal
	refunded decimal.Decimal
}

func NewSimulatedGateway(baseURL string) *SimulatedGateway {
	if baseURL == "" {
		baseURL = "https://pay.simulated.local/checkout"
	}
	return &SimulatedGateway{baseURL: baseURL, payments: map[string]*simulatedPayment{}}
}

func (g *SimulatedGateway) Name() string { return "simulated" }

func (g *SimulatedGateway) InitPayment(ctx context.Context, req InitRequest) (InitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return InitResult{}, g.initErr
	}
	providerID := "sim_" + req.PaymentID.String()
	g.payments[providerID] = &simulatedPayment{amount: req.Amount, refunded: decimal.Zero}
	return InitResult{
		ProviderPaymentID: providerID,
		PaymentURL:        fmt.Sprintf("%s/%s", g.baseURL, providerID),
	}, nil
}

// Refund returns up to the remaining captured amount. Unknown ids are treated
// as captured elsewhere and refunded in full.
func (g *SimulatedGateway) Refund(ctx context.Context, providerPaymentID string, amount decimal.Decimal) (RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if g.refundErr != nil {
		return RefundResult{}, g.refundErr
	}
	if !amount.IsPositive() {
		return RefundResult{RefundedAmount: decimal.Zero}, nil
	}
	p, ok := g.payments[providerPaymentID]
	if !ok {
		return RefundResult{RefundedAmount: money.Round(amount)}, nil
	}
	refundable := money.NonNegative(p.amount.Sub(p.refunded))
	refunded := money.Min(money.Round(amount), refundable)
	p.refunded = p.refunded.Add(refunded)
	return RefundResult{RefundedAmount: refunded}, nil
}

// SimulateSuccess builds the callback the provider would send for a captured payment.
func (g *SimulatedGateway) SimulateSuccess(providerPaymentID string) (Callback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[providerPaymentID]
	if !ok {
		return Callback{}, ErrUnknownPayment
	}
	return Callback{ProviderPaymentID: providerPaymentID, Succeeded: true, Amount: money.Format(p.amount)}, nil
}

// SimulateFail builds a declined-payment callback.
func (g *SimulatedGateway) SimulateFail(providerPaymentID, reason string) (Callback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[providerPaymentID]
	if !ok {
		return Callback{}, ErrUnknownPayment
	}
	return Callback{
		ProviderPaymentID: providerPaymentID,
		Succeeded:         false,
		Amount:            money.Format(p.amount),
		FailureReason:     reason,
	}, nil
}

// FailRefunds makes every later Refund call return err; nil restores normal behaviour.
func (g *SimulatedGateway) FailRefunds(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundErr = err
}

// FailInits makes every later InitPayment call return err.
func (g *SimulatedGateway) FailInits(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initErr = err
}

// RefundCalls reports how many refunds were attempted.
func (g *SimulatedGateway) RefundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refundCalls
}

// Register records a payment captured outside InitPayment, e.g. seeded test data.
func (g *SimulatedGateway) Register(providerPaymentID string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[providerPaymentID] = &simulatedPayment{amount: amount, refunded: decimal.Zero}
}

var _ Gateway = (*SimulatedGateway)(nil)
