package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homecook-backend/internal/disputes"
	"github.com/angelmondragon/homecook-backend/internal/finance"
	"github.com/angelmondragon/homecook-backend/internal/ledger"
	"github.com/angelmondragon/homecook-backend/internal/notifications"
	"github.com/angelmondragon/homecook-backend/internal/orders"
	"github.com/angelmondragon/homecook-backend/internal/payments"
	"github.com/angelmondragon/homecook-backend/internal/penalties"
	"github.com/angelmondragon/homecook-backend/internal/ratings"
	"github.com/angelmondragon/homecook-backend/internal/sla"
	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/metrics"
	"github.com/angelmondragon/homecook-backend/pkg/outbox"
)

// Params describes the shared dependencies of every binary that drives orders.
type Params struct {
	DB         *db.Client
	Config     *config.Config
	Logger     *logger.Logger
	Registerer prometheus.Registerer
	// Gateway overrides the provider selected by config.
	Gateway payments.Gateway
	// Sink overrides the database-backed notification sink.
	Sink  notifications.Sink
	Clock func() time.Time
}

// Engine holds the assembled order lifecycle services.
type Engine struct {
	Ledger        ledger.Service
	Finance       *finance.Calculator
	Ratings       ratings.Service
	Notifications notifications.Service
	Penalties     penalties.Service
	Payments      payments.Service
	Disputes      disputes.Service
	Orders        orders.Service
	SLA           *sla.Service
	Outbox        *outbox.Service
	OutboxRepo    *outbox.Repository
}

func New(params Params) (*Engine, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registerer == nil {
		params.Registerer = prometheus.DefaultRegisterer
	}
	cfg := params.Config
	conn := params.DB.DB()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	calc, err := finance.NewCalculator(ledgerSvc)
	if err != nil {
		return nil, fmt.Errorf("finance: %w", err)
	}
	ratingCfg, err := ratings.ConfigFromEnv(cfg.Rating)
	if err != nil {
		return nil, err
	}
	ratingSvc, err := ratings.NewService(ratings.NewRepository(conn), ratingCfg)
	if err != nil {
		return nil, fmt.Errorf("ratings: %w", err)
	}

	notificationRepo := notifications.NewRepository(conn)
	notificationSvc, err := notifications.NewService(notifications.ServiceParams{
		Repository: notificationRepo,
		Clock:      params.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}
	sink := params.Sink
	if sink == nil {
		sink, err = notifications.NewStoreSink(notificationRepo)
		if err != nil {
			return nil, fmt.Errorf("notification sink: %w", err)
		}
	}
	delivery, err := notifications.NewBestEffort(sink, params.Logger)
	if err != nil {
		return nil, fmt.Errorf("notification delivery: %w", err)
	}

	penaltyPolicy, err := penalties.PolicyFromConfig(cfg.Penalty)
	if err != nil {
		return nil, err
	}
	penaltySvc, err := penalties.NewService(penalties.ServiceParams{
		Repo:     penalties.NewRepository(conn),
		DB:       params.DB,
		Ledger:   ledgerSvc,
		Ratings:  ratingSvc,
		Delivery: delivery,
		Policy:   penaltyPolicy,
		Logger:   params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("penalties: %w", err)
	}

	gateway := params.Gateway
	if gateway == nil {
		gateway, err = gatewayFromConfig(cfg.Orders)
		if err != nil {
			return nil, err
		}
	}
	paymentSvc, err := payments.NewService(payments.NewRepository(conn), gateway)
	if err != nil {
		return nil, fmt.Errorf("payments: %w", err)
	}

	disputeCfg, err := disputes.ConfigFromOrders(cfg.Orders)
	if err != nil {
		return nil, err
	}
	disputeSvc, err := disputes.NewService(disputes.ServiceParams{
		Repo:      disputes.NewRepository(conn),
		DB:        params.DB,
		Finance:   calc,
		Payments:  paymentSvc,
		Penalties: penaltySvc,
		Ledger:    ledgerSvc,
		Delivery:  delivery,
		Config:    disputeCfg,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("disputes: %w", err)
	}

	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, params.Logger)

	orderPolicy, err := orders.PolicyFromConfig(cfg.Orders)
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		DB:        params.DB,
		Finance:   calc,
		Payments:  paymentSvc,
		Penalties: penaltySvc,
		Ledger:    ledgerSvc,
		Disputes:  disputeSvc,
		Outbox:    outboxSvc,
		Delivery:  delivery,
		Metrics:   metrics.NewOrderMetrics(params.Registerer),
		Policy:    orderPolicy,
		Logger:    params.Logger,
		Clock:     params.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	slaSvc, err := sla.NewService(sla.ServiceParams{
		Repo:   sla.NewRepository(conn),
		Orders: orderSvc,
		Policy: sla.PolicyFromConfig(cfg.Orders),
		Logger: params.Logger,
		Clock:  params.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("sla: %w", err)
	}

	return &Engine{
		Ledger:        ledgerSvc,
		Finance:       calc,
		Ratings:       ratingSvc,
		Notifications: notificationSvc,
		Penalties:     penaltySvc,
		Payments:      paymentSvc,
		Disputes:      disputeSvc,
		Orders:        orderSvc,
		SLA:           slaSvc,
		Outbox:        outboxSvc,
		OutboxRepo:    outboxRepo,
	}, nil
}

func gatewayFromConfig(cfg config.OrdersConfig) (payments.Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.PaymentProvider)) {
	case "", "simulated":
		return payments.NewSimulatedGateway(""), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}

