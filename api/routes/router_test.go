package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecook-backend/api/controllers"
	"github.com/angelmondragon/homecook-backend/internal/orders"
	"github.com/angelmondragon/homecook-backend/internal/sla"
	"github.com/angelmondragon/homecook-backend/internal/testdb"
	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type refusingCanceller struct{}

func (refusingCanceller) AutoCancelNotAccepted(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, errors.New("preview must not cancel")
}

func (refusingCanceller) SystemCancel(ctx context.Context, orderID uuid.UUID, input orders.SystemCancelInput) (*models.Order, error) {
	return nil, errors.New("preview must not cancel")
}

func newRouter(t *testing.T, deps map[string]controllers.Pinger) (http.Handler, *prometheus.Registry) {
	t.Helper()
	conn := testdb.Open(t)
	logg := logger.New(logger.Options{ServiceName: "ops-test", Output: &bytes.Buffer{}})
	svc, err := sla.NewService(sla.ServiceParams{
		Repo:   sla.NewRepository(conn),
		Orders: refusingCanceller{},
		Policy: sla.DefaultPolicy(),
		Logger: logg,
		Clock:  func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	producer := testdb.SeedProducer(t, conn)
	dish := testdb.SeedDish(t, conn, producer.ID, "80.00", 20)
	testdb.SeedOrder(t, conn, producer, dish, enums.OrderStatusWaitingForAcceptance, func(o *models.Order) {
		o.AcceptanceDeadline = testdb.At(fixedNow.Add(-5 * time.Minute))
	})

	reg := prometheus.NewRegistry()
	return NewRouter(Params{
		Config:   &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:   logg,
		Deps:     deps,
		SLA:      svc,
		Gatherer: reg,
	}), reg
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthLive(t *testing.T) {
	h, _ := newRouter(t, nil)
	rec := serve(h, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-HomeCook-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	h, _ := newRouter(t, map[string]controllers.Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec := serve(h, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Failed []string `json:"failed"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "DEPENDENCY_ERROR", body.Error.Code)
	assert.Equal(t, []string{"redis"}, body.Error.Details.Failed)
}

func TestHealthReadyAllUp(t *testing.T) {
	h, _ := newRouter(t, map[string]controllers.Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
	})
	assert.Equal(t, http.StatusOK, serve(h, "/health/ready").Code)
}

func TestMetricsExposeRegistry(t *testing.T) {
	h, reg := newRouter(t, nil)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "ops_probe_total", Help: "probe"})
	reg.MustRegister(counter)
	counter.Inc()

	rec := serve(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ops_probe_total 1")
}

func TestOrderTimeoutsPreviewIsDryRun(t *testing.T) {
	h, _ := newRouter(t, nil)
	rec := serve(h, "/ops/order-timeouts?verbose=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Scanned   int            `json:"scanned"`
			Cancelled int            `json:"cancelled"`
			ByPhase   map[string]int `json:"by_phase"`
			Actions   []struct {
				Outcome string `json:"outcome"`
			} `json:"actions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Data.Scanned)
	assert.Zero(t, body.Data.Cancelled)
	assert.Equal(t, 1, body.Data.ByPhase["acceptance"])
	require.Len(t, body.Data.Actions, 1)
	assert.Equal(t, "would_cancel", body.Data.Actions[0].Outcome)
}

func TestOrderTimeoutsRejectsBadFlag(t *testing.T) {
	h, _ := newRouter(t, nil)
	assert.Equal(t, http.StatusBadRequest, serve(h, "/ops/order-timeouts?verbose=maybe").Code)
}
