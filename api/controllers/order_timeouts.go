package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/angelmondragon/homecook-backend/api/responses"
	"github.com/angelmondragon/homecook-backend/internal/sla"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

type timeoutSweeper interface {
	ProcessOrderTimeouts(ctx context.Context, opts sla.Options) (sla.Report, error)
}

type timeoutAction struct {
	OrderID string `json:"order_id"`
	Phase   string `json:"phase"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

type timeoutReport struct {
	Scanned   int             `json:"scanned"`
	Cancelled int             `json:"cancelled"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	HasMore   bool            `json:"has_more"`
	ByPhase   map[string]int  `json:"by_phase"`
	Actions   []timeoutAction `json:"actions"`
}

// OrderTimeouts previews the next SLA sweep. It always runs dry; cancelling
// stays with the cron worker and the order-timeouts command.
func OrderTimeouts(sweeper timeoutSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verbose := false
		if raw := r.URL.Query().Get("verbose"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "verbose must be a boolean"))
				return
			}
			verbose = v
		}

		report, err := sweeper.ProcessOrderTimeouts(r.Context(), sla.Options{DryRun: true, Verbose: verbose})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toTimeoutReport(report))
	}
}

func toTimeoutReport(r sla.Report) timeoutReport {
	out := timeoutReport{
		Scanned:   r.Scanned,
		Cancelled: r.Cancelled,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		HasMore:   r.HasMore,
		ByPhase:   make(map[string]int, len(r.ByPhase)),
		Actions:   make([]timeoutAction, 0, len(r.Actions)),
	}
	for phase, n := range r.ByPhase {
		out.ByPhase[string(phase)] = n
	}
	for _, a := range r.Actions {
		action := timeoutAction{
			OrderID: a.OrderID.String(),
			Phase:   string(a.Phase),
			Outcome: string(a.Outcome),
		}
		if a.Err != nil {
			action.Error = a.Err.Error()
		}
		out.Actions = append(out.Actions, action)
	}
	return out
}
