package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/web3-frozen/yield-optimizer/internal/autopilot"
	"github.com/web3-frozen/yield-optimizer/internal/rebalance"
)

func RebalanceStatus(wf *rebalance.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, wf.Status())
	}
}

func RebalanceRun(wf *rebalance.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := wf.Execute(r.Context())
		switch {
		case errors.Is(err, rebalance.ErrRunning):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func AutopilotStatus(rn *autopilot.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, rn.Snapshot())
	}
}

// AutopilotStart runs the poller on base rather than the request context so
// it outlives the request.
func AutopilotStart(rn *autopilot.Runner, base context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		started := rn.Start(base)
		writeJSON(w, http.StatusOK, map[string]bool{"running": true, "started": started})
	}
}

func AutopilotStop(rn *autopilot.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rn.Stop()
		writeJSON(w, http.StatusOK, map[string]bool{"running": false})
	}
}
