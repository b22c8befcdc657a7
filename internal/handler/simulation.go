package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/web3-frozen/yield-optimizer/internal/sim"
)

const streamWriteTimeout = 5 * time.Second

func SimState(s *sim.Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.State())
	}
}

func SimDeposit(s *sim.Simulator) http.HandlerFunc {
	type request struct {
		ProtocolID string  `json:"protocolId"`
		Amount     float64 `json:"amount"`
		Asset      string  `json:"asset"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ProtocolID == "" || req.Asset == "" {
			writeError(w, http.StatusBadRequest, "protocolId and asset required")
			return
		}

		inv, err := s.Deposit(req.ProtocolID, req.Amount, req.Asset)
		switch {
		case errors.Is(err, sim.ErrInvalidAmount),
			errors.Is(err, sim.ErrUnknownProtocol),
			errors.Is(err, sim.ErrUnsupportedAsset):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "deposit failed")
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func SimStart(s *sim.Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.Start()
		writeJSON(w, http.StatusOK, map[string]bool{"simulating": true})
	}
}

func SimStop(s *sim.Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.Stop()
		writeJSON(w, http.StatusOK, map[string]bool{"simulating": false})
	}
}

func SimEvents(s *sim.Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		writeList(w, "", s.Events(limit))
	}
}

// SimStream upgrades to a websocket, sends the current state and then every
// tick result. Slow readers miss ticks rather than stall the simulator.
func SimStream(s *sim.Simulator, origins []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// the server's write timeout must not cut long-lived streams
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx := conn.CloseRead(r.Context())
		updates := make(chan sim.TickResult, 16)
		unsubscribe := s.Subscribe(func(res sim.TickResult) {
			select {
			case updates <- res:
			default:
			}
		})
		defer unsubscribe()

		if err := writeFrame(ctx, conn, map[string]any{"type": "state", "data": s.State()}); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case res := <-updates:
				if err := writeFrame(ctx, conn, map[string]any{"type": "tick", "data": res}); err != nil {
					logger.Debug("websocket write", "error", err)
					return
				}
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
