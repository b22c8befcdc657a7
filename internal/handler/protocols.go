package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/web3-frozen/yield-optimizer/internal/yields"
)

const (
	maxLimit         = 50
	simulatedAmount  = 10_000.0
	simulateTopLimit = 5
)

// YieldSource is the read side of yields.Provider.
type YieldSource interface {
	TopProtocols(ctx context.Context, limit int, chain string) []yields.Quote
	ForAsset(ctx context.Context, asset string) []yields.Quote
	APYFor(ctx context.Context, name string) float64
}

func TopProtocols(src YieldSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := yields.DefaultLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxLimit)
		}
		chain := r.URL.Query().Get("chain")
		if chain == "" {
			chain = yields.DefaultChain
		}

		writeList(w, "Top protocols fetched successfully", src.TopProtocols(r.Context(), limit, chain))
	}
}

func ProtocolsForAsset(src YieldSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset := strings.TrimSpace(chi.URLParam(r, "asset"))
		if asset == "" {
			writeError(w, http.StatusBadRequest, "asset required")
			return
		}
		writeList(w, fmt.Sprintf("Protocols for %s fetched successfully", strings.ToUpper(asset)), src.ForAsset(r.Context(), asset))
	}
}

func ProtocolAPY(src YieldSource) http.HandlerFunc {
	type response struct {
		Protocol  string  `json:"protocol"`
		APY       float64 `json:"apy"`
		Timestamp string  `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "protocol"))
		if name == "" {
			writeError(w, http.StatusBadRequest, "protocol required")
			return
		}
		writeJSON(w, http.StatusOK, response{
			Protocol:  name,
			APY:       src.APYFor(r.Context(), name),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Simulate picks the best of the top Ethereum quotes and reports one day of
// rewards on a fixed principal. Nothing is executed.
func Simulate(src YieldSource, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Wallet string `json:"wallet"`
	}
	type response struct {
		Protocol             string  `json:"protocol"`
		APY                  float64 `json:"apy"`
		Rewards              float64 `json:"rewards"`
		PreviousProtocol     string  `json:"previousProtocol"`
		WalletAddress        string  `json:"walletAddress,omitempty"`
		TransactionSimulated bool    `json:"transactionSimulated"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if r.ContentLength != 0 {
			if err := decodeBody(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		quotes := src.TopProtocols(r.Context(), simulateTopLimit, yields.DefaultChain)
		if len(quotes) == 0 {
			writeError(w, http.StatusInternalServerError, "Failed to fetch protocols data")
			return
		}
		best := quotes[0]
		current := best
		if len(quotes) > 1 {
			current = quotes[1]
		}

		rewards := decimal.NewFromFloat(simulatedAmount).
			Mul(decimal.NewFromFloat(best.APY)).
			Div(decimal.NewFromInt(100 * 365)).
			Round(2).
			InexactFloat64()

		logger.Info("simulation", "wallet", req.Wallet, "best", best.Name, "apy", best.APY, "current", current.Name)
		writeJSON(w, http.StatusOK, response{
			Protocol:             best.Name,
			APY:                  best.APY,
			Rewards:              rewards,
			PreviousProtocol:     current.Name,
			WalletAddress:        req.Wallet,
			TransactionSimulated: true,
		})
	}
}
