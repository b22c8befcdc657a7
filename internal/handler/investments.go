package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/yield-optimizer/internal/investment"
)

func writeInvestmentError(w http.ResponseWriter, err error) {
	var verr *investment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, investment.ErrNotFound):
		writeError(w, http.StatusNotFound, "Investment not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func CreateInvestment(s *investment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in investment.CreateInput
		if err := decodeBody(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		inv, err := s.Create(in)
		if err != nil {
			writeInvestmentError(w, err)
			return
		}
		writeMessage(w, http.StatusCreated, "Investment created successfully", inv)
	}
}

func ListUserInvestments(s *investment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeList(w, "", s.ListByUser(chi.URLParam(r, "userId")))
	}
}

func GetInvestment(s *investment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := s.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeInvestmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func UpdateInvestment(s *investment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in investment.UpdateInput
		if err := decodeBody(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		inv, err := s.Update(chi.URLParam(r, "id"), in)
		if err != nil {
			writeInvestmentError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Investment updated successfully", inv)
	}
}

func DeleteInvestment(s *investment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := s.Delete(chi.URLParam(r, "id"))
		if err != nil {
			writeInvestmentError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Investment deleted successfully", inv)
	}
}

func CheckBetterAPY(s *investment.Store, q investment.Quoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.CheckBetterAPY(r.Context(), chi.URLParam(r, "id"), q)
		if err != nil {
			writeInvestmentError(w, err)
			return
		}
		msg := "Current protocol has best APY"
		if res.Found {
			msg = "Better APY found"
		}
		writeMessage(w, http.StatusOK, msg, res)
	}
}

func ListCatalog(c *investment.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeList(w, "", c.Venues())
	}
}

func CatalogVenue(c *investment.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := c.Venue(chi.URLParam(r, "name"))
		if !ok {
			writeError(w, http.StatusNotFound, "Protocol not found")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func CompareAsset(c *investment.Catalog) http.HandlerFunc {
	type response struct {
		Asset     string             `json:"asset"`
		Best      investment.Offer   `json:"bestProtocol"`
		Protocols []investment.Offer `json:"allProtocols"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		asset := chi.URLParam(r, "asset")
		offers, err := c.Compare(asset)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, response{Asset: asset, Best: offers[0], Protocols: offers})
	}
}
