package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(srv *httptest.Server) *Client {
	return &Client{client: srv.Client(), baseURL: srv.URL}
}

func TestSimulate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/simulate" {
			t.Errorf("got %s %s, want POST /simulate", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["wallet"] != "0xabc" {
			t.Errorf("wallet = %q, want 0xabc", body["wallet"])
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"protocol":"yearn","apy":7.1,"rewards":1.95,"previousProtocol":"aave","walletAddress":"0xabc","transactionSimulated":true}}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Simulate(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Simulate error: %v", err)
	}
	if res.Protocol != "yearn" || res.PreviousProtocol != "aave" {
		t.Errorf("protocols = %q/%q, want yearn/aave", res.Protocol, res.PreviousProtocol)
	}
	if res.Rewards != 1.95 || !res.TransactionSimulated {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSimulateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		api    bool
	}{
		{"server error envelope", 500, `{"success":false,"error":"no protocols"}`, true},
		{"success false", 200, `{"success":false,"error":"nope"}`, true},
		{"not json", 200, `<html>`, false},
		{"empty protocol", 200, `{"success":true,"data":{"apy":1}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Simulate(context.Background(), "")
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) != tt.api {
				t.Errorf("APIError = %v, want %v (err %v)", !tt.api, tt.api, err)
			}
		})
	}
}

func TestProtocols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("limit = %q, want 3", got)
		}
		if got := r.URL.Query().Get("chain"); got != "Arbitrum" {
			t.Errorf("chain = %q, want Arbitrum", got)
		}
		_, _ = w.Write([]byte(`{"success":true,"count":1,"data":[{"id":"protocol_1","name":"gmx","chain":"Arbitrum","apy":9.5,"tvl":"$1.00M","symbol":"GLP"}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv).Protocols(context.Background(), 3, "Arbitrum")
	if err != nil {
		t.Fatalf("Protocols error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "gmx" || got[0].APY != 9.5 {
		t.Errorf("unexpected protocols %+v", got)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	if err := newTestClient(srv).Health(context.Background()); err != nil {
		t.Fatalf("Health error: %v", err)
	}

	srv.Close()
	if err := newTestClient(srv).Health(context.Background()); err == nil {
		t.Error("expected error from closed server")
	}
}
