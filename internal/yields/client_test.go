package yields

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestClient(srv *httptest.Server) *Client {
	return &Client{client: srv.Client(), baseURL: srv.URL, limiter: rate.NewLimiter(rate.Inf, 1)}
}

func TestFetchPools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools" {
			t.Errorf("path = %q, want /pools", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":[
			{"pool":"p1","chain":"Ethereum","project":"aave-v3","symbol":"USDC","tvlUsd":1000000,"apy":4.5},
			{"pool":"p2","chain":"Arbitrum","project":"gmx","symbol":"ETH","tvlUsd":500,"apy":null,"apyBase":2.1}
		]}`))
	}))
	defer srv.Close()

	pools, err := newTestClient(srv).FetchPools(context.Background())
	if err != nil {
		t.Fatalf("FetchPools error: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("len(pools) = %d, want 2", len(pools))
	}
	if pools[0].EffectiveAPY() != 4.5 {
		t.Errorf("pools[0] apy = %v, want 4.5", pools[0].EffectiveAPY())
	}
	if pools[1].APY != nil {
		t.Errorf("pools[1].APY = %v, want nil", *pools[1].APY)
	}
	if pools[1].EffectiveAPY() != 2.1 {
		t.Errorf("pools[1] apy = %v, want 2.1", pools[1].EffectiveAPY())
	}
}

func TestFetchPoolsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing data", `{"status":"success"}`},
		{"data is object", `{"data":{"pool":"p1"}}`},
		{"data is null", `{"data":null}`},
		{"data is string", `{"data":"oops"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).FetchPools(context.Background())
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestFetchPoolsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).FetchPools(context.Background()); err == nil {
		t.Error("expected error for 502")
	}
}

func TestFetchPoolsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.client.Timeout = 20 * time.Millisecond
	if _, err := c.FetchPools(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	if c.baseURL != llamaAPI {
		t.Errorf("baseURL = %q, want %q", c.baseURL, llamaAPI)
	}
	if c.client.Timeout != requestTimeout {
		t.Errorf("timeout = %v, want %v", c.client.Timeout, requestTimeout)
	}
	if NewClient("http://x/").baseURL != "http://x" {
		t.Error("trailing slash should be trimmed")
	}
}
