// Package client talks to a running yield-optimizer server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/web3-frozen/yield-optimizer/internal/yields"
)

const requestTimeout = 10 * time.Second

// APIError is a non-success envelope from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// SimulateResult is the payload of POST /simulate.
type SimulateResult struct {
	Protocol             string  `json:"protocol"`
	APY                  float64 `json:"apy"`
	Rewards              float64 `json:"rewards"`
	PreviousProtocol     string  `json:"previousProtocol"`
	WalletAddress        string  `json:"walletAddress,omitempty"`
	TransactionSimulated bool    `json:"transactionSimulated"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Count   int             `json:"count"`
}

type Client struct {
	client  *http.Client
	baseURL string
}

func New(baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Simulate(ctx context.Context, wallet string) (SimulateResult, error) {
	body, err := json.Marshal(map[string]string{"wallet": wallet})
	if err != nil {
		return SimulateResult{}, err
	}
	var out SimulateResult
	if err := c.do(ctx, http.MethodPost, "/simulate", body, &out); err != nil {
		return SimulateResult{}, err
	}
	if out.Protocol == "" {
		return SimulateResult{}, errors.New("simulate: empty protocol in response")
	}
	return out, nil
}

func (c *Client) Protocols(ctx context.Context, limit int, chain string) ([]yields.Quote, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if chain != "" {
		q.Set("chain", chain)
	}
	path := "/api/protocols"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []yields.Quote
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
