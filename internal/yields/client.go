package yields

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/web3-frozen/yield-optimizer/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	llamaAPI       = "https://yields.llama.fi"
	requestTimeout = 10 * time.Second
)

var ErrMalformed = errors.New("yields: response has no pool array")

// Client fetches pool data from a DefiLlama-compatible yields API.
type Client struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = llamaAPI
	}
	return &Client{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
	}
}

type poolsResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// FetchPools returns every pool the API lists. Anything other than a 200
// with a JSON array under "data" is an error.
func (c *Client) FetchPools(ctx context.Context) ([]Pool, error) {
	start := time.Now()
	pools, err := c.fetchPools(ctx)
	metrics.YieldFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.YieldFetchTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.YieldFetchTotal.WithLabelValues("ok").Inc()
	return pools, nil
}

func (c *Client) fetchPools(ctx context.Context) ([]Pool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("yields rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yields API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yields API status %d", resp.StatusCode)
	}

	var body poolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode yields: %w", err)
	}
	data := bytes.TrimSpace(body.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrMalformed
	}

	var pools []Pool
	if err := json.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("decode pools: %w", err)
	}
	return pools, nil
}
