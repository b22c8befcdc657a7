package investment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/web3-frozen/yield-optimizer/internal/protocol"
)

var ErrNotFound = errors.New("not found")

// ValidationError is returned for bad client input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusWithdrawn Status = "withdrawn"
)

func (s Status) valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusWithdrawn:
		return true
	}
	return false
}

type Investment struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Amount          float64   `json:"amount"`
	Asset           string    `json:"asset"`
	Protocol        string    `json:"selectedProtocol"`
	APY             float64   `json:"apy"`
	Status          Status    `json:"status"`
	InvestedAt      time.Time `json:"investedAt"`
	LastMonitoredAt time.Time `json:"lastMonitoredAt"`
	BetterProtocol  string    `json:"betterProtocol,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	seq int
}

type CreateInput struct {
	UserID   string  `json:"userId"`
	Amount   float64 `json:"amount"`
	Asset    string  `json:"asset"`
	Protocol string  `json:"selectedProtocol"`
	APY      float64 `json:"apy"`
}

type UpdateInput struct {
	Status Status `json:"status"`
	Notes  string `json:"notes"`
}

// Quoter returns the best available rate for an asset.
type Quoter interface {
	BestFor(ctx context.Context, asset string) (Offer, error)
}

// BetterAPY is the outcome of comparing an investment against the market.
type BetterAPY struct {
	Found           bool    `json:"betterAPYFound"`
	CurrentAPY      float64 `json:"currentAPY"`
	CurrentProtocol string  `json:"currentProtocol"`
	BetterAPY       float64 `json:"betterAPY,omitempty"`
	BetterProtocol  string  `json:"betterProtocol,omitempty"`
	Improvement     float64 `json:"apyImprovement,omitempty"`
}

// Store keeps investments in memory. Each Store is independent.
type Store struct {
	catalog *Catalog
	now     func() time.Time

	mu    sync.RWMutex
	items map[string]*Investment
	seq   int
}

func NewStore(catalog *Catalog) *Store {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Store{catalog: catalog, now: time.Now, items: make(map[string]*Investment)}
}

func (s *Store) Create(in CreateInput) (Investment, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Asset = strings.ToUpper(strings.TrimSpace(in.Asset))
	in.Protocol = strings.TrimSpace(in.Protocol)

	if in.UserID == "" || in.Asset == "" || in.Protocol == "" || in.APY == 0 {
		return Investment{}, &ValidationError{Msg: "Missing required fields"}
	}
	if !(in.Amount > 0) {
		return Investment{}, &ValidationError{Msg: "Amount must be greater than 0"}
	}
	if in.APY < 0 {
		return Investment{}, &ValidationError{Msg: "APY must be greater than 0"}
	}
	if !s.catalog.supportsAsset(in.Asset) {
		return Investment{}, &ValidationError{Msg: fmt.Sprintf("Unsupported asset %s", in.Asset)}
	}
	if _, ok := s.catalog.Venue(in.Protocol); !ok {
		return Investment{}, &ValidationError{Msg: fmt.Sprintf("Unsupported protocol %s", in.Protocol)}
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	inv := &Investment{
		ID:              "inv_" + uuid.NewString(),
		UserID:          in.UserID,
		Amount:          in.Amount,
		Asset:           in.Asset,
		Protocol:        in.Protocol,
		APY:             in.APY,
		Status:          StatusActive,
		InvestedAt:      now,
		LastMonitoredAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
		seq:             s.seq,
	}
	s.items[inv.ID] = inv
	return *inv, nil
}

// ListByUser returns a user's investments, most recent first.
func (s *Store) ListByUser(userID string) []Investment {
	s.mu.RLock()
	out := make([]Investment, 0)
	for _, inv := range s.items {
		if inv.UserID == userID {
			out = append(out, *inv)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].InvestedAt.Equal(out[j].InvestedAt) {
			return out[i].seq > out[j].seq
		}
		return out[i].InvestedAt.After(out[j].InvestedAt)
	})
	return out
}

func (s *Store) Get(id string) (Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.items[id]
	if !ok {
		return Investment{}, ErrNotFound
	}
	return *inv, nil
}

// Update sets status and/or notes; empty fields are left unchanged.
func (s *Store) Update(id string, in UpdateInput) (Investment, error) {
	if in.Status != "" && !in.Status.valid() {
		return Investment{}, &ValidationError{Msg: fmt.Sprintf("Invalid status %s", in.Status)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.items[id]
	if !ok {
		return Investment{}, ErrNotFound
	}
	if in.Status != "" {
		inv.Status = in.Status
	}
	if in.Notes != "" {
		inv.Notes = in.Notes
	}
	inv.UpdatedAt = s.now()
	return *inv, nil
}

func (s *Store) Delete(id string) (Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.items[id]
	if !ok {
		return Investment{}, ErrNotFound
	}
	delete(s.items, id)
	return *inv, nil
}

// CheckBetterAPY compares the investment's locked-in APY with the best
// quote for its asset and records when it was last checked.
func (s *Store) CheckBetterAPY(ctx context.Context, id string, q Quoter) (BetterAPY, error) {
	inv, err := s.Get(id)
	if err != nil {
		return BetterAPY{}, err
	}
	best, err := q.BestFor(ctx, inv.Asset)
	if err != nil {
		return BetterAPY{}, fmt.Errorf("best rate for %s: %w", inv.Asset, err)
	}

	res := BetterAPY{CurrentAPY: inv.APY, CurrentProtocol: inv.Protocol}
	if best.APY > inv.APY {
		res.Found = true
		res.BetterAPY = best.APY
		res.BetterProtocol = best.Protocol
		res.Improvement = protocol.Round2(best.APY - inv.APY)
	}

	s.mu.Lock()
	if cur, ok := s.items[id]; ok {
		cur.LastMonitoredAt = s.now()
		if res.Found {
			cur.BetterProtocol = res.BetterProtocol
		}
	}
	s.mu.Unlock()
	return res, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
