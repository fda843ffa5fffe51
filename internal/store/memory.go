package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/result"
)

// MemoryStore implements Store with in-memory slices. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	equity     map[string][]result.EquityResult
	executions map[string][]result.ExecutionResult
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		equity:     make(map[string][]result.EquityResult),
		executions: make(map[string][]result.ExecutionResult),
	}
}

func (s *MemoryStore) InsertEquityPoint(_ context.Context, runID string, r result.EquityResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy the UPL map to avoid external mutation.
	cp := r
	if r.UPL != nil {
		cp.UPL = make(map[string]decimal.Decimal, len(r.UPL))
		for k, v := range r.UPL {
			cp.UPL[k] = v
		}
	}
	s.equity[runID] = append(s.equity[runID], cp)
	return nil
}

func (s *MemoryStore) InsertExecution(_ context.Context, runID string, r result.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions[runID] = append(s.executions[runID], r)
	return nil
}

func (s *MemoryStore) EquityCurve(_ context.Context, runID string) ([]result.EquityResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	curve := make([]result.EquityResult, len(s.equity[runID]))
	copy(curve, s.equity[runID])
	return curve, nil
}

func (s *MemoryStore) Executions(_ context.Context, runID string) ([]result.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execs := make([]result.ExecutionResult, len(s.executions[runID]))
	copy(execs, s.executions[runID])
	return execs, nil
}
