// Package store persists a run's output: the equity curve and the
// immutable execution ledger. PostgreSQL is the durable backend; the
// in-memory implementation serves tests and development.
package store

import (
	"context"
	"time"

	"github.com/fxquant/fx-engine/internal/result"
)

// Store is the run-persistence interface.
type Store interface {
	// InsertEquityPoint appends one point of the run's equity curve.
	InsertEquityPoint(ctx context.Context, runID string, r result.EquityResult) error

	// InsertExecution appends an immutable execution record.
	InsertExecution(ctx context.Context, runID string, r result.ExecutionResult) error

	// EquityCurve returns the run's equity points in time order.
	EquityCurve(ctx context.Context, runID string) ([]result.EquityResult, error)

	// Executions returns the run's executions in time order.
	Executions(ctx context.Context, runID string) ([]result.ExecutionResult, error)
}

// ResultSink adapts a Store to the result.Sink contract for one run.
type ResultSink struct {
	store   Store
	runID   string
	timeout time.Duration
}

// NewResultSink creates a sink persisting results under runID.
func NewResultSink(st Store, runID string) *ResultSink {
	return &ResultSink{store: st, runID: runID, timeout: 5 * time.Second}
}

func (s *ResultSink) WriteEquity(r result.EquityResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.store.InsertEquityPoint(ctx, s.runID, r)
}

func (s *ResultSink) WriteExecution(r result.ExecutionResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.store.InsertExecution(ctx, s.runID, r)
}

func (s *ResultSink) Close() error { return nil }
