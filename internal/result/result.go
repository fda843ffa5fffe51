// Package result carries the engine's output stream: equity snapshots
// and execution records, fanned out by a single worker to the configured
// sinks (CSV files, run store, Redis, WebSocket clients).
package result

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/model"
)

// TotalKey indexes the aggregate unrealized P&L in EquityResult.UPL.
const TotalKey = "total"

// Result is either an EquityResult or an ExecutionResult.
type Result interface {
	ResultTime() time.Time
}

// EquityResult is a point on the account's equity curve, emitted after
// every tick. UPL holds the home-currency unrealized P&L per pair plus
// the TotalKey aggregate.
type EquityResult struct {
	Time    time.Time
	Equity  decimal.Decimal
	Balance decimal.Decimal
	UPL     map[string]decimal.Decimal
}

func (r EquityResult) ResultTime() time.Time { return r.Time }

// ExecutionResult records a settled fill.
type ExecutionResult struct {
	Time  time.Time
	Pair  model.Pair
	Units decimal.Decimal
	Price decimal.Decimal
}

func (r ExecutionResult) ResultTime() time.Time { return r.Time }

// Sink consumes results. Implementations own all serialization and must
// release their resources in Close.
type Sink interface {
	WriteEquity(EquityResult) error
	WriteExecution(ExecutionResult) error
	Close() error
}

// Worker drains the result queue into every sink until the queue is
// closed, then closes the sinks. Write errors are logged and skipped;
// the result path never back-pressures the accounting path.
type Worker struct {
	queue <-chan Result
	sinks []Sink
}

// NewWorker creates a result worker over queue fanning out to sinks.
func NewWorker(queue <-chan Result, sinks ...Sink) *Worker {
	return &Worker{queue: queue, sinks: sinks}
}

// Run consumes the queue to exhaustion. Call in its own goroutine.
func (w *Worker) Run() {
	slog.Info("result worker started", "sinks", len(w.sinks))
	for res := range w.queue {
		switch r := res.(type) {
		case EquityResult:
			for _, s := range w.sinks {
				if err := s.WriteEquity(r); err != nil {
					slog.Error("unable to write equity result", "err", err, "time", r.Time)
				}
			}
		case ExecutionResult:
			for _, s := range w.sinks {
				if err := s.WriteExecution(r); err != nil {
					slog.Error("unable to write execution result", "err", err, "time", r.Time)
				}
			}
		default:
			slog.Error("unexpected result type", "result", res)
		}
	}
	for _, s := range w.sinks {
		if err := s.Close(); err != nil {
			slog.Error("error closing result sink", "err", err)
		}
	}
	slog.Info("result worker finished")
}
