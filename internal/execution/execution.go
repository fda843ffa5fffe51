// Package execution consumes Order events from the execution queue and
// produces exactly one Fill per Order back onto the event queue. The
// worker loop terminates when the execution queue is closed.
package execution

import (
	"log/slog"
	"time"

	"github.com/fxquant/fx-engine/internal/event"
)

// ExecutionHandler is the contract for order routing: a simulated stub
// for backtests or a live brokerage link. Run blocks until the
// execution queue is closed and every accepted order has produced its
// Fill.
type ExecutionHandler interface {
	Run()
}

// SimulatedExecution fills every order at its expected price after an
// optional simulated latency. It stands in for a brokerage in backtests.
type SimulatedExecution struct {
	execQ   <-chan event.Order
	eventQ  chan<- event.Event
	latency time.Duration
}

// NewSimulatedExecution creates a simulated execution worker. latency
// delays each fill, simulating brokerage round-trip time; zero means
// immediate fills.
func NewSimulatedExecution(execQ <-chan event.Order, eventQ chan<- event.Event, latency time.Duration) *SimulatedExecution {
	return &SimulatedExecution{execQ: execQ, eventQ: eventQ, latency: latency}
}

// Run consumes orders until the execution queue is closed.
func (s *SimulatedExecution) Run() {
	slog.Info("execution worker started", "latency", s.latency)
	for order := range s.execQ {
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		fill := event.Fill{
			Ref:        order.Ref,
			Instrument: order.Instrument,
			Units:      order.Units,
			Price:      order.Price,
			Status:     event.StatusFilled,
			Timestamp:  order.Timestamp,
		}
		s.eventQ <- fill
		slog.Debug("order filled", "fill", fill.String())
	}
	slog.Info("execution worker finished")
}
