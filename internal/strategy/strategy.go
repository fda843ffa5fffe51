// Package strategy turns ticks into trading signals. A strategy
// consumes Tick events handed to it by the dispatcher and deposits
// Signal events onto the event queue.
package strategy

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/model"
)

// Strategy is the signal-generation contract.
type Strategy interface {
	// CalcSignals inspects a tick and may emit Signal events.
	CalcSignals(tick event.Tick)
}

// DummyStrategy alternates buy and sell market signals on the first
// configured pair every Interval ticks. Useful for wiring tests and
// engine smoke runs.
type DummyStrategy struct {
	pair     model.Pair
	eventQ   chan<- event.Event
	units    decimal.Decimal
	interval int

	ticks    int
	invested bool
}

// NewDummyStrategy creates a DummyStrategy trading units of pair every
// interval ticks.
func NewDummyStrategy(pair model.Pair, eventQ chan<- event.Event, units decimal.Decimal, interval int) *DummyStrategy {
	if interval < 1 {
		interval = 1
	}
	return &DummyStrategy{pair: pair, eventQ: eventQ, units: units, interval: interval}
}

func (s *DummyStrategy) CalcSignals(tick event.Tick) {
	if tick.Instrument != s.pair {
		return
	}
	if s.ticks%s.interval == 0 {
		units := s.units
		if s.invested {
			units = units.Neg()
		}
		emitSignal(s.eventQ, s.pair, units, tick.Timestamp)
		s.invested = !s.invested
	}
	s.ticks++
}

// emitSignal pushes a market signal with a fresh ref onto the event
// queue. A full queue only drops the signal; the strategy retries on a
// later tick.
func emitSignal(eventQ chan<- event.Event, pair model.Pair, units decimal.Decimal, ts time.Time) {
	sig := event.Signal{
		Ref:        uuid.NewString(),
		Instrument: pair,
		OrderType:  event.OrderMarket,
		Units:      units,
		Timestamp:  ts,
	}
	if err := event.Push(eventQ, sig); err != nil {
		slog.Warn("signal dropped", "err", err)
		return
	}
	slog.Info("signal issued", "signal", sig.String())
}
