// Package event defines the closed set of events flowing through the
// engine's queues: Tick, Signal, Order and Fill. Events are immutable
// once created; the Ref field correlates a Signal → Order → Fill chain
// and the Trade legs reserved against it.
package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/model"
)

// ErrQueueFull is returned when the event queue cannot absorb an event
// produced by the dispatcher itself. The queue is sized so this never
// happens in normal operation; hitting it stops the engine rather than
// silently dropping an event.
var ErrQueueFull = errors.New("event: queue full")

// Push performs a non-blocking send onto an event queue.
func Push(q chan<- Event, ev Event) error {
	select {
	case q <- ev:
		return nil
	default:
		return fmt.Errorf("%w: dropping %v", ErrQueueFull, ev)
	}
}

// OrderType distinguishes order semantics carried by Signals and Orders.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// FillStatus is the terminal state of an order reported by a Fill.
type FillStatus string

const (
	StatusFilled   FillStatus = "filled"
	StatusCanceled FillStatus = "canceled"
)

// Event is the sum type for everything routed by the engine dispatcher.
// Each consumption point switches exhaustively over the concrete types
// below; a new variant that misses a consumption point is caught by the
// dispatcher's default branch as a contract violation.
type Event interface {
	// Pair returns the instrument the event refers to.
	Pair() model.Pair

	// Time returns the event timestamp.
	Time() time.Time
}

// Tick is a bid/ask price update for one pair.
type Tick struct {
	Instrument model.Pair
	Timestamp  time.Time
	Bid        decimal.Decimal
	Ask        decimal.Decimal
}

func (t Tick) Pair() model.Pair { return t.Instrument }
func (t Tick) Time() time.Time  { return t.Timestamp }

func (t Tick) String() string {
	return fmt.Sprintf("Tick{Pair: %s, Time: %s, Bid: %s, Ask: %s}",
		t.Instrument, t.Timestamp, t.Bid, t.Ask)
}

// Signal is a strategy's intent to trade. Units are signed: positive to
// buy, negative to sell. Price is optional; when zero the portfolio uses
// the current market side price as the expected fill price.
type Signal struct {
	Ref        string
	Instrument model.Pair
	OrderType  OrderType
	Units      decimal.Decimal
	Timestamp  time.Time
	Price      decimal.Decimal
}

func (s Signal) Pair() model.Pair { return s.Instrument }
func (s Signal) Time() time.Time  { return s.Timestamp }

func (s Signal) String() string {
	return fmt.Sprintf("Signal{Ref: %s, Pair: %s, Time: %s, OrderType: %s, Units: %s, Price: %s}",
		s.Ref, s.Instrument, s.Timestamp, s.OrderType, s.Units, s.Price)
}

// Order is a Signal accepted by the portfolio, bound for the execution
// adapter. It carries the same ref, pair, units, type and price.
type Order struct {
	Ref        string
	Instrument model.Pair
	OrderType  OrderType
	Units      decimal.Decimal
	Timestamp  time.Time
	Price      decimal.Decimal
}

func (o Order) Pair() model.Pair { return o.Instrument }
func (o Order) Time() time.Time  { return o.Timestamp }

func (o Order) String() string {
	return fmt.Sprintf("Order{Ref: %s, Pair: %s, Time: %s, OrderType: %s, Units: %s, Price: %s}",
		o.Ref, o.Instrument, o.Timestamp, o.OrderType, o.Units, o.Price)
}

// Fill is the execution adapter's report for one Order: exactly one Fill
// per Order, either filled at Price or canceled.
type Fill struct {
	Ref        string
	Instrument model.Pair
	Units      decimal.Decimal
	Price      decimal.Decimal
	Status     FillStatus
	Timestamp  time.Time
}

func (f Fill) Pair() model.Pair { return f.Instrument }
func (f Fill) Time() time.Time  { return f.Timestamp }

func (f Fill) String() string {
	return fmt.Sprintf("Fill{Ref: %s, Pair: %s, Time: %s, Units: %s, Price: %s, Status: %s}",
		f.Ref, f.Instrument, f.Timestamp, f.Units, f.Price, f.Status)
}
