package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/execution"
	"github.com/fxquant/fx-engine/internal/model"
	"github.com/fxquant/fx-engine/internal/portfolio"
	"github.com/fxquant/fx-engine/internal/result"
	"github.com/fxquant/fx-engine/internal/ticker"
)

// d is a test helper for creating decimals from strings.
func d(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return dec
}

// scriptedFeeder streams a fixed tick slice, then closes the queue.
type scriptedFeeder struct {
	feedQ chan<- event.Tick
	ticks []event.Tick
	done  bool
}

func (f *scriptedFeeder) Run(ctx context.Context) error {
	defer close(f.feedQ)
	for _, tick := range f.ticks {
		select {
		case f.feedQ <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.done = true
	return nil
}

func (f *scriptedFeeder) ContinueBacktest() bool { return !f.done }

// buyOnceStrategy issues one market buy on the first tick it sees.
type buyOnceStrategy struct {
	eventQ chan<- event.Event
	units  decimal.Decimal
	fired  bool
}

func (s *buyOnceStrategy) CalcSignals(tick event.Tick) {
	if s.fired {
		return
	}
	s.fired = true
	s.eventQ <- event.Signal{
		Ref:        "sig-1",
		Instrument: tick.Instrument,
		OrderType:  event.OrderMarket,
		Units:      s.units,
		Timestamp:  tick.Timestamp,
	}
}

// captureSink records results in arrival order.
type captureSink struct {
	mu      sync.Mutex
	results []result.Result
	closed  bool
}

func (c *captureSink) WriteEquity(r result.EquityResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *captureSink) WriteExecution(r result.ExecutionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func usdjpyTick(bid, ask string) event.Tick {
	return event.Tick{Instrument: "USDJPY", Timestamp: time.Now(), Bid: d(bid), Ask: d(ask)}
}

// backtestEnv wires a full single-pair backtest over the given ticks.
func backtestEnv(t *testing.T, ticks []event.Tick) (*Engine, *captureSink, *portfolio.Portfolio) {
	t.Helper()
	q := NewQueues(64)
	tk := ticker.New([]model.Pair{"USDJPY"})

	pf, err := portfolio.New(tk, q.Event, q.Result, "JPY",
		[]model.Pair{"USDJPY"}, d("1000000"), nil)
	if err != nil {
		t.Fatalf("portfolio setup failed: %v", err)
	}

	sink := &captureSink{}
	eng := New(
		Config{Backtest: true},
		q, tk, pf,
		&buyOnceStrategy{eventQ: q.Event, units: d("1000")},
		&scriptedFeeder{feedQ: q.Feed, ticks: ticks},
		execution.NewSimulatedExecution(q.Exec, q.Event, 0),
		result.NewWorker(q.Result, sink),
	)
	return eng, sink, pf
}

// --- End-to-end tests ---

func TestRun_BuyThenMarkToMarket(t *testing.T) {
	eng, sink, pf := backtestEnv(t, []event.Tick{
		usdjpyTick("110.000", "110.050"),
		usdjpyTick("111.000", "111.050"),
	})

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !pf.Equity().Equal(d("1000950")) {
		t.Errorf("expected final equity 1000950, got %s", pf.Equity())
	}
	if !pf.Balance().Equal(d("1000000")) {
		t.Errorf("open position must leave balance untouched, got %s", pf.Balance())
	}

	pos := pf.Position("USDJPY")
	if !pos.Units().Equal(d("1000")) || !pos.AvgPrice().Equal(d("110.050")) {
		t.Errorf("position mismatch: units=%s avg=%s", pos.Units(), pos.AvgPrice())
	}
	if !sink.closed {
		t.Error("result sinks must be closed on shutdown")
	}
}

func TestRun_FillSettlesBeforeNextTick(t *testing.T) {
	eng, sink, _ := backtestEnv(t, []event.Tick{
		usdjpyTick("110.000", "110.050"),
		usdjpyTick("111.000", "111.050"),
	})
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Result order proves the pipeline ordering: the first tick's
	// snapshot, then the execution it triggered, then the second tick's
	// snapshot reflecting the open position.
	if len(sink.results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(sink.results))
	}
	eq1, ok := sink.results[0].(result.EquityResult)
	if !ok || !eq1.Equity.Equal(d("1000000")) {
		t.Errorf("result 0 should be the starting snapshot, got %#v", sink.results[0])
	}
	exec, ok := sink.results[1].(result.ExecutionResult)
	if !ok || !exec.Units.Equal(d("1000")) || !exec.Price.Equal(d("110.050")) {
		t.Errorf("result 1 should be the fill, got %#v", sink.results[1])
	}
	eq2, ok := sink.results[2].(result.EquityResult)
	if !ok || !eq2.Equity.Equal(d("1000950")) {
		t.Errorf("result 2 should reflect the open position, got %#v", sink.results[2])
	}
}

func TestRun_NoTicksTerminates(t *testing.T) {
	eng, sink, pf := backtestEnv(t, nil)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.results) != 0 {
		t.Errorf("expected no results, got %d", len(sink.results))
	}
	if !pf.Equity().Equal(d("1000000")) {
		t.Errorf("equity must be untouched, got %s", pf.Equity())
	}
}

func TestRun_ContextCancel(t *testing.T) {
	eng, _, _ := backtestEnv(t, []event.Tick{usdjpyTick("110.000", "110.050")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := eng.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("expected nil or context.Canceled, got %v", err)
	}
}

// --- Dispatcher contract tests ---

type bogusEvent struct{}

func (bogusEvent) Pair() model.Pair { return "USDJPY" }
func (bogusEvent) Time() time.Time  { return time.Time{} }

func TestHandleEvent_RejectsTick(t *testing.T) {
	eng, _, _ := backtestEnv(t, nil)
	if err := eng.handleEvent(usdjpyTick("110.000", "110.050")); !errors.Is(err, ErrTickOnEventQueue) {
		t.Errorf("expected ErrTickOnEventQueue, got %v", err)
	}
}

func TestHandleEvent_RejectsUnknownType(t *testing.T) {
	eng, _, _ := backtestEnv(t, nil)
	if err := eng.handleEvent(bogusEvent{}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}
