// Package engine wires the event pipeline: feed queue → dispatcher →
// {ticker, portfolio, strategy} → event queue → execution queue →
// execution worker → event queue → portfolio → result queue.
//
// The dispatcher is the single goroutine that touches the Ticker and
// Portfolio; every other worker only exchanges immutable event values
// over channels, so no shared-state locking is needed on the accounting
// path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/execution"
	"github.com/fxquant/fx-engine/internal/feed"
	"github.com/fxquant/fx-engine/internal/metrics"
	"github.com/fxquant/fx-engine/internal/portfolio"
	"github.com/fxquant/fx-engine/internal/result"
	"github.com/fxquant/fx-engine/internal/strategy"
	"github.com/fxquant/fx-engine/internal/ticker"
)

var (
	// ErrUnknownEvent is returned when a value outside the closed
	// Tick/Signal/Order/Fill set reaches the dispatcher. Routing is
	// exhaustive by construction, so this is a contract violation and
	// stops the engine.
	ErrUnknownEvent = errors.New("engine: unknown event type")

	// ErrTickOnEventQueue is returned when a Tick arrives on the event
	// queue; ticks belong on the feed queue only.
	ErrTickOnEventQueue = errors.New("engine: tick received on event queue")
)

// Config holds the engine's run parameters.
type Config struct {
	// Backtest makes the dispatcher wait for in-flight fills before
	// ingesting the next tick, so each tick's consequences fully
	// resolve before the next one.
	Backtest bool

	// Heartbeat pauses the dispatcher between iterations. Zero means
	// full throughput; a positive value paces a live loop.
	Heartbeat time.Duration

	// MaxIters caps dispatcher iterations as a safety valve against
	// runaway loops.
	MaxIters int

	// QueueSize is the buffer of the feed and event queues.
	QueueSize int
}

// Engine runs the dispatch loop and owns queue lifecycle: the feeder
// closes the feed queue, the engine closes the execution queue after the
// dispatch loop drains, and closes the result queue once the execution
// worker has stopped.
type Engine struct {
	cfg Config

	ticker    *ticker.Ticker
	portfolio *portfolio.Portfolio
	strategy  strategy.Strategy
	feeder    feed.DataFeeder
	execution execution.ExecutionHandler
	results   *result.Worker

	feedQ   chan event.Tick
	eventQ  chan event.Event
	execQ   chan event.Order
	resultQ chan result.Result

	iters         int
	pendingOrders int
}

// Queues groups the channels an Engine allocates, handed to adapter
// constructors before New is called.
type Queues struct {
	Feed   chan event.Tick
	Event  chan event.Event
	Exec   chan event.Order
	Result chan result.Result
}

// NewQueues allocates the four pipeline queues. The result queue is
// oversized so the result path never back-pressures accounting.
func NewQueues(size int) Queues {
	if size < 1 {
		size = 1024
	}
	return Queues{
		Feed:   make(chan event.Tick, size),
		Event:  make(chan event.Event, size),
		Exec:   make(chan event.Order, size),
		Result: make(chan result.Result, size*4),
	}
}

// New assembles an engine over already-wired components. The queues
// must be the same channels the adapters were constructed with.
func New(
	cfg Config,
	q Queues,
	tk *ticker.Ticker,
	pf *portfolio.Portfolio,
	strat strategy.Strategy,
	feeder feed.DataFeeder,
	exec execution.ExecutionHandler,
	results *result.Worker,
) *Engine {
	if cfg.MaxIters <= 0 {
		cfg.MaxIters = 100_000_000
	}
	return &Engine{
		cfg:       cfg,
		ticker:    tk,
		portfolio: pf,
		strategy:  strat,
		feeder:    feeder,
		execution: exec,
		results:   results,
		feedQ:     q.Feed,
		eventQ:    q.Event,
		execQ:     q.Exec,
		resultQ:   q.Result,
	}
}

// Run starts the feed, execution and result workers, runs the dispatch
// loop to completion, then shuts the pipeline down in dependency order:
// feed close → dispatch drains → execution queue close → execution
// worker joins → result queue close → result worker joins.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "backtest", e.cfg.Backtest, "max_iters", e.cfg.MaxIters)
	start := time.Now()

	// The feeder must observe cancellation if dispatch stops early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var resultWG sync.WaitGroup
	resultWG.Add(1)
	go func() {
		defer resultWG.Done()
		e.results.Run()
	}()

	var execWG sync.WaitGroup
	execWG.Add(1)
	go func() {
		defer execWG.Done()
		e.execution.Run()
	}()

	var feedWG sync.WaitGroup
	feedWG.Add(1)
	go func() {
		defer feedWG.Done()
		if err := e.feeder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("datafeed stopped with error", "err", err)
		}
	}()

	dispatchErr := e.dispatch(ctx)

	// Sentinel for the execution worker, then drain the pipeline tail.
	cancel()
	close(e.execQ)
	execWG.Wait()
	feedWG.Wait()
	close(e.resultQ)
	resultWG.Wait()

	slog.Info("engine stopped",
		"iters", e.iters,
		"elapsed", time.Since(start),
		"equity", e.portfolio.Equity().String(),
	)
	return dispatchErr
}

// dispatch is the central loop. In-flight events are always drained
// before the next tick is ingested, preserving causal order between an
// instrument's price history and the strategy's reaction to it.
func (e *Engine) dispatch(ctx context.Context) error {
	feedOpen := true

	for e.iters < e.cfg.MaxIters {
		e.iters++
		metrics.DispatchIterations.Inc()
		metrics.QueueDepth.WithLabelValues("event").Set(float64(len(e.eventQ)))
		metrics.QueueDepth.WithLabelValues("feed").Set(float64(len(e.feedQ)))

		// Event queue has strict priority over the feed queue.
		select {
		case ev := <-e.eventQ:
			if err := e.handleEvent(ev); err != nil {
				return err
			}
			e.pause()
			continue
		default:
		}

		switch {
		case e.cfg.Backtest && e.pendingOrders > 0:
			// A tick's orders are in flight; block for their fills
			// before the next tick may be ingested.
			select {
			case ev := <-e.eventQ:
				if err := e.handleEvent(ev); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}

		case feedOpen:
			select {
			case tick, ok := <-e.feedQ:
				if !ok {
					slog.Info("acknowledged end of datafeed")
					feedOpen = false
					e.feedQ = nil
					continue
				}
				if err := e.handleTick(tick); err != nil {
					return err
				}
			case ev := <-e.eventQ:
				if err := e.handleEvent(ev); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}

		default:
			// Feed exhausted: drain what remains, then stop.
			if e.pendingOrders == 0 && len(e.eventQ) == 0 {
				return nil
			}
			select {
			case ev := <-e.eventQ:
				if err := e.handleEvent(ev); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		e.pause()
	}
	slog.Warn("engine hit max iterations", "max_iters", e.cfg.MaxIters)
	return nil
}

// handleTick routes a tick through the price cache, the portfolio's
// mark-to-market and the strategy.
func (e *Engine) handleTick(tick event.Tick) error {
	slog.Debug("process tick", "tick", tick.String())
	metrics.TicksTotal.WithLabelValues(string(tick.Instrument)).Inc()

	if err := e.ticker.Update(tick); err != nil {
		return err
	}
	e.portfolio.HandleTick(tick)
	e.strategy.CalcSignals(tick)
	return nil
}

// handleEvent routes one event-queue entry. The type switch is the
// single exhaustive consumption point for the event sum type.
func (e *Engine) handleEvent(ev event.Event) error {
	switch ev := ev.(type) {
	case event.Signal:
		slog.Debug("process signal", "signal", ev.String())
		return e.portfolio.HandleSignal(ev)
	case event.Order:
		slog.Debug("process order", "order", ev.String())
		e.execQ <- ev
		e.pendingOrders++
		metrics.OrdersTotal.Inc()
		return nil
	case event.Fill:
		slog.Debug("process fill", "fill", ev.String())
		e.pendingOrders--
		return e.portfolio.HandleFill(ev)
	case event.Tick:
		return fmt.Errorf("%w: %v", ErrTickOnEventQueue, ev)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func (e *Engine) pause() {
	if e.cfg.Heartbeat > 0 {
		time.Sleep(e.cfg.Heartbeat)
	}
}
