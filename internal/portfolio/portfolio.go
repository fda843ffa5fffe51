// Package portfolio implements the account-state machine: per-pair
// position ledgers, realized balance and derived equity, reacting to
// Tick (mark-to-market), Signal (gating and order placement) and Fill
// (settlement) events.
//
// All monetary values use shopspring/decimal — never float64 for money.
package portfolio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/metrics"
	"github.com/fxquant/fx-engine/internal/model"
	"github.com/fxquant/fx-engine/internal/result"
	"github.com/fxquant/fx-engine/internal/risk"
	"github.com/fxquant/fx-engine/internal/ticker"
)

// ErrUntrackedPair is returned when a Fill arrives for a pair with no
// ledger. Like an unknown order ref, this corrupts accounting if
// ignored, so the engine treats it as fatal.
var ErrUntrackedPair = errors.New("portfolio: fill for untracked pair")

// Portfolio owns one Position per configured pair plus the account
// balance and equity. Equity is always derived: balance + total
// unrealized P&L, recomputed after every mutation.
//
// Handle* methods run on the engine's dispatcher goroutine only; the
// mutex exists solely so Snapshot can be served to HTTP readers.
type Portfolio struct {
	ticker  *ticker.Ticker
	eventQ  chan<- event.Event
	resultQ chan<- result.Result
	limiter *risk.Limiter

	home  string
	pairs []model.Pair

	mu        sync.RWMutex
	balance   decimal.Decimal
	upl       decimal.Decimal
	equity    decimal.Decimal
	positions map[model.Pair]*Position
}

// New creates a Portfolio with a flat position per pair and the starting
// equity held entirely as balance. Pass a nil limiter to disable risk
// gating.
func New(
	tk *ticker.Ticker,
	eventQ chan<- event.Event,
	resultQ chan<- result.Result,
	home string,
	pairs []model.Pair,
	equity decimal.Decimal,
	limiter *risk.Limiter,
) (*Portfolio, error) {
	positions := make(map[model.Pair]*Position, len(pairs))
	for _, pair := range pairs {
		pos, err := NewPosition(home, pair, tk)
		if err != nil {
			return nil, err
		}
		positions[pair] = pos
	}
	return &Portfolio{
		ticker:    tk,
		eventQ:    eventQ,
		resultQ:   resultQ,
		limiter:   limiter,
		home:      home,
		pairs:     pairs,
		balance:   equity,
		equity:    equity,
		positions: positions,
	}, nil
}

// Balance returns the realized cash balance in home currency.
func (pf *Portfolio) Balance() decimal.Decimal {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.balance
}

// Equity returns balance plus total unrealized P&L in home currency.
func (pf *Portfolio) Equity() decimal.Decimal {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.equity
}

// Position returns the ledger for pair, or nil if the pair is untracked.
func (pf *Portfolio) Position(pair model.Pair) *Position {
	return pf.positions[pair]
}

// HandleTick marks every position to market, refreshes equity and emits
// an equity snapshot to the result queue.
func (pf *Portfolio) HandleTick(tick event.Tick) {
	pf.mu.Lock()

	upl := make(map[string]decimal.Decimal, len(pf.pairs)+1)
	total := decimal.Zero
	for _, pair := range pf.pairs {
		pos := pf.positions[pair]
		pos.MarkToMarket()
		home := pos.UPLHome()
		upl[string(pair)] = home
		total = total.Add(home)
	}
	pf.upl = total
	pf.equity = pf.balance.Add(pf.upl)
	upl[result.TotalKey] = pf.upl

	res := result.EquityResult{
		Time:    tick.Timestamp,
		Equity:  pf.equity,
		Balance: pf.balance,
		UPL:     upl,
	}
	metrics.Equity.Set(pf.equity.InexactFloat64())
	pf.mu.Unlock()

	pf.resultQ <- res
}

// HandleSignal gates a Signal on price completeness and risk limits,
// reserves its impact against the position and forwards it as an Order
// carrying the same ref. Dropped signals are logged, never fatal; the
// strategy may retry on the next tick.
func (pf *Portfolio) HandleSignal(sig event.Signal) error {
	// No order is ever placed on incomplete price data.
	if !pf.ticker.AllInitialized() {
		slog.Error("unable to execute signal: price data incomplete", "signal", sig.String())
		metrics.SignalsTotal.WithLabelValues("dropped").Inc()
		return nil
	}

	if pf.limiter != nil {
		exposures := make(map[model.Pair]decimal.Decimal, len(pf.pairs))
		for _, pair := range pf.pairs {
			exposures[pair] = pf.positions[pair].Units()
		}
		if err := pf.limiter.CheckLimit(sig.Instrument, sig.Units, exposures); err != nil {
			slog.Warn("signal rejected by risk limiter", "err", err, "signal", sig.String())
			metrics.SignalsTotal.WithLabelValues("rejected").Inc()
			return nil
		}
	}

	pos := pf.positions[sig.Instrument]
	if pos == nil {
		slog.Error("signal for untracked pair dropped", "signal", sig.String())
		metrics.SignalsTotal.WithLabelValues("dropped").Inc()
		return nil
	}

	expPrice := sig.Price
	if expPrice.IsZero() {
		expPrice = pf.expectedFillPrice(sig.Instrument, sig.Units)
	}

	pf.mu.Lock()
	deltaBalance, deltaUPL := pos.Reserve(sig.Units, expPrice, sig.Ref)
	pf.applyDeltas(deltaBalance, deltaUPL)
	pf.mu.Unlock()

	order := event.Order{
		Ref:        sig.Ref,
		Instrument: sig.Instrument,
		OrderType:  sig.OrderType,
		Units:      sig.Units,
		Timestamp:  sig.Timestamp,
		Price:      expPrice,
	}
	if err := event.Push(pf.eventQ, order); err != nil {
		return err
	}
	metrics.SignalsTotal.WithLabelValues("accepted").Inc()
	slog.Info("order issued", "order", order.String())
	return nil
}

// HandleFill settles the open trades reserved for the fill's order ref,
// applies the deviation to balance and unrealized P&L, and emits an
// execution record. A fill with no matching open trades is fatal.
func (pf *Portfolio) HandleFill(fill event.Fill) error {
	pos := pf.positions[fill.Instrument]
	if pos == nil {
		return fmt.Errorf("%w: fill for %s (ref %s)", ErrUntrackedPair, fill.Instrument, fill.Ref)
	}

	pf.mu.Lock()
	deltaBalance, deltaUPL, err := pos.SettleOpen(fill.Ref, fill.Status, fill.Price)
	if err != nil {
		pf.mu.Unlock()
		return err
	}
	pf.applyDeltas(deltaBalance, deltaUPL)
	metrics.Equity.Set(pf.equity.InexactFloat64())
	pf.mu.Unlock()

	pf.resultQ <- result.ExecutionResult{
		Time:  fill.Timestamp,
		Pair:  fill.Instrument,
		Units: fill.Units,
		Price: fill.Price,
	}
	metrics.FillsTotal.WithLabelValues(string(fill.Status)).Inc()
	return nil
}

// applyDeltas mutates balance and upl and re-derives equity.
// Callers hold pf.mu.
func (pf *Portfolio) applyDeltas(deltaBalance, deltaUPL decimal.Decimal) {
	pf.balance = pf.balance.Add(deltaBalance)
	pf.upl = pf.upl.Add(deltaUPL)
	pf.equity = pf.balance.Add(pf.upl)
}

// expectedFillPrice picks the quote side a market order of the given
// sign would trade at: ask when buying, bid when selling.
func (pf *Portfolio) expectedFillPrice(pair model.Pair, units decimal.Decimal) decimal.Decimal {
	price, err := pf.ticker.Price(pair)
	if err != nil {
		return decimal.Zero
	}
	if units.Sign() >= 0 {
		return price.Ask
	}
	return price.Bid
}

// PositionSnapshot is a read-only copy of one ledger for external
// consumers.
type PositionSnapshot struct {
	Pair     model.Pair      `json:"pair"`
	Units    decimal.Decimal `json:"units"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	UPL      decimal.Decimal `json:"upl"`
	UPLHome  decimal.Decimal `json:"upl_home"`
}

// Snapshot is a point-in-time copy of the account state.
type Snapshot struct {
	HomeCurrency string             `json:"home_currency"`
	Balance      decimal.Decimal    `json:"balance"`
	UPL          decimal.Decimal    `json:"upl"`
	Equity       decimal.Decimal    `json:"equity"`
	Positions    []PositionSnapshot `json:"positions"`
}

// Snapshot copies the account state for HTTP readers. Safe to call from
// any goroutine.
func (pf *Portfolio) Snapshot() Snapshot {
	pf.mu.RLock()
	defer pf.mu.RUnlock()

	positions := make([]PositionSnapshot, 0, len(pf.pairs))
	for _, pair := range pf.pairs {
		pos := pf.positions[pair]
		positions = append(positions, PositionSnapshot{
			Pair:     pair,
			Units:    pos.Units(),
			AvgPrice: pos.AvgPrice(),
			UPL:      pos.UPL(),
			UPLHome:  pos.UPLHome(),
		})
	}
	return Snapshot{
		HomeCurrency: pf.home,
		Balance:      pf.balance,
		UPL:          pf.upl,
		Equity:       pf.equity,
		Positions:    positions,
	}
}
