// Package ticker holds the latest bid/ask quote for every configured
// currency pair and its algebraic inverse. The price cache is owned by
// the engine's dispatcher goroutine; positions hold read-only views into
// it and must not mutate them.
package ticker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/model"
)

var (
	// ErrZeroPrice is returned when inverting an uninitialized quote.
	// Prices must be set before the first inversion; hitting this is a
	// contract violation and stops the engine.
	ErrZeroPrice = errors.New("ticker: cannot invert zero price")

	// ErrUnknownPair is returned when a price view is requested for a
	// pair the ticker was not configured with.
	ErrUnknownPair = errors.New("ticker: unknown pair")
)

var one = decimal.NewFromInt(1)

// Ticker caches the latest Price per pair. Every configured pair
// implicitly creates its inverse pair, kept in sync on each update.
type Ticker struct {
	pairs  []model.Pair
	prices map[model.Pair]*model.Price

	// mu guards Update against Snapshot. Price views bypass it; they
	// are only read on the dispatcher goroutine that calls Update.
	mu sync.RWMutex
}

// New creates a Ticker with zeroed quotes for each pair and its inverse.
func New(pairs []model.Pair) *Ticker {
	prices := make(map[model.Pair]*model.Price, len(pairs)*2)
	for _, p := range pairs {
		prices[p] = &model.Price{}
		prices[p.Invert()] = &model.Price{}
	}
	return &Ticker{pairs: pairs, prices: prices}
}

// Pairs returns the configured pairs, without synthetic inverses.
func (t *Ticker) Pairs() []model.Pair { return t.pairs }

// Price returns the live view for pair. The returned pointer stays valid
// for the lifetime of the ticker and is updated in place on every tick.
func (t *Ticker) Price(pair model.Pair) (*model.Price, error) {
	p, ok := t.prices[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}
	return p, nil
}

// Prices returns the full price map, including synthetic inverse pairs.
func (t *Ticker) Prices() map[model.Pair]*model.Price { return t.prices }

// InvertPrices computes the synthetic inverse quote for a pair. Bid and
// ask swap roles under inversion: the inverse bid is 1/ask and the
// inverse ask is 1/bid, each rounded half-to-even at the price scale.
func InvertPrices(pair model.Pair, bid, ask decimal.Decimal) (model.Pair, decimal.Decimal, decimal.Decimal, error) {
	if bid.IsZero() || ask.IsZero() {
		return "", decimal.Decimal{}, decimal.Decimal{},
			fmt.Errorf("%w: %s bid=%s ask=%s", ErrZeroPrice, pair, bid, ask)
	}
	invBid := model.RoundPrice(one.Div(ask))
	invAsk := model.RoundPrice(one.Div(bid))
	return pair.Invert(), invBid, invAsk, nil
}

// Update writes the tick's bid/ask/time for its pair and the inverted
// triple for the synthetic inverse pair.
func (t *Ticker) Update(tick event.Tick) error {
	p, ok := t.prices[tick.Instrument]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPair, tick.Instrument)
	}
	invPair, invBid, invAsk, err := InvertPrices(tick.Instrument, tick.Bid, tick.Ask)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	p.Bid = tick.Bid
	p.Ask = tick.Ask
	p.Time = tick.Timestamp

	inv := t.prices[invPair]
	inv.Bid = invBid
	inv.Ask = invAsk
	inv.Time = tick.Timestamp
	return nil
}

// Snapshot copies every quote, synthetic inverses included, for HTTP
// readers. Safe to call from any goroutine.
func (t *Ticker) Snapshot() map[model.Pair]model.Price {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[model.Pair]model.Price, len(t.prices))
	for pair, p := range t.prices {
		out[pair] = *p
	}
	return out
}

// AllInitialized reports whether every tracked pair, inverses included,
// has both sides of its quote set. No order is ever placed before this
// holds.
func (t *Ticker) AllInitialized() bool {
	for _, p := range t.prices {
		if !p.Initialized() {
			return false
		}
	}
	return true
}
