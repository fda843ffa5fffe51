package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/model"
	"github.com/fxquant/fx-engine/internal/ticker"
)

var (
	// ErrUnknownOrderRef is returned when a settlement arrives for an
	// order ref with no open trades. A lost or duplicated order corrupts
	// accounting if ignored, so the engine treats this as fatal.
	ErrUnknownOrderRef = errors.New("portfolio: no open trades for order ref")

	// ErrUnknownFillStatus is returned for a fill status outside the
	// closed filled/canceled set.
	ErrUnknownFillStatus = errors.New("portfolio: unknown fill status")
)

// Position is the per-pair ledger: signed net units, weighted average
// price and unrealized P&L in the instrument's quote currency, plus the
// open Trade legs reserved against in-flight orders.
//
// All mutation happens on the engine's dispatcher goroutine. Deltas are
// computed in quote currency and converted to the account's home
// currency through the qh-factor on return.
type Position struct {
	pair   model.Pair
	home   string
	qhPair model.Pair

	// Live read-only views into the ticker's price cache.
	price   *model.Price
	qhPrice *model.Price

	units    decimal.Decimal
	upl      decimal.Decimal
	avgPrice decimal.Decimal
	trades   []*Trade
}

// NewPosition creates a flat position for pair with home-currency
// conversion wired through the ticker. The ticker must track the
// quote→home pair when the quote currency differs from home.
func NewPosition(home string, pair model.Pair, tk *ticker.Ticker) (*Position, error) {
	qhPair := pair
	if pair.Quote() != home {
		qhPair = model.Pair(pair.Quote() + home)
	}
	price, err := tk.Price(pair)
	if err != nil {
		return nil, err
	}
	qhPrice, err := tk.Price(qhPair)
	if err != nil {
		return nil, fmt.Errorf("quote-home conversion pair %s not tracked: %w", qhPair, err)
	}
	return &Position{
		pair:    pair,
		home:    home,
		qhPair:  qhPair,
		price:   price,
		qhPrice: qhPrice,
	}, nil
}

// Units returns the signed net exposure.
func (p *Position) Units() decimal.Decimal { return p.units }

// AvgPrice returns the weighted average entry price, zero when flat.
func (p *Position) AvgPrice() decimal.Decimal { return p.avgPrice }

// UPL returns the unrealized P&L in the instrument's quote currency.
func (p *Position) UPL() decimal.Decimal { return p.upl }

// UPLHome returns the unrealized P&L converted to the home currency.
func (p *Position) UPLHome() decimal.Decimal { return p.upl.Mul(p.qhFactor()) }

// OpenTrades returns the number of unsettled trade legs.
func (p *Position) OpenTrades() int { return len(p.trades) }

// qhFactor converts quote-currency amounts to the home currency: 1 when
// the pair is already quoted in home currency, else the live bid of the
// quote→home pair.
func (p *Position) qhFactor() decimal.Decimal {
	if p.qhPair == p.pair {
		return decimal.NewFromInt(1)
	}
	return p.qhPrice.Bid
}

// markPrice returns the quote side consistent with how a position of
// the given sign is valued: bid for long (or flat), ask for short.
func (p *Position) markPrice(units decimal.Decimal) decimal.Decimal {
	if units.Sign() >= 0 {
		return p.price.Bid
	}
	return p.price.Ask
}

// Reserve books the tentative impact of an order placed at expPrice and
// records the Trade legs to be reconciled when the order settles. Same
// sign as the current exposure (or flat) is an entry; opposite sign is
// an exit of up to the held units; anything beyond that is a reversal,
// decomposed into a full exit followed by a fresh entry.
//
// Returned deltas are in home currency, to be applied to the account
// balance and unrealized P&L.
func (p *Position) Reserve(units, expPrice decimal.Decimal, ref string) (deltaBalance, deltaUPL decimal.Decimal) {
	db := decimal.Zero
	dupl := decimal.Zero

	switch {
	case units.Mul(p.units).Sign() >= 0:
		b, u := p.entryTrade(expPrice, units, ref)
		db = db.Add(b)
		dupl = dupl.Add(u)
	case units.Abs().Cmp(p.units.Abs()) <= 0:
		b, u := p.exitTrade(expPrice, units, ref)
		db = db.Add(b)
		dupl = dupl.Add(u)
	default:
		// Reversal: close the whole position, re-enter the remainder.
		b, u := p.exitTrade(expPrice, p.units.Neg(), ref)
		db = db.Add(b)
		dupl = dupl.Add(u)
		b, u = p.entryTrade(expPrice, units.Add(p.units), ref)
		db = db.Add(b)
		dupl = dupl.Add(u)
	}

	p.units = p.units.Add(units)
	p.upl = p.upl.Add(dupl)
	p.recomputeAvgPrice()

	qh := p.qhFactor()
	return db.Mul(qh), dupl.Mul(qh)
}

// entryTrade reserves a leg that adds same-sign exposure. Entering at
// expPrice while the mark already sits elsewhere books the slippage
// between mark and expected fill as an unrealized P&L delta.
func (p *Position) entryTrade(expPrice, units decimal.Decimal, ref string) (deltaBalance, deltaUPL decimal.Decimal) {
	dupl := p.markPrice(units).Sub(expPrice).Mul(units)
	p.trades = append(p.trades, &Trade{
		Ref:         ref,
		Kind:        TradeEntry,
		Units:       units,
		ExpPrice:    expPrice,
		reservedUPL: dupl,
	})
	return decimal.Zero, dupl
}

// exitTrade reserves a leg that removes opposite-sign exposure:
// realizes (expPrice - avgPrice) per unit into balance and releases the
// held unrealized P&L pro rata.
func (p *Position) exitTrade(expPrice, units decimal.Decimal, ref string) (deltaBalance, deltaUPL decimal.Decimal) {
	db := expPrice.Sub(p.avgPrice).Mul(units).Neg()
	dupl := model.RoundPrice(p.upl.Mul(units).Div(p.units))
	p.trades = append(p.trades, &Trade{
		Ref:             ref,
		Kind:            TradeExit,
		Units:           units,
		ExpPrice:        expPrice,
		reservedBalance: db,
		reservedUPL:     dupl,
	})
	return db, dupl
}

// SettleOpen reconciles every open trade leg for ref against the
// executed price (or reverses it on cancellation) and removes the legs.
// Returned deltas are deviations from the reserved impact, in home
// currency.
func (p *Position) SettleOpen(ref string, status event.FillStatus, execPrice decimal.Decimal) (deltaBalance, deltaUPL decimal.Decimal, err error) {
	db := decimal.Zero
	dupl := decimal.Zero
	matched := 0

	kept := p.trades[:0]
	for _, t := range p.trades {
		if t.Ref != ref {
			kept = append(kept, t)
			continue
		}
		matched++
		switch status {
		case event.StatusFilled:
			b, u, ferr := t.Fill(execPrice)
			if ferr != nil {
				return decimal.Decimal{}, decimal.Decimal{}, ferr
			}
			db = db.Add(b)
			dupl = dupl.Add(u)
		case event.StatusCanceled:
			b, u := t.Cancel()
			db = db.Add(b)
			dupl = dupl.Add(u)
			p.units = p.units.Sub(t.Units)
		default:
			return decimal.Decimal{}, decimal.Decimal{},
				fmt.Errorf("%w: %q", ErrUnknownFillStatus, status)
		}
	}
	if matched == 0 {
		return decimal.Decimal{}, decimal.Decimal{},
			fmt.Errorf("%w: %s", ErrUnknownOrderRef, ref)
	}
	p.trades = kept

	p.upl = p.upl.Add(dupl)
	p.recomputeAvgPrice()

	qh := p.qhFactor()
	return db.Mul(qh), dupl.Mul(qh), nil
}

// MarkToMarket recomputes the unrealized P&L from the live mark price
// without touching units or average price. Returns the home-currency
// delta, zero when flat.
func (p *Position) MarkToMarket() decimal.Decimal {
	if p.units.IsZero() {
		return decimal.Zero
	}
	newUPL := p.markPrice(p.units).Sub(p.avgPrice).Mul(p.units)
	delta := newUPL.Sub(p.upl)
	p.upl = newUPL
	return delta.Mul(p.qhFactor())
}

// recomputeAvgPrice re-derives the weighted average price from the mark
// and the held unrealized P&L. Flat positions have no average price.
func (p *Position) recomputeAvgPrice() {
	if p.units.IsZero() {
		p.avgPrice = decimal.Zero
		p.upl = decimal.Zero
		return
	}
	p.avgPrice = model.RoundPrice(p.markPrice(p.units).Sub(p.upl.Div(p.units)))
}
