package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/model"
)

// TradeKind distinguishes the two ledger legs: an entry adds same-sign
// exposure, an exit removes opposite-sign exposure.
type TradeKind string

const (
	TradeEntry TradeKind = "entry"
	TradeExit  TradeKind = "exit"
)

// ErrUnknownTradeKind indicates a Trade constructed outside this package.
var ErrUnknownTradeKind = errors.New("portfolio: unknown trade kind")

// Trade is one reserved ledger leg, created at order-placement time with
// an expected price and reconciled against the executed price once the
// owning order settles. The tentative impact booked at reservation time
// is kept so a cancellation can reverse it exactly.
type Trade struct {
	Ref      string
	Kind     TradeKind
	Units    decimal.Decimal
	ExpPrice decimal.Decimal

	// Impact booked against balance/upl at reservation, in the
	// instrument's quote currency.
	reservedBalance decimal.Decimal
	reservedUPL     decimal.Decimal
}

// Fill computes the deviation between the tentatively booked impact and
// the impact at the executed price. Returned deltas are quoted in the
// pair's quote currency and rounded at the price scale.
//
// For an entry the balance is untouched and the upl deviation is
// (expected - executed) * units; for an exit the realized balance
// deviates by (expected - executed) * units and the upl release is
// unchanged.
func (t *Trade) Fill(execPrice decimal.Decimal) (deltaBalance, deltaUPL decimal.Decimal, err error) {
	dev := t.ExpPrice.Sub(execPrice).Mul(t.Units)
	switch t.Kind {
	case TradeEntry:
		return decimal.Zero, model.RoundPrice(dev), nil
	case TradeExit:
		return model.RoundPrice(dev), decimal.Zero, nil
	default:
		return decimal.Decimal{}, decimal.Decimal{},
			fmt.Errorf("%w: %q", ErrUnknownTradeKind, t.Kind)
	}
}

// Cancel reverses the impact booked at reservation time.
func (t *Trade) Cancel() (deltaBalance, deltaUPL decimal.Decimal) {
	return t.reservedBalance.Neg(), t.reservedUPL.Neg()
}
