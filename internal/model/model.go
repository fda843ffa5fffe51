// Package model defines the core domain types shared across the engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Decimal scales used for explicit rounding. Established once here and
// never mutated; every monetary computation rounds through RoundPrice or
// RoundAmount (round half to even).
const (
	// PriceScale is the number of fractional digits for prices.
	PriceScale int32 = 8

	// AmountScale is the number of fractional digits for currency amounts.
	AmountScale int32 = 2
)

// pairRegex matches a currency pair ticker: six uppercase letters,
// base followed by quote. Example: USDJPY.
var pairRegex = regexp.MustCompile(`^[A-Z]{6}$`)

// ErrInvalidPair is returned when a pair ticker is malformed.
var ErrInvalidPair = errors.New("model: invalid currency pair")

// Pair is a currency pair identifier of the form BASEQUOTE, e.g. "USDJPY".
type Pair string

// ParsePair validates a pair ticker string.
func ParsePair(s string) (Pair, error) {
	if !pairRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected six uppercase letters, e.g. USDJPY)", ErrInvalidPair, s)
	}
	return Pair(s), nil
}

// Base returns the base currency, the first three letters.
func (p Pair) Base() string { return string(p[:3]) }

// Quote returns the quote currency, the last three letters.
func (p Pair) Quote() string { return string(p[3:]) }

// Invert returns the inverse pair: QUOTEBASE. Invert is its own inverse.
func (p Pair) Invert() Pair { return Pair(string(p[3:]) + string(p[:3])) }

// SharesCurrency reports whether two pairs have a currency leg in common.
// Pairs sharing a leg carry correlated exposure.
func (p Pair) SharesCurrency(other Pair) bool {
	return p.Base() == other.Base() || p.Base() == other.Quote() ||
		p.Quote() == other.Base() || p.Quote() == other.Quote()
}

// Price holds the latest quote for one pair. Bid and ask are zero before
// the first tick arrives.
type Price struct {
	Bid  decimal.Decimal
	Ask  decimal.Decimal
	Time time.Time
}

// Initialized reports whether both sides of the quote have been set.
func (p *Price) Initialized() bool {
	return !p.Bid.IsZero() && !p.Ask.IsZero()
}

// RoundPrice rounds d to PriceScale fractional digits, half to even.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(PriceScale)
}

// RoundAmount rounds d to AmountScale fractional digits, half to even.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(AmountScale)
}
