// Package risk enforces position limits that account for correlation
// between currency pairs.
//
// A book long EURUSD, GBPUSD and AUDUSD is three trades but one dollar
// bet. Pairs sharing a currency leg move together, so the limiter checks
// both the single-pair exposure and the aggregate exposure across every
// pair correlated with the one being traded.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/model"
)

var (
	// ErrPerPairLimitExceeded is returned when a trade would push a
	// single pair's net units beyond the per-pair maximum.
	ErrPerPairLimitExceeded = errors.New("risk: per-pair position limit exceeded")

	// ErrCorrelatedLimitExceeded is returned when a trade would push the
	// aggregate absolute exposure across currency-correlated pairs
	// beyond the correlated maximum.
	ErrCorrelatedLimitExceeded = errors.New("risk: correlated exposure limit exceeded")
)

// Limiter enforces position limits with currency-correlation awareness.
// A zero limit disables the corresponding check.
type Limiter struct {
	// MaxPerPair is the maximum absolute net units in any single pair.
	MaxPerPair decimal.Decimal

	// MaxCorrelated is the maximum aggregate absolute units across all
	// pairs sharing a currency leg with the traded pair.
	MaxCorrelated decimal.Decimal
}

// NewLimiter creates a limiter with the given per-pair and correlated
// exposure limits.
func NewLimiter(maxPerPair, maxCorrelated decimal.Decimal) *Limiter {
	return &Limiter{MaxPerPair: maxPerPair, MaxCorrelated: maxCorrelated}
}

// CheckLimit validates whether a trade respects position limits.
//
//   - target: the pair being traded
//   - unitsDelta: signed change in units
//   - exposures: current net units per pair
//
// Returns nil if the trade is within limits, or an error naming the
// violated limit.
func (l *Limiter) CheckLimit(
	target model.Pair,
	unitsDelta decimal.Decimal,
	exposures map[model.Pair]decimal.Decimal,
) error {
	newPosition := exposures[target].Add(unitsDelta)

	if l.MaxPerPair.IsPositive() && newPosition.Abs().GreaterThan(l.MaxPerPair) {
		return ErrPerPairLimitExceeded
	}

	if !l.MaxCorrelated.IsPositive() {
		return nil
	}

	totalCorrelated := newPosition.Abs()
	for pair, units := range exposures {
		if pair == target {
			continue // already counted via newPosition above
		}
		if pair.SharesCurrency(target) {
			totalCorrelated = totalCorrelated.Add(units.Abs())
		}
	}

	if totalCorrelated.GreaterThan(l.MaxCorrelated) {
		return ErrCorrelatedLimitExceeded
	}
	return nil
}
