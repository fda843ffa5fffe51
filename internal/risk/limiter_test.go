package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/model"
)

// d is a test helper for creating decimals from int64.
func d(i int64) decimal.Decimal {
	return decimal.NewFromInt(i)
}

// --- Per-pair limit tests ---

func TestCheckLimit_WithinPerPair(t *testing.T) {
	l := NewLimiter(d(1000), d(0))
	err := l.CheckLimit("USDJPY", d(500), map[model.Pair]decimal.Decimal{"USDJPY": d(400)})
	if err != nil {
		t.Errorf("trade within limit should pass, got %v", err)
	}
}

func TestCheckLimit_ExceedsPerPair(t *testing.T) {
	l := NewLimiter(d(1000), d(0))
	err := l.CheckLimit("USDJPY", d(700), map[model.Pair]decimal.Decimal{"USDJPY": d(400)})
	if err != ErrPerPairLimitExceeded {
		t.Errorf("expected ErrPerPairLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_ShortExposureCountsAbsolute(t *testing.T) {
	l := NewLimiter(d(1000), d(0))
	err := l.CheckLimit("USDJPY", d(-700), map[model.Pair]decimal.Decimal{"USDJPY": d(-400)})
	if err != ErrPerPairLimitExceeded {
		t.Errorf("expected ErrPerPairLimitExceeded for short side, got %v", err)
	}
}

func TestCheckLimit_ReducingTradePasses(t *testing.T) {
	l := NewLimiter(d(1000), d(0))
	err := l.CheckLimit("USDJPY", d(-500), map[model.Pair]decimal.Decimal{"USDJPY": d(900)})
	if err != nil {
		t.Errorf("risk-reducing trade should pass, got %v", err)
	}
}

func TestCheckLimit_ZeroLimitDisabled(t *testing.T) {
	l := NewLimiter(d(0), d(0))
	err := l.CheckLimit("USDJPY", d(1_000_000), map[model.Pair]decimal.Decimal{})
	if err != nil {
		t.Errorf("zero limits should disable checks, got %v", err)
	}
}

// --- Correlated limit tests ---

func TestCheckLimit_CorrelatedAggregates(t *testing.T) {
	l := NewLimiter(d(0), d(1000))
	exposures := map[model.Pair]decimal.Decimal{
		"EURUSD": d(400),
		"GBPUSD": d(400),
		"EURGBP": d(400),
	}
	// EURUSD, GBPUSD and AUDUSD all share the USD leg: 400+400+400 > 1000.
	err := l.CheckLimit("AUDUSD", d(400), exposures)
	if err != ErrCorrelatedLimitExceeded {
		t.Errorf("expected ErrCorrelatedLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_UncorrelatedIgnored(t *testing.T) {
	l := NewLimiter(d(0), d(1000))
	exposures := map[model.Pair]decimal.Decimal{
		"EURGBP": d(900),
	}
	// USDJPY shares no leg with EURGBP.
	err := l.CheckLimit("USDJPY", d(900), exposures)
	if err != nil {
		t.Errorf("uncorrelated exposure should not count, got %v", err)
	}
}

func TestCheckLimit_OppositeSignsStillAggregate(t *testing.T) {
	l := NewLimiter(d(0), d(1000))
	exposures := map[model.Pair]decimal.Decimal{
		"EURUSD": d(-600),
	}
	// Shorting one USD pair does not hedge going long another for the
	// purposes of the aggregate: both count in absolute terms.
	err := l.CheckLimit("GBPUSD", d(600), exposures)
	if err != ErrCorrelatedLimitExceeded {
		t.Errorf("expected ErrCorrelatedLimitExceeded, got %v", err)
	}
}
