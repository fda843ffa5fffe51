package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/model"
)

// pairState tracks the rolling averages for one pair.
type pairState struct {
	ticks    int
	invested bool
	shortSMA decimal.Decimal
	longSMA  decimal.Decimal
}

// MovingAverageCrossStrategy goes long when the short rolling SMA of
// the bid crosses above the long one and flat when it crosses back
// below. Averages are updated with the standard rolling approximation
// sma = (sma*(w-1) + price) / w, so no tick window is stored.
type MovingAverageCrossStrategy struct {
	pairs       []model.Pair
	eventQ      chan<- event.Event
	units       decimal.Decimal
	shortWindow int
	longWindow  int

	state map[model.Pair]*pairState
}

// NewMovingAverageCrossStrategy creates the crossover strategy with the
// given windows (in ticks) trading a fixed unit size.
func NewMovingAverageCrossStrategy(
	pairs []model.Pair,
	eventQ chan<- event.Event,
	units decimal.Decimal,
	shortWindow, longWindow int,
) *MovingAverageCrossStrategy {
	state := make(map[model.Pair]*pairState, len(pairs))
	for _, p := range pairs {
		state[p] = &pairState{}
	}
	return &MovingAverageCrossStrategy{
		pairs:       pairs,
		eventQ:      eventQ,
		units:       units,
		shortWindow: shortWindow,
		longWindow:  longWindow,
		state:       state,
	}
}

func rollingSMA(prev decimal.Decimal, window int, price decimal.Decimal) decimal.Decimal {
	w := decimal.NewFromInt(int64(window))
	return prev.Mul(w.Sub(decimal.NewFromInt(1))).Add(price).Div(w)
}

func (s *MovingAverageCrossStrategy) CalcSignals(tick event.Tick) {
	st, ok := s.state[tick.Instrument]
	if !ok {
		return
	}
	price := tick.Bid
	if st.ticks == 0 {
		st.shortSMA = price
		st.longSMA = price
	} else {
		st.shortSMA = rollingSMA(st.shortSMA, s.shortWindow, price)
		st.longSMA = rollingSMA(st.longSMA, s.longWindow, price)
	}
	// No signals until the long average has seen a full window.
	if st.ticks >= s.longWindow {
		if st.shortSMA.GreaterThan(st.longSMA) && !st.invested {
			emitSignal(s.eventQ, tick.Instrument, s.units, tick.Timestamp)
			st.invested = true
		}
		if st.shortSMA.LessThan(st.longSMA) && st.invested {
			emitSignal(s.eventQ, tick.Instrument, s.units.Neg(), tick.Timestamp)
			st.invested = false
		}
	}
	st.ticks++
}
