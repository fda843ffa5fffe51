package execution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
)

func TestSimulatedExecution_FillsEveryOrder(t *testing.T) {
	execQ := make(chan event.Order, 4)
	eventQ := make(chan event.Event, 4)
	s := NewSimulatedExecution(execQ, eventQ, 0)

	ts := time.Now()
	execQ <- event.Order{
		Ref: "ord-1", Instrument: "USDJPY", OrderType: event.OrderMarket,
		Units: decimal.NewFromInt(1000), Price: decimal.NewFromFloat(110.05), Timestamp: ts,
	}
	execQ <- event.Order{
		Ref: "ord-2", Instrument: "USDJPY", OrderType: event.OrderMarket,
		Units: decimal.NewFromInt(-500), Price: decimal.NewFromFloat(110.00), Timestamp: ts,
	}
	close(execQ)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	<-done

	if len(eventQ) != 2 {
		t.Fatalf("expected one fill per order, got %d", len(eventQ))
	}
	fill := (<-eventQ).(event.Fill)
	if fill.Ref != "ord-1" || fill.Status != event.StatusFilled {
		t.Errorf("fill mismatch: ref=%s status=%s", fill.Ref, fill.Status)
	}
	if !fill.Price.Equal(decimal.NewFromFloat(110.05)) {
		t.Errorf("simulated fill must use the order price, got %s", fill.Price)
	}
	fill = (<-eventQ).(event.Fill)
	if fill.Ref != "ord-2" || !fill.Units.Equal(decimal.NewFromInt(-500)) {
		t.Errorf("second fill mismatch: ref=%s units=%s", fill.Ref, fill.Units)
	}
}
