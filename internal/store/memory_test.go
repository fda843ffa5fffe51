package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/result"
)

// d is a test helper for creating decimals from strings.
func d(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return dec
}

func TestMemoryStore_EquityCurve(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	ts := time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := st.InsertEquityPoint(ctx, "run-1", result.EquityResult{
			Time:   ts.Add(time.Duration(i) * time.Second),
			Equity: d("1000000"), Balance: d("1000000"),
			UPL: map[string]decimal.Decimal{result.TotalKey: d("0")},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	curve, err := st.EquityCurve(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(curve) != 3 {
		t.Fatalf("expected 3 points, got %d", len(curve))
	}
	if !curve[0].Time.Equal(ts) {
		t.Errorf("points should keep insertion order, got first %s", curve[0].Time)
	}

	other, err := st.EquityCurve(ctx, "run-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unknown run should have no points, got %d", len(other))
	}
}

func TestMemoryStore_CopiesUPLMap(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	upl := map[string]decimal.Decimal{result.TotalKey: d("0")}
	st.InsertEquityPoint(ctx, "run-1", result.EquityResult{
		Time: time.Now(), Equity: d("1000000"), Balance: d("1000000"), UPL: upl,
	})
	upl[result.TotalKey] = d("999")

	curve, _ := st.EquityCurve(ctx, "run-1")
	if !curve[0].UPL[result.TotalKey].Equal(d("0")) {
		t.Errorf("stored point must not alias the caller's map, got %s",
			curve[0].UPL[result.TotalKey])
	}
}

func TestMemoryStore_Executions(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	ts := time.Now()

	err := st.InsertExecution(ctx, "run-1", result.ExecutionResult{
		Time: ts, Pair: "USDJPY", Units: d("1000"), Price: d("110.05"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	execs, err := st.Executions(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(execs) != 1 || !execs[0].Units.Equal(d("1000")) {
		t.Fatalf("execution not stored: %#v", execs)
	}
}

func TestResultSink_PersistsUnderRunID(t *testing.T) {
	st := NewMemoryStore()
	sink := NewResultSink(st, "run-1")

	err := sink.WriteEquity(result.EquityResult{
		Time: time.Now(), Equity: d("1000000"), Balance: d("1000000"),
		UPL: map[string]decimal.Decimal{result.TotalKey: d("0")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = sink.WriteExecution(result.ExecutionResult{
		Time: time.Now(), Pair: "USDJPY", Units: d("1000"), Price: d("110.05"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	curve, _ := st.EquityCurve(context.Background(), "run-1")
	execs, _ := st.Executions(context.Background(), "run-1")
	if len(curve) != 1 || len(execs) != 1 {
		t.Errorf("expected one point and one execution, got %d and %d",
			len(curve), len(execs))
	}
}
