package result

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/model"
)

// d is a test helper for creating decimals from strings.
func d(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return dec
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// --- File sink tests ---

func TestFileResultHandler_EquityCSV(t *testing.T) {
	dir := t.TempDir()
	h, err := NewFileResultHandler([]model.Pair{"USDJPY", "EURUSD"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Date(2016, 1, 4, 0, 0, 0, 868_000_000, time.UTC)
	err = h.WriteEquity(EquityResult{
		Time:    ts,
		Equity:  d("1000950"),
		Balance: d("1000000"),
		UPL: map[string]decimal.Decimal{
			TotalKey: d("950"),
			"USDJPY": d("950"),
			"EURUSD": d("0"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "Equity.csv"))
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	wantHeader := "Timestamp,Equity,Balance,UPL[Total],UPL[USDJPY],UPL[EURUSD]"
	if lines[0] != wantHeader {
		t.Errorf("header mismatch:\n got %s\nwant %s", lines[0], wantHeader)
	}
	wantRow := "2016-01-04 00:00:00.868,1000950,1000000,950,950,0"
	if lines[1] != wantRow {
		t.Errorf("row mismatch:\n got %s\nwant %s", lines[1], wantRow)
	}
}

func TestFileResultHandler_ExecutionCSV(t *testing.T) {
	dir := t.TempDir()
	h, err := NewFileResultHandler([]model.Pair{"USDJPY"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Date(2016, 1, 4, 0, 0, 1, 0, time.UTC)
	err = h.WriteExecution(ExecutionResult{
		Time: ts, Pair: "USDJPY", Units: d("1000"), Price: d("110.05"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "Execution.csv"))
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if lines[0] != "Timestamp,Pair,Units,Price" {
		t.Errorf("header mismatch: %s", lines[0])
	}
	if lines[1] != "2016-01-04 00:00:01.000,USDJPY,1000,110.05" {
		t.Errorf("row mismatch: %s", lines[1])
	}
}

func TestNewFileResultHandler_MissingDir(t *testing.T) {
	if _, err := NewFileResultHandler([]model.Pair{"USDJPY"}, "/no/such/dir"); err == nil {
		t.Fatal("expected error for missing output directory")
	}
}

// --- Worker tests ---

func TestWorker_DrainsAndClosesSinks(t *testing.T) {
	dir := t.TempDir()
	h, err := NewFileResultHandler([]model.Pair{"USDJPY"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queue := make(chan Result, 4)
	w := NewWorker(queue, h)

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	ts := time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC)
	queue <- EquityResult{Time: ts, Equity: d("1000000"), Balance: d("1000000"),
		UPL: map[string]decimal.Decimal{TotalKey: d("0"), "USDJPY": d("0")}}
	queue <- ExecutionResult{Time: ts, Pair: "USDJPY", Units: d("1000"), Price: d("110.05")}
	close(queue)
	<-done

	if got := readLines(t, filepath.Join(dir, "Equity.csv")); len(got) != 2 {
		t.Errorf("expected 2 equity lines, got %d", len(got))
	}
	if got := readLines(t, filepath.Join(dir, "Execution.csv")); len(got) != 2 {
		t.Errorf("expected 2 execution lines, got %d", len(got))
	}
}
