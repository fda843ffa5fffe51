package result

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxquant/fx-engine/internal/model"
)

// timestampLayout is used for all CSV timestamps.
const timestampLayout = "2006-01-02 15:04:05.000"

// FileResultHandler writes the equity curve and execution ledger as CSV
// files in the output directory: Equity.csv with one UPL column per
// configured pair, and Execution.csv.
type FileResultHandler struct {
	pairs     []model.Pair
	equity    *os.File
	execution *os.File
}

// NewFileResultHandler creates Equity.csv and Execution.csv in
// outputDir and writes their headers.
func NewFileResultHandler(pairs []model.Pair, outputDir string) (*FileResultHandler, error) {
	equity, err := os.Create(filepath.Join(outputDir, "Equity.csv"))
	if err != nil {
		return nil, err
	}

	var header strings.Builder
	header.WriteString("Timestamp,Equity,Balance,UPL[Total]")
	for _, pair := range pairs {
		fmt.Fprintf(&header, ",UPL[%s]", pair)
	}
	header.WriteString("\n")
	if _, err := equity.WriteString(header.String()); err != nil {
		equity.Close()
		return nil, err
	}

	execution, err := os.Create(filepath.Join(outputDir, "Execution.csv"))
	if err != nil {
		equity.Close()
		return nil, err
	}
	if _, err := execution.WriteString("Timestamp,Pair,Units,Price\n"); err != nil {
		equity.Close()
		execution.Close()
		return nil, err
	}

	slog.Info("created result files", "dir", outputDir)
	return &FileResultHandler{pairs: pairs, equity: equity, execution: execution}, nil
}

func (h *FileResultHandler) WriteEquity(r EquityResult) error {
	var line strings.Builder
	fmt.Fprintf(&line, "%s,%s,%s,%s",
		r.Time.Format(timestampLayout), r.Equity, r.Balance, r.UPL[TotalKey])
	for _, pair := range h.pairs {
		fmt.Fprintf(&line, ",%s", r.UPL[string(pair)])
	}
	line.WriteString("\n")
	_, err := h.equity.WriteString(line.String())
	return err
}

func (h *FileResultHandler) WriteExecution(r ExecutionResult) error {
	_, err := fmt.Fprintf(h.execution, "%s,%s,%s,%s\n",
		r.Time.Format(timestampLayout), r.Pair, r.Units, r.Price)
	return err
}

// Close flushes and closes both files.
func (h *FileResultHandler) Close() error {
	if err := h.equity.Close(); err != nil {
		h.execution.Close()
		return err
	}
	return h.execution.Close()
}
