package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/event"
	"github.com/fxquant/fx-engine/internal/model"
)

// csvFileRegex matches daily tick files: {PAIR}_{YYYYMMDD}.csv.
var csvFileRegex = regexp.MustCompile(`^[A-Z]{6}_(\d{8})\.csv$`)

// ErrNoData is returned when the data directory holds no tick files for
// the configured pairs.
var ErrNoData = errors.New("feed: no tick data files found")

// timeLayouts are tried in order when parsing tick timestamps.
var timeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// HistoricCSVDataFeeder reads daily CSV tick files for each requested
// pair and streams them chronologically onto the feed queue. Files are
// named {PAIR}_{YYYYMMDD}.csv with columns Time,Ask,Bid,AskVolume,
// BidVolume; within one day, rows from all pairs are merged into a
// single time-ordered stream, replicating how a brokerage would feed a
// live strategy.
type HistoricCSVDataFeeder struct {
	pairs  []model.Pair
	feedQ  chan<- event.Tick
	csvDir string

	dates    []string
	cont     atomic.Bool
	streamed int
}

// NewHistoricCSVDataFeeder scans csvDir for daily files covering pairs.
func NewHistoricCSVDataFeeder(pairs []model.Pair, feedQ chan<- event.Tick, csvDir string) (*HistoricCSVDataFeeder, error) {
	dates, err := listFileDates(csvDir)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, csvDir)
	}
	f := &HistoricCSVDataFeeder{
		pairs:  pairs,
		feedQ:  feedQ,
		csvDir: csvDir,
		dates:  dates,
	}
	f.cont.Store(true)
	return f, nil
}

// ContinueBacktest reports whether unstreamed data remains.
func (f *HistoricCSVDataFeeder) ContinueBacktest() bool { return f.cont.Load() }

// Run streams every tick in chronological order, then closes the feed
// queue. A missing or malformed daily file stops the feed; downstream
// draining still completes because the queue is closed either way.
func (f *HistoricCSVDataFeeder) Run(ctx context.Context) error {
	defer close(f.feedQ)
	defer f.cont.Store(false)

	start := time.Now()
	slog.Info("datafeed started", "dates", len(f.dates), "pairs", len(f.pairs))

	for _, date := range f.dates {
		ticks, err := f.readDay(date)
		if err != nil {
			return err
		}
		for _, tick := range ticks {
			select {
			case f.feedQ <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
			f.streamed++
			if f.streamed%100000 == 0 {
				slog.Info("datafeed progress", "ticks", f.streamed)
			}
		}
	}
	slog.Info("datafeed finished", "ticks", f.streamed, "elapsed", time.Since(start))
	return nil
}

// readDay loads one day's files for every pair and merges them into a
// single time-ordered tick slice.
func (f *HistoricCSVDataFeeder) readDay(date string) ([]event.Tick, error) {
	var ticks []event.Tick
	for _, pair := range f.pairs {
		path := filepath.Join(f.csvDir, fmt.Sprintf("%s_%s.csv", pair, date))
		pairTicks, err := readTickFile(path, pair)
		if err != nil {
			return nil, fmt.Errorf("feed: reading %s: %w", path, err)
		}
		ticks = append(ticks, pairTicks...)
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})
	return ticks, nil
}

func readTickFile(path string, pair model.Pair) ([]event.Tick, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	// Skip header.
	if _, err := r.Read(); err != nil {
		return nil, err
	}

	var ticks []event.Tick
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("feed: short record %v", record)
		}
		ts, err := parseTime(record[0])
		if err != nil {
			return nil, err
		}
		ask, err := parsePrice(record[1])
		if err != nil {
			return nil, err
		}
		bid, err := parsePrice(record[2])
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, event.Tick{
			Instrument: pair,
			Timestamp:  ts,
			Bid:        bid,
			Ask:        ask,
		})
	}
	return ticks, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("feed: unparseable timestamp %q", s)
}

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("feed: bad price %q: %w", s, err)
	}
	return model.RoundPrice(d), nil
}

// listFileDates collects the distinct YYYYMMDD dates present in dir,
// sorted ascending.
func listFileDates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if m := csvFileRegex.FindStringSubmatch(e.Name()); m != nil {
			seen[m[1]] = true
		}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}
