// Package feed streams Tick events onto the engine's feed queue, either
// from historic CSV files or from a live WebSocket price stream. A
// feeder owns the feed queue's write side and closes it on exhaustion;
// that close is the end-of-stream sentinel downstream.
package feed

import (
	"context"
)

// DataFeeder is the capability contract for tick sources. Run blocks
// until the source is exhausted or ctx is canceled, and must close the
// feed queue exactly once before returning. ContinueBacktest reports
// whether the source still has data.
type DataFeeder interface {
	Run(ctx context.Context) error
	ContinueBacktest() bool
}
