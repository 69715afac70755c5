// Package source abstracts where historical observations come from: an
// external history provider when one is reachable, or the local store.
package source

import (
	"context"
	"time"

	"github.com/openwaters/crowd-depth/internal/domain"
)

// Source reads observations for a report window. The returned observation
// channel delivers in ascending timestamp order and is unbuffered, so a slow
// consumer pauses production. The error channel carries at most one error,
// sent before the observation channel closes.
type Source interface {
	Read(ctx context.Context, tf domain.Timeframe) (<-chan domain.Observation, <-chan error)
}

// Writer is the optional ingestion sink capability. Sources that cannot
// accept live observations simply do not implement it; callers check with a
// type assertion at wiring time rather than probing at each write.
type Writer interface {
	Write(ctx context.Context, o domain.Observation) error
}

// DateLister is the optional capability to enumerate days with available
// data, used to bound backfill windows.
type DateLister interface {
	AvailableDates(ctx context.Context, tf domain.Timeframe) ([]time.Time, error)
}
