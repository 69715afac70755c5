// Package collector runs the live ingestion loop: it pulls observations
// from a producer, quantizes them, and writes them to the local source.
package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openwaters/crowd-depth/internal/domain"
	"github.com/openwaters/crowd-depth/internal/observability"
	"github.com/openwaters/crowd-depth/internal/source"
)

// Producer is the abstract live-sensor stream. Next blocks until an
// observation is available, the stream ends (io.EOF), or ctx is cancelled.
type Producer interface {
	Next(ctx context.Context) (domain.Observation, error)
}

// Collector orchestrates the pull-quantize-store loop.
type Collector struct {
	producer Producer
	writer   source.Writer
	stage    domain.Stage
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Collector. The stage runs on every observation before it is
// stored; pass the precision stage so stored data is already quantized.
func New(p Producer, w source.Writer, stage domain.Stage, logger *slog.Logger, metrics *observability.Metrics) *Collector {
	return &Collector{
		producer: p,
		writer:   w,
		stage:    stage,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one observation has been stored.
func (c *Collector) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("collector has not stored any observations yet")
	}
	return nil
}

// Run executes the ingestion loop until the context is cancelled or the
// producer reports end of stream.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("collector started")
	c.metrics.CollectorRunning.Set(1)
	defer c.metrics.CollectorRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopping", "reason", ctx.Err())
			return nil
		default:
		}

		o, err := c.producer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("collector stopping", "reason", ctx.Err())
				return nil
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("producer stream ended")
				return nil
			}
			c.logger.Error("read observation failed", "error", err)
			c.metrics.IngestErrors.Inc()
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if c.stage != nil {
			o = c.stage(o)
		}

		if err := c.writer.Write(ctx, o); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("store observation failed, dropping sample", "error", err, "timestamp", o.Timestamp)
			c.metrics.IngestErrors.Inc()
			continue
		}

		c.metrics.ObservationsStored.Inc()
		c.ready.Store(true)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
