// Package reporter packages unreported observation windows into GeoJSON
// submissions and tracks the report watermark.
package reporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openwaters/crowd-depth/internal/domain"
	"github.com/openwaters/crowd-depth/internal/observability"
	"github.com/openwaters/crowd-depth/internal/source"
	"github.com/openwaters/crowd-depth/internal/submit"
)

// Submitter posts one GeoJSON stream to the archive.
// *submit.Client implements it.
type Submitter interface {
	Submit(ctx context.Context, metadata any, filename string, file io.Reader) (*submit.Response, error)
}

// ReportLog is the slice of the storage contract the reporter needs to
// persist and read the watermark.
type ReportLog interface {
	LastReportTime(ctx context.Context) (time.Time, bool, error)
	AppendReport(ctx context.Context, tf domain.Timeframe) error
}

// Config holds reporter behavior knobs.
type Config struct {
	// Start bounds the first window when no report has ever been logged.
	Start time.Time
	// CoordDecimals and DepthDecimals set the quantization stage.
	CoordDecimals int
	DepthDecimals int
}

// Reporter runs the incremental submission cycle:
// read watermark → compute window → pull observations → transform →
// submit → commit watermark.
type Reporter struct {
	log       ReportLog
	src       source.Source
	submitter Submitter
	vessel    domain.VesselIdentity
	sensors   domain.SensorConfig
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics

	// mu serializes RunOnce: report windows must commit in increasing
	// toTimestamp order, so at most one run may be in flight.
	mu sync.Mutex
}

// New creates a Reporter.
func New(log ReportLog, src source.Source, submitter Submitter, vessel domain.VesselIdentity, sensors domain.SensorConfig, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Reporter {
	return &Reporter{
		log:       log,
		src:       src,
		submitter: submitter,
		vessel:    vessel,
		sensors:   sensors,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// RunOnce submits the window from the last watermark to now exactly once.
// The ReportRecord commit is the only side effect that advances the
// watermark and happens strictly after submission success, so a crash or
// failure anywhere earlier leaves the window to be retried in full. Windows
// with no observations are skipped without contacting the archive.
func (r *Reporter) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	tf, err := r.nextWindow(ctx)
	if err != nil {
		return err
	}
	if !tf.To.After(tf.From) {
		r.logger.Debug("nothing to report", "from", tf.From, "to", tf.To)
		return nil
	}

	// A per-run context tears down the streaming goroutines when the
	// submission aborts partway.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	obs, errs := r.src.Read(runCtx, tf)

	// Peek one observation so an empty window never produces a submission.
	first, ok := <-obs
	if !ok {
		if err, open := <-errs; open && err != nil {
			r.metrics.ReportFailures.Inc()
			return fmt.Errorf("read window: %w", err)
		}
		r.logger.Info("no observations in window, skipping", "from", tf.From, "to", tf.To)
		r.metrics.ReportEmptyWindows.Inc()
		return nil
	}

	var count atomic.Int64
	merged := make(chan domain.Observation)
	go func() {
		defer close(merged)
		o, pending := first, true
		for {
			if !pending {
				var ok bool
				o, ok = <-obs
				if !ok {
					return
				}
			}
			pending = false
			select {
			case merged <- o:
				count.Add(1)
			case <-runCtx.Done():
				return
			}
		}
	}()

	stage := domain.Chain(
		domain.CorrectForSensorPosition(r.sensors.Offset()),
		domain.ToPrecision(r.cfg.CoordDecimals, r.cfg.DepthDecimals),
	)
	meta := domain.Metadata(r.vessel, r.sensors)
	body := domain.NewGeoJSONReader(meta, stage, merged, errs)
	defer body.Close()

	resp, err := r.submitter.Submit(ctx, meta, r.vessel.UUID+".geojson", body)
	if err != nil {
		r.metrics.ReportFailures.Inc()
		return fmt.Errorf("submit window [%s, %s): %w", tf.From, tf.To, err)
	}
	if !resp.Success {
		r.metrics.ReportFailures.Inc()
		return fmt.Errorf("archive rejected submission: %s", resp.Message)
	}

	if err := r.log.AppendReport(ctx, tf); err != nil {
		// The archive has the data but the watermark did not advance; the
		// next run re-submits the same window, which the archive must
		// de-duplicate.
		r.metrics.ReportFailures.Inc()
		return fmt.Errorf("commit report window: %w", err)
	}

	r.metrics.ReportsSubmitted.Inc()
	r.metrics.ObservationsSubmitted.Add(float64(count.Load()))
	r.metrics.ReportDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("report submitted",
		"from", tf.From,
		"to", tf.To,
		"observations", count.Load(),
		"submission_ids", resp.SubmissionIDs,
	)
	return nil
}

// nextWindow computes [watermark, now). With no watermark the configured
// start bounds the window; a zero start means everything ever recorded.
func (r *Reporter) nextWindow(ctx context.Context) (domain.Timeframe, error) {
	from, ok, err := r.log.LastReportTime(ctx)
	if err != nil {
		return domain.Timeframe{}, fmt.Errorf("read watermark: %w", err)
	}
	if !ok {
		from = r.cfg.Start
	}
	return domain.Timeframe{From: from, To: domain.Now()}, nil
}

// Run invokes RunOnce on a fixed interval until ctx is cancelled. Failures
// are logged and retried on the next tick; restart and backoff beyond that
// belong to the supervisor.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("reporter started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reporter stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("report run failed", "error", err)
			}
		}
	}
}
