package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/rf-lab/fobwatch/internal/detect"
	"github.com/rf-lab/fobwatch/internal/sdr"
	"github.com/rf-lab/fobwatch/internal/storage"
)

// TraceSink receives downsampled per-block power summaries.
type TraceSink interface {
	InsertTracePoints(ctx context.Context, sessionID string, points []storage.TracePoint) error
}

// WithControllerLogger sets the logger for the controller.
func WithControllerLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithPowerTrace enables batched power trace persistence.
func WithPowerTrace(sink TraceSink, sessionID string, batchSize int) func(c *Controller) {
	return func(c *Controller) {
		c.trace = sink
		c.sessionID = sessionID
		c.batchSize = batchSize
	}
}

// Controller owns the acquisition loop: read a block, estimate power, feed
// the detector, forward closed bursts to the reporter, until the context is
// cancelled or acquisition fails. The pipeline is strictly single-threaded;
// blocks are processed in arrival order and the blocking Read is the sole
// cancellation point.
type Controller struct {
	source    sdr.Source
	estimator *detect.Estimator
	detector  *detect.Detector
	reporter  *detect.Reporter
	logger    *slog.Logger

	trace     TraceSink
	sessionID string
	batchSize int
	pending   []storage.TracePoint

	armed  bool
	blocks uint64
	bursts uint64
}

func NewController(source sdr.Source, estimator *detect.Estimator, detector *detect.Detector,
	reporter *detect.Reporter, options ...func(c *Controller)) *Controller {

	c := Controller{
		source:    source,
		estimator: estimator,
		detector:  detector,
		reporter:  reporter,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Run drives the pipeline until ctx is cancelled (graceful, returns nil) or
// acquisition fails (fatal, returns the error). The sample source is
// released on every exit path.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.source.Open(ctx); err != nil {
		return fmt.Errorf("opening sample source: %w", err)
	}
	defer func() {
		if err := c.source.Close(); err != nil {
			c.logger.Error(fmt.Sprintf("closing sample source: %s", err))
		}
	}()
	defer c.flushTrace()

	c.armed = c.detector.Armed()
	if !c.armed {
		c.logger.Info("calibrating noise floor")
	}

	for {
		// Stop requests are honored before issuing another read, so a
		// cancelled run never touches the device again.
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		block, err := c.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("reading sample block: %w", err)
		}
		c.blocks++

		powers := c.estimator.Estimate(block)
		c.recordTrace(ctx, block.Timestamp, powers)

		if !c.armed && c.detector.Armed() {
			c.armed = true
			c.logger.Info("calibration complete",
				slog.Float64("threshold", c.detector.Threshold()))
		}

		for _, p := range powers {
			for _, ev := range c.detector.Advance(p) {
				switch ev.Kind {
				case detect.BurstStart:
					c.bursts++
					c.logger.Debug("burst start",
						slog.Time("timestamp", ev.Time),
						slog.Float64("power", ev.Power))

				case detect.BurstEnd:
					c.logger.Debug("burst end",
						slog.Time("timestamp", ev.Time),
						slog.Duration("duration", ev.Burst.Duration()),
						slog.Float64("peakPower", ev.Burst.Peak))

					// Storage failures do not stop detection; the log
					// line is the contract.
					if _, err := c.reporter.Report(ctx, ev.Burst); err != nil {
						c.logger.Error(err.Error())
					}
				}
			}
		}
	}
}

// Blocks returns the number of sample blocks processed.
func (c *Controller) Blocks() uint64 {
	return c.blocks
}

// Bursts returns the number of threshold crossings seen, accepted or not.
func (c *Controller) Bursts() uint64 {
	return c.bursts
}

// recordTrace folds one block's power samples into a trace point and flushes
// the batch when full. Trace failures are logged, never fatal.
func (c *Controller) recordTrace(ctx context.Context, ts time.Time, powers []detect.PowerSample) {
	if c.trace == nil || len(powers) == 0 {
		return
	}

	mean, peak := powers[0].Power, powers[0].Power
	for _, p := range powers[1:] {
		mean += p.Power
		peak = math.Max(peak, p.Power)
	}
	mean /= float64(len(powers))

	c.pending = append(c.pending, storage.TracePoint{Timestamp: ts, Mean: mean, Peak: peak})
	if len(c.pending) < c.batchSize {
		return
	}

	if err := c.trace.InsertTracePoints(ctx, c.sessionID, c.pending); err != nil {
		c.logger.Error(err.Error())
	}
	c.pending = c.pending[:0]
}

// flushTrace writes out any buffered trace points on shutdown.
func (c *Controller) flushTrace() {
	if c.trace == nil || len(c.pending) == 0 {
		return
	}

	if err := c.trace.InsertTracePoints(context.Background(), c.sessionID, c.pending); err != nil {
		c.logger.Error(err.Error())
	}
	c.pending = nil
}
