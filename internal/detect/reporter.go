package detect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DetectionEvent is the externally reported unit: a burst that survived the
// minimum-duration and debounce filters. Immutable, append-only.
type DetectionEvent struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Peak     float64
}

// Sink receives accepted detection events, e.g. for persistence. A sink
// failure does not retract the event; the log line is the contract.
type Sink interface {
	StoreDetection(ctx context.Context, e DetectionEvent) error
}

// WithReporterLogger sets the logger detection lines are written to.
func WithReporterLogger(logger *slog.Logger) func(r *Reporter) {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// WithSink attaches a sink for accepted events.
func WithSink(sink Sink) func(r *Reporter) {
	return func(r *Reporter) {
		r.sink = sink
	}
}

// Reporter filters closed bursts into detection events. Bursts shorter than
// the minimum duration are rejected as impulsive noise; bursts starting
// within the debounce window of the previous accepted event's end are
// collapsed into it (repeated or bouncing presses report once).
type Reporter struct {
	minDuration time.Duration
	debounce    time.Duration

	logger *slog.Logger
	sink   Sink

	hasAccepted bool
	lastEnd     time.Time
	accepted    uint64
}

func NewReporter(minDuration, debounce time.Duration, options ...func(r *Reporter)) (*Reporter, error) {
	if minDuration < 0 || debounce < 0 {
		return nil, fmt.Errorf("invalid reporter parameters: minDuration=%s, debounce=%s",
			minDuration, debounce)
	}

	r := Reporter{
		minDuration: minDuration,
		debounce:    debounce,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&r)
	}

	return &r, nil
}

// Report is called once per closed burst. It returns the detection event if
// the burst was accepted, or nil if it was filtered out. A non-nil error
// means the sink failed; the event was still reported and counted.
func (r *Reporter) Report(ctx context.Context, b Burst) (*DetectionEvent, error) {
	if b.Duration() < r.minDuration {
		r.logger.Debug("burst discarded: below minimum duration",
			slog.Duration("duration", b.Duration()),
			slog.Duration("minDuration", r.minDuration))
		return nil, nil
	}

	if r.hasAccepted && b.Start.Sub(r.lastEnd) < r.debounce {
		r.logger.Debug("burst discarded: within debounce window",
			slog.Duration("gap", b.Start.Sub(r.lastEnd)),
			slog.Duration("debounce", r.debounce))
		return nil, nil
	}

	e := DetectionEvent{
		Start:    b.Start,
		End:      b.End,
		Duration: b.Duration(),
		Peak:     b.Peak,
	}

	r.accepted++
	r.hasAccepted = true
	r.lastEnd = b.End

	r.logger.Info("fob press detected",
		slog.Time("timestamp", e.Start),
		slog.Duration("duration", e.Duration),
		slog.Float64("peakPower", e.Peak),
		slog.Uint64("count", r.accepted))

	if r.sink != nil {
		if err := r.sink.StoreDetection(ctx, e); err != nil {
			return &e, fmt.Errorf("storing detection: %w", err)
		}
	}

	return &e, nil
}

// Accepted returns the number of detection events reported so far.
func (r *Reporter) Accepted() uint64 {
	return r.accepted
}
