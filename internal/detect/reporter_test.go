package detect

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureSink struct {
	events []DetectionEvent
	err    error
}

func (s *captureSink) StoreDetection(_ context.Context, e DetectionEvent) error {
	s.events = append(s.events, e)
	return s.err
}

func burstAt(start time.Time, duration time.Duration, peak float64) Burst {
	return Burst{Start: start, End: start.Add(duration), Peak: peak}
}

func TestReporterMinDuration(t *testing.T) {
	r, err := NewReporter(20*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("NewReporter() error: %s", err)
	}

	base := time.Unix(0, 0)

	e, err := r.Report(context.Background(), burstAt(base, 10*time.Millisecond, 5))
	if err != nil {
		t.Fatalf("Report() error: %s", err)
	}
	if e != nil {
		t.Errorf("10ms burst accepted with 20ms minimum")
	}

	e, err = r.Report(context.Background(), burstAt(base.Add(time.Second), 25*time.Millisecond, 5))
	if err != nil {
		t.Fatalf("Report() error: %s", err)
	}
	if e == nil {
		t.Error("25ms burst rejected with 20ms minimum")
	}
	if r.Accepted() != 1 {
		t.Errorf("Accepted() = %d, want 1", r.Accepted())
	}
}

func TestReporterDebounce(t *testing.T) {
	r, err := NewReporter(0, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("NewReporter() error: %s", err)
	}

	ctx := context.Background()
	base := time.Unix(0, 0)

	first := burstAt(base, 50*time.Millisecond, 5)
	if e, _ := r.Report(ctx, first); e == nil {
		t.Fatal("first burst rejected")
	}

	// Starts 150ms after the first burst ended: inside the debounce window.
	bounce := burstAt(first.End.Add(150*time.Millisecond), 50*time.Millisecond, 5)
	if e, _ := r.Report(ctx, bounce); e != nil {
		t.Error("burst inside debounce window was accepted")
	}

	// The debounce window is anchored to the last accepted event, not the
	// discarded one: 250ms after the first burst's end clears it.
	late := burstAt(first.End.Add(250*time.Millisecond), 50*time.Millisecond, 5)
	if e, _ := r.Report(ctx, late); e == nil {
		t.Error("burst past debounce window was rejected")
	}

	if r.Accepted() != 2 {
		t.Errorf("Accepted() = %d, want 2", r.Accepted())
	}
}

func TestReporterFirstBurstNotDebounced(t *testing.T) {
	r, err := NewReporter(0, time.Hour)
	if err != nil {
		t.Fatalf("NewReporter() error: %s", err)
	}

	// The zero time is well within an hour of Unix(0,0); the debounce must
	// not apply before anything has been accepted.
	if e, _ := r.Report(context.Background(), burstAt(time.Unix(0, 0), time.Millisecond, 1)); e == nil {
		t.Error("first burst rejected by debounce")
	}
}

func TestReporterSink(t *testing.T) {
	sink := &captureSink{}
	r, err := NewReporter(0, 0, WithSink(sink))
	if err != nil {
		t.Fatalf("NewReporter() error: %s", err)
	}

	b := burstAt(time.Unix(0, 0), 40*time.Millisecond, 7.5)
	e, err := r.Report(context.Background(), b)
	if err != nil {
		t.Fatalf("Report() error: %s", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("sink received %d events, want 1", len(sink.events))
	}
	got := sink.events[0]
	if !got.Start.Equal(b.Start) || !got.End.Equal(b.End) || got.Peak != 7.5 ||
		got.Duration != 40*time.Millisecond {
		t.Errorf("sink event = %+v, does not match burst %+v", got, b)
	}
	if *e != got {
		t.Errorf("returned event %+v differs from sink event %+v", *e, got)
	}
}

func TestReporterSinkFailureStillReports(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	r, err := NewReporter(0, 0, WithSink(sink))
	if err != nil {
		t.Fatalf("NewReporter() error: %s", err)
	}

	e, err := r.Report(context.Background(), burstAt(time.Unix(0, 0), 40*time.Millisecond, 5))
	if err == nil {
		t.Fatal("expected sink error to propagate")
	}
	if e == nil {
		t.Error("sink failure retracted the event")
	}
	if r.Accepted() != 1 {
		t.Errorf("Accepted() = %d, want 1 despite sink failure", r.Accepted())
	}
}
