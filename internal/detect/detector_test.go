package detect

import (
	"math"
	"testing"
	"time"
)

// recordingPolicy is a scriptable threshold policy that records every value
// fed back to it.
type recordingPolicy struct {
	armed     bool
	threshold float64
	observed  []float64
}

func (p *recordingPolicy) Armed() bool           { return p.armed }
func (p *recordingPolicy) Threshold() float64    { return p.threshold }
func (p *recordingPolicy) Observe(power float64) { p.observed = append(p.observed, power) }

// feed advances the detector over a power sequence sampled every step,
// starting at base, and collects all emitted events.
func feed(t *testing.T, d *Detector, base time.Time, step time.Duration, powers []float64) []Event {
	t.Helper()

	var events []Event
	for i, p := range powers {
		s := PowerSample{Timestamp: base.Add(time.Duration(i) * step), Power: p}
		events = append(events, d.Advance(s)...)
	}
	return events
}

func TestDetectorStaysIdleBelowThreshold(t *testing.T) {
	d, err := NewDetector(FixedThreshold(1.0), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewDetector() error: %s", err)
	}

	events := feed(t, d, time.Unix(0, 0), 5*time.Millisecond,
		[]float64{0.1, 0.5, 0.9, 1.0, 0.2}) // 1.0 is not strictly above

	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
	if d.State() != Idle {
		t.Errorf("expected Idle state, got %s", d.State())
	}
}

func TestDetectorBurstLifecycle(t *testing.T) {
	d, err := NewDetector(FixedThreshold(1.0), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewDetector() error: %s", err)
	}

	base := time.Unix(0, 0)
	step := 5 * time.Millisecond

	// Rise at 5ms, dip begins at 20ms, hold-off expires at 50ms.
	events := feed(t, d, base, step,
		[]float64{0.5, 2, 6, 4, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5})

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	start := events[0]
	if start.Kind != BurstStart {
		t.Fatalf("expected BurstStart, got %v", start.Kind)
	}
	if want := base.Add(step); !start.Time.Equal(want) {
		t.Errorf("BurstStart time = %s, want %s", start.Time, want)
	}

	end := events[1]
	if end.Kind != BurstEnd {
		t.Fatalf("expected BurstEnd, got %v", end.Kind)
	}
	if want := base.Add(4 * step); !end.Burst.End.Equal(want) {
		t.Errorf("burst end = %s, want dip start %s", end.Burst.End, want)
	}
	if end.Burst.Peak != 6 {
		t.Errorf("burst peak = %g, want 6", end.Burst.Peak)
	}
	if want := 15 * time.Millisecond; end.Burst.Duration() != want {
		t.Errorf("burst duration = %s, want %s", end.Burst.Duration(), want)
	}
	if d.State() != Idle {
		t.Errorf("expected Idle after burst, got %s", d.State())
	}
}

func TestDetectorBridgesShortDip(t *testing.T) {
	d, err := NewDetector(FixedThreshold(1.0), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewDetector() error: %s", err)
	}

	base := time.Unix(0, 0)
	step := 5 * time.Millisecond

	// A 10ms dip inside the burst is shorter than the 30ms hold-off: the
	// detector must bridge it and report a single burst with the later peak.
	events := feed(t, d, base, step,
		[]float64{0.5, 2, 3, 0.5, 0.5, 4, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5})

	var starts, ends int
	var last Event
	for _, e := range events {
		switch e.Kind {
		case BurstStart:
			starts++
		case BurstEnd:
			ends++
			last = e
		}
	}

	if starts != 1 || ends != 1 {
		t.Fatalf("expected 1 start and 1 end, got %d starts, %d ends", starts, ends)
	}
	if last.Burst.Peak != 4 {
		t.Errorf("burst peak = %g, want 4 (from the re-crossing)", last.Burst.Peak)
	}
	if want := base.Add(6 * step); !last.Burst.End.Equal(want) {
		t.Errorf("burst end = %s, want final dip start %s", last.Burst.End, want)
	}
}

func TestDetectorNonFinitePowerFailsafe(t *testing.T) {
	policy := &recordingPolicy{armed: true, threshold: 1.0}
	d, err := NewDetector(policy, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewDetector() error: %s", err)
	}

	base := time.Unix(0, 0)

	// NaN while idle must not trigger and must not reach the policy.
	if events := d.Advance(PowerSample{Timestamp: base, Power: math.NaN()}); len(events) != 0 {
		t.Fatalf("NaN triggered %d events", len(events))
	}
	if len(policy.observed) != 0 {
		t.Fatalf("NaN was propagated to the policy: %v", policy.observed)
	}

	// +Inf during a burst is treated as below threshold and starts a dip.
	d.Advance(PowerSample{Timestamp: base.Add(5 * time.Millisecond), Power: 2})
	d.Advance(PowerSample{Timestamp: base.Add(10 * time.Millisecond), Power: math.Inf(1)})
	if d.State() != HoldOff {
		t.Errorf("expected HoldOff after non-finite sample in burst, got %s", d.State())
	}
}

func TestDetectorUnarmedPolicyNeverTriggers(t *testing.T) {
	policy := &recordingPolicy{armed: false, threshold: 0}
	d, err := NewDetector(policy, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewDetector() error: %s", err)
	}

	events := feed(t, d, time.Unix(0, 0), 5*time.Millisecond, []float64{100, 200, 300})

	if len(events) != 0 {
		t.Fatalf("unarmed policy produced %d events", len(events))
	}
	if len(policy.observed) != 3 {
		t.Errorf("expected 3 calibration observations, got %d", len(policy.observed))
	}
}

func TestDetectorObservesOnlyWhileIdle(t *testing.T) {
	policy := &recordingPolicy{armed: true, threshold: 1.0}
	d, err := NewDetector(policy, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewDetector() error: %s", err)
	}

	// idle noise, burst, dip through expiry, idle noise again
	feed(t, d, time.Unix(0, 0), 5*time.Millisecond,
		[]float64{0.2, 0.3, 5, 5, 0.4, 0.4, 0.4, 0.2})

	// Observed: the two leading idle samples, the expiry sample that closed
	// the burst and the trailing idle sample. In-burst and in-dip samples
	// before expiry never reach the policy.
	want := []float64{0.2, 0.3, 0.4, 0.2}
	if len(policy.observed) != len(want) {
		t.Fatalf("observed %v, want %v", policy.observed, want)
	}
	for i := range want {
		if policy.observed[i] != want[i] {
			t.Fatalf("observed %v, want %v", policy.observed, want)
		}
	}
}

func TestDetectorReplayDeterminism(t *testing.T) {
	powers := []float64{0.1, 0.2, 5, 6, 0.1, 0.1, 0.1, 0.1, 7, 0.2, 0.2, 0.2, 0.2, 0.1}

	run := func() []Event {
		d, err := NewDetector(FixedThreshold(1.0), 10*time.Millisecond)
		if err != nil {
			t.Fatalf("NewDetector() error: %s", err)
		}
		return feed(t, d, time.Unix(0, 0), 5*time.Millisecond, powers)
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("replay produced %d events, first run produced %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("event %d differs between runs: %+v != %+v", i, first[i], second[i])
		}
	}
}

func TestNewDetectorValidation(t *testing.T) {
	if _, err := NewDetector(nil, time.Millisecond); err == nil {
		t.Error("expected error for nil policy")
	}
	if _, err := NewDetector(FixedThreshold(1), -time.Millisecond); err == nil {
		t.Error("expected error for negative hold-off")
	}
}
