package detect

import (
	"math"
	"testing"
	"time"

	"github.com/rf-lab/fobwatch/internal/sdr"
)

func block(rate int, samples []complex128) *sdr.SampleBlock {
	return &sdr.SampleBlock{
		Timestamp:  time.Unix(0, 0),
		SampleRate: rate,
		Samples:    samples,
	}
}

func constantBlock(rate, n int, z complex128) *sdr.SampleBlock {
	samples := make([]complex128, n)
	for i := range samples {
		samples[i] = z
	}
	return block(rate, samples)
}

func TestEstimateLinear(t *testing.T) {
	e, err := NewEstimator(ScaleLinear, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewEstimator() error: %s", err)
	}

	// 1000 S/s, 10ms sub-window: 10 samples per window, |2+0i|^2 = 4.
	out := e.Estimate(constantBlock(1000, 20, complex(2, 0)))

	if len(out) != 2 {
		t.Fatalf("expected 2 power samples, got %d", len(out))
	}
	for i, p := range out {
		if p.Power != 4 {
			t.Errorf("sample %d power = %g, want 4", i, p.Power)
		}
	}
	if want := time.Unix(0, 0).Add(10 * time.Millisecond); !out[1].Timestamp.Equal(want) {
		t.Errorf("second sample timestamp = %s, want %s", out[1].Timestamp, want)
	}
}

func TestEstimateDropsPartialWindow(t *testing.T) {
	e, err := NewEstimator(ScaleLinear, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewEstimator() error: %s", err)
	}

	// 25 samples at 10 per window: the trailing 5 are dropped.
	out := e.Estimate(constantBlock(1000, 25, complex(1, 0)))
	if len(out) != 2 {
		t.Errorf("expected 2 power samples, got %d", len(out))
	}
}

func TestEstimateZeroSubWindow(t *testing.T) {
	e, err := NewEstimator(ScaleLinear, 0)
	if err != nil {
		t.Fatalf("NewEstimator() error: %s", err)
	}

	out := e.Estimate(constantBlock(1000, 50, complex(1, 1)))
	if len(out) != 1 {
		t.Fatalf("expected one power sample per block, got %d", len(out))
	}
	if out[0].Power != 2 {
		t.Errorf("power = %g, want |1+1i|^2 = 2", out[0].Power)
	}
}

func TestEstimateDB(t *testing.T) {
	e, err := NewEstimator(ScaleDB, 0)
	if err != nil {
		t.Fatalf("NewEstimator() error: %s", err)
	}

	out := e.Estimate(constantBlock(1000, 10, complex(1, 1)))
	if len(out) != 1 {
		t.Fatalf("expected 1 power sample, got %d", len(out))
	}

	want := 10 * math.Log10(2)
	if math.Abs(out[0].Power-want) > 1e-9 {
		t.Errorf("power = %g dB, want %g dB", out[0].Power, want)
	}
}

func TestEstimateDBClampsSilence(t *testing.T) {
	e, err := NewEstimator(ScaleDB, 0)
	if err != nil {
		t.Fatalf("NewEstimator() error: %s", err)
	}

	// An all-zero block would be log10(0); it must clamp, not error or -Inf.
	out := e.Estimate(constantBlock(1000, 10, 0))
	if len(out) != 1 {
		t.Fatalf("expected 1 power sample, got %d", len(out))
	}
	if out[0].Power != MinPowerDB {
		t.Errorf("power = %g, want clamp %g", out[0].Power, MinPowerDB)
	}
}

func TestEstimateEmptyBlock(t *testing.T) {
	e, err := NewEstimator(ScaleLinear, time.Millisecond)
	if err != nil {
		t.Fatalf("NewEstimator() error: %s", err)
	}

	if out := e.Estimate(block(1000, nil)); out != nil {
		t.Errorf("expected nil for empty block, got %d samples", len(out))
	}
}

func TestNewEstimatorValidation(t *testing.T) {
	if _, err := NewEstimator("decibels", 0); err == nil {
		t.Error("expected error for unknown scale")
	}
	if _, err := NewEstimator(ScaleLinear, -time.Millisecond); err == nil {
		t.Error("expected error for negative sub-window")
	}
}
