package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/rf-lab/fobwatch/internal/sdr"
)

const (
	ScaleLinear Scale = "linear"
	ScaleDB     Scale = "db"

	// MinPowerDB is the clamp applied to log-scale power of a silent block.
	// log10(0) is undefined; a muted device must yield the representable
	// minimum, never an error.
	MinPowerDB = -150.0
)

// Scale selects the power representation. Threshold values are interpreted
// in the same scale, so the choice must be consistent across the pipeline.
type Scale string

// PowerSample is a single scalar power measurement summarizing one
// sub-window of a sample block.
type PowerSample struct {
	Timestamp time.Time
	Power     float64
}

// Estimator reduces sample blocks to power samples: the mean of squared
// magnitudes over each sub-window, optionally compressed to dB. It is a
// pure function of its input and holds no state across blocks.
type Estimator struct {
	scale     Scale
	subWindow time.Duration
}

// NewEstimator creates an Estimator. subWindow is the envelope resolution;
// zero means one power sample per block.
func NewEstimator(scale Scale, subWindow time.Duration) (*Estimator, error) {
	if scale != ScaleLinear && scale != ScaleDB {
		return nil, fmt.Errorf("invalid power scale: %q", scale)
	}
	if subWindow < 0 {
		return nil, fmt.Errorf("sub-window must not be negative: %s", subWindow)
	}
	return &Estimator{scale: scale, subWindow: subWindow}, nil
}

// Scale returns the power representation the estimator produces.
func (e *Estimator) Scale() Scale {
	return e.scale
}

// Estimate computes one power sample per sub-window of the block. Trailing
// samples that do not fill a whole sub-window are dropped, matching the
// fixed envelope resolution.
func (e *Estimator) Estimate(block *sdr.SampleBlock) []PowerSample {
	n := len(block.Samples)
	if n == 0 {
		return nil
	}

	win := n
	if e.subWindow > 0 && block.SampleRate > 0 {
		win = int(float64(block.SampleRate) * e.subWindow.Seconds())
		if win < 1 {
			win = 1
		}
		if win > n {
			win = n
		}
	}

	count := n / win
	winDuration := time.Duration(float64(win) / float64(block.SampleRate) * float64(time.Second))

	out := make([]PowerSample, count)
	for w := 0; w < count; w++ {
		var sum float64
		for _, z := range block.Samples[w*win : (w+1)*win] {
			re, im := real(z), imag(z)
			sum += re*re + im*im
		}
		mean := sum / float64(win)

		if e.scale == ScaleDB {
			if mean <= 0 {
				mean = MinPowerDB
			} else {
				mean = math.Max(10*math.Log10(mean), MinPowerDB)
			}
		}

		out[w] = PowerSample{
			Timestamp: block.Timestamp.Add(time.Duration(w) * winDuration),
			Power:     mean,
		}
	}

	return out
}
