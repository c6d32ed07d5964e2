package detect

import (
	"fmt"
	"math"
	"sort"
)

// Policy supplies the detection threshold. Implementations are fed power
// samples only while the detector is idle, so a burst can never drag its
// own threshold up.
type Policy interface {
	// Armed reports whether the policy has enough data to produce a
	// meaningful threshold. While unarmed the detector stays idle.
	Armed() bool

	// Threshold returns the current cutoff in the estimator's power scale.
	Threshold() float64

	// Observe feeds an idle-state power sample into the noise estimate.
	Observe(power float64)
}

// FixedPolicy is a constant threshold supplied by configuration.
type FixedPolicy struct {
	value float64
}

func FixedThreshold(value float64) *FixedPolicy {
	return &FixedPolicy{value: value}
}

func (p *FixedPolicy) Armed() bool        { return true }
func (p *FixedPolicy) Threshold() float64 { return p.value }
func (p *FixedPolicy) Observe(float64)    {}

// AdaptivePolicy derives the threshold from a rolling median of idle-state
// power: a robust noise-floor estimate that ignores the occasional spike.
// In linear scale the threshold is floor * factor; in dB it is floor + margin.
// Until minSamples idle observations have been collected the policy is
// unarmed (the calibration phase).
type AdaptivePolicy struct {
	window     []float64
	next       int
	count      int
	minSamples int

	factor float64 // multiplicative, linear scale
	margin float64 // additive, dB scale

	floor     float64
	threshold float64
	dirty     bool
}

// AdaptiveLinear creates an adaptive policy for linear-scale power with
// threshold = noise floor * factor.
func AdaptiveLinear(windowSize, minSamples int, factor float64) (*AdaptivePolicy, error) {
	if factor <= 1 {
		return nil, fmt.Errorf("threshold factor must be greater than 1: %g given", factor)
	}
	return newAdaptive(windowSize, minSamples, factor, 0)
}

// AdaptiveDB creates an adaptive policy for dB-scale power with
// threshold = noise floor + marginDB.
func AdaptiveDB(windowSize, minSamples int, marginDB float64) (*AdaptivePolicy, error) {
	if marginDB <= 0 {
		return nil, fmt.Errorf("threshold margin must be positive: %g dB given", marginDB)
	}
	return newAdaptive(windowSize, minSamples, 0, marginDB)
}

func newAdaptive(windowSize, minSamples int, factor, margin float64) (*AdaptivePolicy, error) {
	if windowSize <= 0 || minSamples <= 0 || minSamples > windowSize {
		return nil, fmt.Errorf("invalid noise window parameters: windowSize=%d, minSamples=%d",
			windowSize, minSamples)
	}
	return &AdaptivePolicy{
		window:     make([]float64, windowSize),
		minSamples: minSamples,
		factor:     factor,
		margin:     margin,
	}, nil
}

func (p *AdaptivePolicy) Armed() bool {
	return p.count >= p.minSamples
}

func (p *AdaptivePolicy) Observe(power float64) {
	p.window[p.next] = power
	p.next = (p.next + 1) % len(p.window)
	if p.count < len(p.window) {
		p.count++
	}
	p.dirty = true
}

func (p *AdaptivePolicy) Threshold() float64 {
	if !p.Armed() {
		return math.Inf(1)
	}
	if p.dirty {
		p.recompute()
	}
	return p.threshold
}

// NoiseFloor returns the current rolling median of observed idle power.
func (p *AdaptivePolicy) NoiseFloor() float64 {
	if p.dirty {
		p.recompute()
	}
	return p.floor
}

func (p *AdaptivePolicy) recompute() {
	sorted := make([]float64, p.count)
	copy(sorted, p.window[:p.count])
	sort.Float64s(sorted)

	mid := p.count / 2
	if p.count%2 == 0 {
		p.floor = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		p.floor = sorted[mid]
	}

	if p.factor > 0 {
		p.threshold = p.floor * p.factor
	} else {
		p.threshold = p.floor + p.margin
	}
	p.dirty = false
}
