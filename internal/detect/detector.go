package detect

import (
	"fmt"
	"math"
	"time"
)

const (
	Idle State = iota
	InBurst
	HoldOff
)

const (
	BurstStart EventKind = iota
	BurstEnd
)

// State is the detector's position in its transition graph.
type State int

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InBurst:
		return "in-burst"
	case HoldOff:
		return "hold-off"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type EventKind int

// Burst is one candidate detection: a contiguous interval where power
// exceeded the threshold, bridged across sub-threshold dips shorter than
// the hold-off.
type Burst struct {
	Start time.Time
	End   time.Time // zero while the burst is open
	Peak  float64
}

func (b Burst) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Event is emitted by the detector on state transitions. Burst is populated
// on BurstEnd with the completed burst.
type Event struct {
	Kind  EventKind
	Time  time.Time
	Power float64
	Burst Burst
}

// Detector turns a noisy power stream into discrete burst events. It is an
// explicit state machine advanced once per power sample so transitions are
// unit-testable against synthetic sequences, without hardware.
//
//	Idle    -> InBurst: power crosses above the threshold; emits BurstStart.
//	InBurst -> HoldOff: power falls to or below the threshold.
//	HoldOff -> InBurst: power re-crosses before the hold-off expires (the
//	                    dip was modulation, not the end of the press).
//	HoldOff -> Idle:    hold-off expires; emits BurstEnd. The burst ends at
//	                    the start of the dip, not at expiry.
//
// Threshold policies are only fed samples while Idle. Non-finite power
// values fail safe: they are treated as below threshold and are never
// propagated.
type Detector struct {
	policy  Policy
	holdOff time.Duration

	state    State
	burst    Burst
	dipStart time.Time
}

func NewDetector(policy Policy, holdOff time.Duration) (*Detector, error) {
	if policy == nil {
		return nil, fmt.Errorf("threshold policy is required")
	}
	if holdOff < 0 {
		return nil, fmt.Errorf("hold-off must not be negative: %s", holdOff)
	}
	return &Detector{policy: policy, holdOff: holdOff}, nil
}

// State returns the current detector state.
func (d *Detector) State() State {
	return d.state
}

// Armed reports whether the threshold policy has finished calibrating.
func (d *Detector) Armed() bool {
	return d.policy.Armed()
}

// Threshold returns the current detection threshold.
func (d *Detector) Threshold() float64 {
	return d.policy.Threshold()
}

// Advance feeds one power sample through the state machine and returns the
// events the transition produced, in order.
func (d *Detector) Advance(s PowerSample) []Event {
	v := s.Power
	finite := !math.IsNaN(v) && !math.IsInf(v, 0)
	if !finite {
		v = math.Inf(-1) // below any threshold
	}

	switch d.state {
	case Idle:
		if d.policy.Armed() && v > d.policy.Threshold() {
			d.state = InBurst
			d.burst = Burst{Start: s.Timestamp, Peak: v}
			return []Event{{Kind: BurstStart, Time: s.Timestamp, Power: v}}
		}
		// The sample did not trigger, so it is noise; only now may it
		// shape the threshold.
		if finite {
			d.policy.Observe(v)
		}

	case InBurst:
		if v > d.policy.Threshold() {
			d.burst.Peak = math.Max(d.burst.Peak, v)
		} else {
			d.state = HoldOff
			d.dipStart = s.Timestamp
		}

	case HoldOff:
		if v > d.policy.Threshold() {
			d.state = InBurst
			d.burst.Peak = math.Max(d.burst.Peak, v)
		} else if s.Timestamp.Sub(d.dipStart) >= d.holdOff {
			d.state = Idle
			d.burst.End = d.dipStart
			done := d.burst
			d.burst = Burst{}
			if finite {
				d.policy.Observe(v)
			}
			return []Event{{Kind: BurstEnd, Time: s.Timestamp, Power: v, Burst: done}}
		}
	}

	return nil
}
