// Package tracking converts instantaneous coverage booleans into discrete
// handshake events and coverage interval durations. A handshake is one
// contiguous contact between a specific satellite and a specific beacon;
// the interval tracker watches the beacon-level "covered by anything" signal.
//
// Both machines are written as pure transition functions over explicit state
// values, with thin accumulator types on top, so every edge case is testable
// without driving a whole simulation.
package tracking

// Event is the edge emitted by one state-machine step.
type Event int

const (
	EventNone Event = iota
	EventRise // coverage went from false to true
	EventFall // coverage went from true to false
)

// HandshakeState is the per-(beacon, satellite) contact state. The zero
// value is NOT_COVERED with no open contact.
type HandshakeState struct {
	Covered   bool
	StartedAt float64
}

// StepHandshake advances the contact machine with one coverage observation
// at simulated time t. It is pure: the caller owns all bookkeeping.
func StepHandshake(s HandshakeState, coveredNow bool, t float64) (HandshakeState, Event) {
	switch {
	case coveredNow && !s.Covered:
		return HandshakeState{Covered: true, StartedAt: t}, EventRise
	case !coveredNow && s.Covered:
		return HandshakeState{}, EventFall
	default:
		return s, EventNone
	}
}

// PairState accumulates handshake history for one beacon × satellite pair.
// Mutated only through Observe and ForceClose.
type PairState struct {
	HandshakeState
	Count     int
	Durations []float64
}

// Observe feeds one coverage sample at time t and returns the emitted edge.
//
// A contact that opened exactly at t = 0 is not recorded when it closes
// live: the start marker doubles as the open flag, so a zero start reads as
// "never started". The horizon force-close has no such guard and always
// records.
func (p *PairState) Observe(coveredNow bool, t float64) Event {
	prev := p.HandshakeState
	next, ev := StepHandshake(prev, coveredNow, t)
	p.HandshakeState = next

	switch ev {
	case EventRise:
		p.Count++
	case EventFall:
		if prev.StartedAt > 0 {
			p.Durations = append(p.Durations, t-prev.StartedAt)
		}
	}
	return ev
}

// ForceClose ends a still-open contact at the clamped end-of-run time,
// always recording its duration. Reports whether a contact was open.
// Callers invoke this at most once per run.
func (p *PairState) ForceClose(t float64) bool {
	if !p.Covered {
		return false
	}
	p.Durations = append(p.Durations, t-p.StartedAt)
	p.HandshakeState = HandshakeState{}
	return true
}
