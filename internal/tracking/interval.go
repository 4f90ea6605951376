package tracking

// IntervalState is the per-beacon coverage interval state. The zero value is
// out of coverage since t = 0, which is where every beacon starts.
type IntervalState struct {
	In       bool
	OutSince float64
}

// StepInterval advances the beacon-level machine with the "covered by at
// least one satellite" observation at time t. Pure, like StepHandshake.
func StepInterval(s IntervalState, coveredNow bool, t float64) (IntervalState, Event) {
	switch {
	case coveredNow && !s.In:
		return IntervalState{In: true}, EventRise
	case !coveredNow && s.In:
		return IntervalState{In: false, OutSince: t}, EventFall
	default:
		return s, EventNone
	}
}

// BeaconState accumulates out-of-coverage intervals for one beacon. The
// in-coverage side is derived from handshake durations at aggregation time,
// not tracked here.
type BeaconState struct {
	IntervalState
	OutDurations []float64
}

// Observe feeds one beacon-level coverage sample at time t. Gaining coverage
// closes the open out-of-coverage interval and records its duration.
func (b *BeaconState) Observe(coveredNow bool, t float64) Event {
	prev := b.IntervalState
	next, ev := StepInterval(prev, coveredNow, t)
	b.IntervalState = next

	if ev == EventRise {
		b.OutDurations = append(b.OutDurations, t-prev.OutSince)
	}
	return ev
}

// ForceClose ends a still-open out-of-coverage interval at the clamped
// end-of-run time. Reports whether an interval was open. Callers invoke
// this at most once per run.
func (b *BeaconState) ForceClose(t float64) bool {
	if b.In {
		return false
	}
	b.OutDurations = append(b.OutDurations, t-b.OutSince)
	b.OutSince = t
	return true
}
