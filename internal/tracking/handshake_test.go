package tracking

import (
	"math"
	"testing"
)

func TestStepHandshake(t *testing.T) {
	cases := []struct {
		name      string
		state     HandshakeState
		covered   bool
		t         float64
		wantState HandshakeState
		wantEvent Event
	}{
		{
			name:      "idle stays idle",
			state:     HandshakeState{},
			covered:   false,
			t:         100,
			wantState: HandshakeState{},
			wantEvent: EventNone,
		},
		{
			name:      "contact opens",
			state:     HandshakeState{},
			covered:   true,
			t:         100,
			wantState: HandshakeState{Covered: true, StartedAt: 100},
			wantEvent: EventRise,
		},
		{
			name:      "contact continues",
			state:     HandshakeState{Covered: true, StartedAt: 100},
			covered:   true,
			t:         200,
			wantState: HandshakeState{Covered: true, StartedAt: 100},
			wantEvent: EventNone,
		},
		{
			name:      "contact closes",
			state:     HandshakeState{Covered: true, StartedAt: 100},
			covered:   false,
			t:         250,
			wantState: HandshakeState{},
			wantEvent: EventFall,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ev := StepHandshake(tc.state, tc.covered, tc.t)
			if got != tc.wantState {
				t.Errorf("state = %+v, want %+v", got, tc.wantState)
			}
			if ev != tc.wantEvent {
				t.Errorf("event = %v, want %v", ev, tc.wantEvent)
			}
		})
	}
}

func TestStepInterval(t *testing.T) {
	cases := []struct {
		name      string
		state     IntervalState
		covered   bool
		t         float64
		wantState IntervalState
		wantEvent Event
	}{
		{
			name:      "zero value starts out of coverage",
			state:     IntervalState{},
			covered:   false,
			t:         50,
			wantState: IntervalState{},
			wantEvent: EventNone,
		},
		{
			name:      "coverage gained",
			state:     IntervalState{},
			covered:   true,
			t:         300,
			wantState: IntervalState{In: true},
			wantEvent: EventRise,
		},
		{
			name:      "coverage held",
			state:     IntervalState{In: true},
			covered:   true,
			t:         400,
			wantState: IntervalState{In: true},
			wantEvent: EventNone,
		},
		{
			name:      "coverage lost marks the out time",
			state:     IntervalState{In: true},
			covered:   false,
			t:         500,
			wantState: IntervalState{In: false, OutSince: 500},
			wantEvent: EventFall,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ev := StepInterval(tc.state, tc.covered, tc.t)
			if got != tc.wantState {
				t.Errorf("state = %+v, want %+v", got, tc.wantState)
			}
			if ev != tc.wantEvent {
				t.Errorf("event = %v, want %v", ev, tc.wantEvent)
			}
		})
	}
}

func TestPairObserveRecordsDurations(t *testing.T) {
	var p PairState

	p.Observe(true, 600)
	p.Observe(true, 900)
	p.Observe(false, 1200)

	if p.Count != 1 {
		t.Errorf("Count = %d, want 1", p.Count)
	}
	if len(p.Durations) != 1 || p.Durations[0] != 600 {
		t.Errorf("Durations = %v, want [600]", p.Durations)
	}

	p.Observe(true, 2000)
	p.Observe(false, 2500)

	if p.Count != 2 {
		t.Errorf("Count = %d, want 2", p.Count)
	}
	if len(p.Durations) != 2 || p.Durations[1] != 500 {
		t.Errorf("Durations = %v, want [600 500]", p.Durations)
	}
}

// A contact that opens exactly at t = 0 is dropped on a live close but kept
// on a force close.
func TestPairContactStartingAtZero(t *testing.T) {
	var live PairState
	live.Observe(true, 0)
	live.Observe(false, 500)
	if live.Count != 1 {
		t.Errorf("Count = %d, want 1", live.Count)
	}
	if len(live.Durations) != 0 {
		t.Errorf("live close at t=0 start recorded a duration: %v", live.Durations)
	}

	var forced PairState
	forced.Observe(true, 0)
	if !forced.ForceClose(86400) {
		t.Fatal("ForceClose reported no open contact")
	}
	if len(forced.Durations) != 1 || forced.Durations[0] != 86400 {
		t.Errorf("Durations = %v, want [86400]", forced.Durations)
	}
	if forced.Covered {
		t.Error("pair still covered after force close")
	}
}

func TestPairForceCloseIdle(t *testing.T) {
	var p PairState
	if p.ForceClose(86400) {
		t.Error("ForceClose on an idle pair reported a closure")
	}
	if len(p.Durations) != 0 {
		t.Errorf("idle force close recorded %v", p.Durations)
	}
}

func TestBeaconStateOutIntervals(t *testing.T) {
	var b BeaconState

	// Out from t = 0 until first coverage at 300.
	b.Observe(false, 100)
	b.Observe(true, 300)
	if len(b.OutDurations) != 1 || b.OutDurations[0] != 300 {
		t.Fatalf("OutDurations = %v, want [300]", b.OutDurations)
	}

	// Lose coverage at 500, regain at 800.
	b.Observe(false, 500)
	b.Observe(true, 800)
	if len(b.OutDurations) != 2 || b.OutDurations[1] != 300 {
		t.Fatalf("OutDurations = %v, want [300 300]", b.OutDurations)
	}

	// Lose at 1000, run ends at 1600 while still out.
	b.Observe(false, 1000)
	if !b.ForceClose(1600) {
		t.Fatal("ForceClose reported no open interval")
	}
	if len(b.OutDurations) != 3 || b.OutDurations[2] != 600 {
		t.Fatalf("OutDurations = %v, want [300 300 600]", b.OutDurations)
	}

	sum := 0.0
	for _, d := range b.OutDurations {
		sum += d
	}
	if math.Abs(sum-1200) > 1e-9 {
		t.Errorf("Σ out = %v, want 1200", sum)
	}
}

func TestBeaconStateForceCloseWhileIn(t *testing.T) {
	var b BeaconState
	b.Observe(true, 100)
	if b.ForceClose(200) {
		t.Error("ForceClose closed an interval while in coverage")
	}
	if len(b.OutDurations) != 1 {
		t.Errorf("OutDurations = %v, want just the initial out interval", b.OutDurations)
	}
}
