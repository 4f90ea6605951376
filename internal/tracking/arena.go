package tracking

// BeaconTracker holds one beacon's interval state and its per-satellite
// contact pairs. Pairs are created lazily on first contact; a satellite with
// no entry has simply never covered this beacon.
type BeaconTracker struct {
	Interval BeaconState
	Pairs    map[string]*PairState // keyed by satellite id
}

func newBeaconTracker() *BeaconTracker {
	return &BeaconTracker{Pairs: make(map[string]*PairState)}
}

// Observe feeds one resolved coverage snapshot for this beacon at time t.
// covering holds the ids of satellites currently covering the beacon.
// Returns the number of contacts opened by this observation.
func (b *BeaconTracker) Observe(covering map[string]bool, t float64) (opened int) {
	for satID, ok := range covering {
		if !ok {
			continue
		}
		p := b.Pairs[satID]
		if p == nil {
			p = &PairState{}
			b.Pairs[satID] = p
		}
		if p.Observe(true, t) == EventRise {
			opened++
		}
	}
	for satID, p := range b.Pairs {
		if !covering[satID] {
			p.Observe(false, t)
		}
	}

	b.Interval.Observe(len(covering) > 0, t)
	return opened
}

// Arena owns all tracker state for one engine instance, keyed by beacon id.
// Beacons appear with zeroed state on first sight and vanish with their
// history when removed. Single-writer: the engine serializes all access.
type Arena struct {
	beacons map[string]*BeaconTracker
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{beacons: make(map[string]*BeaconTracker)}
}

// Sync reconciles the tracked set with the live beacon ids: new ids get
// freshly zeroed trackers, ids no longer present are dropped.
func (a *Arena) Sync(ids []string) (added, removed []string) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	for id := range a.beacons {
		if !want[id] {
			delete(a.beacons, id)
			removed = append(removed, id)
		}
	}
	for _, id := range ids {
		if _, ok := a.beacons[id]; !ok {
			a.beacons[id] = newBeaconTracker()
			added = append(added, id)
		}
	}
	return added, removed
}

// Beacon returns the tracker for id, or nil when the beacon is not tracked.
func (a *Arena) Beacon(id string) *BeaconTracker {
	return a.beacons[id]
}

// Beacons exposes the live tracker map for aggregation. Read-only for
// callers; only the arena mutates it.
func (a *Arena) Beacons() map[string]*BeaconTracker {
	return a.beacons
}

// Len returns the number of tracked beacons.
func (a *Arena) Len() int {
	return len(a.beacons)
}

// ForceCloseAll ends every open contact and out-of-coverage interval at the
// clamped end-of-run time. Returns the number of contacts closed. Called
// once per run, when the horizon is reached or the driver stops.
func (a *Arena) ForceCloseAll(t float64) (closed int) {
	for _, bt := range a.beacons {
		for _, p := range bt.Pairs {
			if p.ForceClose(t) {
				closed++
			}
		}
		bt.Interval.ForceClose(t)
	}
	return closed
}

// Reset drops every tracker. The next Sync recreates them zeroed.
func (a *Arena) Reset() {
	clear(a.beacons)
}
