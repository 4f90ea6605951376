package engine

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
	"github.com/kabirarshafidz/galactic-grip/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine() *Engine {
	return New(testLogger(), Config{
		ReferenceEpoch: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
}

// sunSyncSat builds a catalog record in the orbital plane a sun-synchronous
// beacon at the same local solar time would use. A zero epoch keeps the
// phase anchored at simulated time zero.
func sunSyncSat(id string, altKm, lstHours, meanAnomalyDeg float64) catalog.Satellite {
	return catalog.Satellite{
		ID:             id,
		Name:           id,
		AltitudeKm:     altKm,
		InclinationDeg: orbit.SunSyncInclinationDeg,
		RAANDeg:        orbit.SunSyncRAAN(lstHours) * 180 / math.Pi,
		MeanAnomalyDeg: meanAnomalyDeg,
		PeriodSeconds:  orbit.CircularPeriod(altKm),
	}
}

func testDataset(sats ...catalog.Satellite) *catalog.Dataset {
	return catalog.NewDataset("test", time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), sats)
}

// runDay advances in fixed steps through the whole horizon and returns the
// settled snapshot.
func runDay(t *testing.T, e *Engine, ds *catalog.Dataset, beacons []BeaconConfig, dt float64) *stats.Snapshot {
	t.Helper()
	for tt := 0.0; tt < HorizonSeconds; tt += dt {
		if _, err := e.Advance(ds, beacons, tt, true); err != nil {
			t.Fatalf("Advance(%v): %v", tt, err)
		}
	}
	snap, err := e.Advance(ds, beacons, HorizonSeconds, true)
	if err != nil {
		t.Fatalf("Advance(horizon): %v", err)
	}
	return snap
}

func beaconRow(t *testing.T, snap *stats.Snapshot, id string) stats.BeaconAggregate {
	t.Helper()
	for _, b := range snap.Beacons {
		if b.BeaconID == id {
			return b
		}
	}
	t.Fatalf("beacon %s missing from snapshot", id)
	return stats.BeaconAggregate{}
}

func TestAdvanceAlwaysCovered(t *testing.T) {
	// Satellite and beacon share a plane, altitude and phase, so the
	// beacon sits at the cone apex for the whole day.
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}

	e := testEngine()
	snap := runDay(t, e, ds, beacons, 600)

	row := beaconRow(t, snap, "alpha")
	if row.Handshakes != 1 {
		t.Errorf("Handshakes = %d, want 1", row.Handshakes)
	}
	if math.Abs(row.TotalInS-HorizonSeconds) > 0.01 {
		t.Errorf("TotalInS = %v, want %v", row.TotalInS, HorizonSeconds)
	}
	if row.TotalOutS != 0 {
		t.Errorf("TotalOutS = %v, want 0", row.TotalOutS)
	}
	if !row.InCoverageNow {
		t.Error("InCoverageNow = false, want true")
	}
	if row.Normalized {
		t.Error("Normalized = true for an exact-horizon run")
	}
	if !e.Finished() {
		t.Error("engine not finished after advancing to the horizon")
	}
}

func TestAdvanceHorizonClosesOnce(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	for _, tt := range []float64{0, 43200} {
		if _, err := e.Advance(ds, beacons, tt, true); err != nil {
			t.Fatalf("Advance(%v): %v", tt, err)
		}
	}
	first, err := e.Advance(ds, beacons, HorizonSeconds, true)
	if err != nil {
		t.Fatalf("Advance(horizon): %v", err)
	}
	// A repeat call at the same time must not close the contact again.
	second, err := e.Advance(ds, beacons, HorizonSeconds, true)
	if err != nil {
		t.Fatalf("Advance(horizon, repeat): %v", err)
	}

	for i, snap := range []*stats.Snapshot{first, second} {
		row := beaconRow(t, snap, "alpha")
		if row.Handshakes != 1 {
			t.Errorf("call %d: Handshakes = %d, want 1", i+1, row.Handshakes)
		}
		if math.Abs(row.TotalInS-HorizonSeconds) > 0.01 {
			t.Errorf("call %d: TotalInS = %v, want %v", i+1, row.TotalInS, HorizonSeconds)
		}
	}
}

func TestAdvanceNeverCovered(t *testing.T) {
	// Same plane, opposite phase: the separation stays near two Earth
	// radii all day.
	ds := testDataset(sunSyncSat("SAT-FAR", 600, 12, 180))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}

	snap := runDay(t, testEngine(), ds, beacons, 600)

	row := beaconRow(t, snap, "alpha")
	if row.Handshakes != 0 {
		t.Errorf("Handshakes = %d, want 0", row.Handshakes)
	}
	if row.TotalInS != 0 {
		t.Errorf("TotalInS = %v, want 0", row.TotalInS)
	}
	if math.Abs(row.TotalOutS-HorizonSeconds) > 0.01 {
		t.Errorf("TotalOutS = %v, want %v", row.TotalOutS, HorizonSeconds)
	}
	if row.InCoverageNow {
		t.Error("InCoverageNow = true, want false")
	}
}

func TestAdvanceDriftingPair(t *testing.T) {
	// Different altitudes in the same plane drift past each other once
	// during the day: one contact window, opened and closed mid-run.
	ds := testDataset(sunSyncSat("SAT-DRIFT", 780, 12, 180))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}

	snap := runDay(t, testEngine(), ds, beacons, 60)

	row := beaconRow(t, snap, "alpha")
	if row.Handshakes != 1 {
		t.Errorf("Handshakes = %d, want 1", row.Handshakes)
	}
	if row.TotalInS < 1800 || row.TotalInS > 3000 {
		t.Errorf("TotalInS = %v, want a single window of roughly 2400s", row.TotalInS)
	}
	if got := row.TotalInS + row.TotalOutS; math.Abs(got-HorizonSeconds) > 0.01 {
		t.Errorf("TotalInS+TotalOutS = %v, want %v", got, HorizonSeconds)
	}
	if row.InCoverageNow {
		t.Error("InCoverageNow = true at the horizon, want false")
	}
	if row.Normalized {
		t.Error("Normalized = true, want false")
	}
}

func TestAdvanceNormalizesOverlappingContacts(t *testing.T) {
	// Two satellites covering the beacon all day double-count contact
	// time; the totals must be scaled back to the horizon.
	ds := testDataset(
		sunSyncSat("SAT-A", 600, 12, 0),
		sunSyncSat("SAT-B", 600, 12, 0),
	)
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}

	snap := runDay(t, testEngine(), ds, beacons, 600)

	row := beaconRow(t, snap, "alpha")
	if !row.Normalized {
		t.Fatal("Normalized = false, want true")
	}
	if got := row.TotalInS + row.TotalOutS; math.Abs(got-HorizonSeconds) > 0.01 {
		t.Errorf("TotalInS+TotalOutS = %v, want %v after scaling", got, HorizonSeconds)
	}
	if len(snap.NormalizedBeacons()) != 1 {
		t.Errorf("NormalizedBeacons = %v, want one entry", snap.NormalizedBeacons())
	}
}

func TestAdvanceStopSettlesRun(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	for _, tt := range []float64{0, 600, 1200} {
		if _, err := e.Advance(ds, beacons, tt, true); err != nil {
			t.Fatalf("Advance(%v): %v", tt, err)
		}
	}

	snap, err := e.Advance(ds, beacons, 40000, false)
	if err != nil {
		t.Fatalf("Advance(stop): %v", err)
	}
	row := beaconRow(t, snap, "alpha")
	if row.Handshakes != 1 {
		t.Errorf("Handshakes = %d, want 1", row.Handshakes)
	}
	if math.Abs(row.TotalInS-40000) > 0.01 {
		t.Errorf("TotalInS = %v, want 40000", row.TotalInS)
	}
	if !e.Finished() {
		t.Fatal("engine not finished after stop")
	}

	// Later advances report the settled state without mutating it.
	snap, err = e.Advance(ds, beacons, 50000, true)
	if err != nil {
		t.Fatalf("Advance(after stop): %v", err)
	}
	if snap.SimTimeS != 40000 {
		t.Errorf("SimTimeS = %v, want 40000", snap.SimTimeS)
	}
	row = beaconRow(t, snap, "alpha")
	if math.Abs(row.TotalInS-40000) > 0.01 {
		t.Errorf("TotalInS after settled advance = %v, want 40000", row.TotalInS)
	}
}

func TestAdvanceZeroResetsSettledRun(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	if _, err := e.Advance(ds, beacons, 40000, false); err != nil {
		t.Fatalf("Advance(stop): %v", err)
	}
	if !e.Finished() {
		t.Fatal("engine not finished after stop")
	}

	snap, err := e.Advance(ds, beacons, 0, true)
	if err != nil {
		t.Fatalf("Advance(0): %v", err)
	}
	if e.Finished() {
		t.Error("engine still finished after a zero-time advance")
	}
	if snap.SimTimeS != 0 {
		t.Errorf("SimTimeS = %v, want 0", snap.SimTimeS)
	}
	row := beaconRow(t, snap, "alpha")
	if row.TotalInS != 0 {
		t.Errorf("TotalInS = %v, want 0 on a fresh run", row.TotalInS)
	}
}

func TestAdvanceRejectsReversedTime(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	if _, err := e.Advance(ds, beacons, 1000, true); err != nil {
		t.Fatalf("Advance(1000): %v", err)
	}
	if _, err := e.Advance(ds, beacons, 500, true); !errors.Is(err, ErrTimeReversed) {
		t.Fatalf("Advance(500) = %v, want ErrTimeReversed", err)
	}
	// The failed call must not have advanced the clock.
	if e.LastTime() != 1000 {
		t.Errorf("LastTime = %v, want 1000", e.LastTime())
	}
}

func TestAdvanceInputValidation(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	good := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	if _, err := e.Advance(nil, good, 100, true); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("nil dataset: err = %v, want ErrNoCatalog", err)
	}
	if _, err := e.Advance(ds, good, math.NaN(), true); err == nil {
		t.Error("NaN time accepted")
	}
	if _, err := e.Advance(ds, good, -5, true); err == nil {
		t.Error("negative time accepted")
	}

	bad := []BeaconConfig{{ID: "", Kind: KindSunSync, AltitudeKm: 600}}
	if _, err := e.Advance(ds, bad, 100, true); !errors.Is(err, ErrInvalidBeacon) {
		t.Errorf("invalid beacon: err = %v, want ErrInvalidBeacon", err)
	}

	four := []BeaconConfig{
		{ID: "a", Kind: KindSunSync, AltitudeKm: 600},
		{ID: "b", Kind: KindSunSync, AltitudeKm: 600},
		{ID: "c", Kind: KindSunSync, AltitudeKm: 600},
		{ID: "d", Kind: KindSunSync, AltitudeKm: 600},
	}
	if _, err := e.Advance(ds, four, 100, true); !errors.Is(err, ErrInvalidBeacon) {
		t.Errorf("beacon limit: err = %v, want ErrInvalidBeacon", err)
	}

	dup := []BeaconConfig{
		{ID: "a", Kind: KindSunSync, AltitudeKm: 600},
		{ID: "a", Kind: KindSunSync, AltitudeKm: 700},
	}
	if _, err := e.Advance(ds, dup, 100, true); !errors.Is(err, ErrInvalidBeacon) {
		t.Errorf("duplicate beacon: err = %v, want ErrInvalidBeacon", err)
	}

	// None of the failures advanced the run.
	if e.LastTime() != 0 {
		t.Errorf("LastTime = %v, want 0 after rejected advances", e.LastTime())
	}
}

func TestAdvanceBeaconChurn(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	alpha := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	bravo := []BeaconConfig{{ID: "bravo", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	if _, err := e.Advance(ds, alpha, 600, true); err != nil {
		t.Fatalf("Advance(alpha): %v", err)
	}
	snap, err := e.Advance(ds, bravo, 1200, true)
	if err != nil {
		t.Fatalf("Advance(bravo): %v", err)
	}

	if len(snap.Beacons) != 1 || snap.Beacons[0].BeaconID != "bravo" {
		t.Fatalf("snapshot beacons = %+v, want only bravo", snap.Beacons)
	}

	// A beacon joining mid-run counts as out of coverage since time zero,
	// so its first contact starts at the join time.
	snap, err = e.Advance(ds, bravo, 2400, false)
	if err != nil {
		t.Fatalf("Advance(stop): %v", err)
	}
	row := beaconRow(t, snap, "bravo")
	if math.Abs(row.TotalInS-1200) > 0.01 {
		t.Errorf("TotalInS = %v, want 1200", row.TotalInS)
	}
	if math.Abs(row.TotalOutS-1200) > 0.01 {
		t.Errorf("TotalOutS = %v, want 1200", row.TotalOutS)
	}
}

func TestResolveCoverageIsPure(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	if _, err := e.Advance(ds, beacons, 1000, true); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// Probing earlier times must not trip the reversal guard.
	res, err := e.ResolveCoverage(ds, beacons, 500)
	if err != nil {
		t.Fatalf("ResolveCoverage: %v", err)
	}
	if !res.Covered("alpha") {
		t.Error("alpha uncovered in a matched-orbit scenario")
	}
	if e.LastTime() != 1000 {
		t.Errorf("LastTime = %v, want 1000 after pure resolve", e.LastTime())
	}
	if _, err := e.Advance(ds, beacons, 1100, true); err != nil {
		t.Fatalf("Advance after pure resolve: %v", err)
	}
}

func TestPositionsAt(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	beacons := []BeaconConfig{{ID: "alpha", Kind: KindSunSync, AltitudeKm: 600, LSTHours: 12}}
	e := testEngine()

	sats, bcs, err := e.PositionsAt(ds, beacons, 3600)
	if err != nil {
		t.Fatalf("PositionsAt: %v", err)
	}
	if len(sats) != 1 || len(bcs) != 1 {
		t.Fatalf("got %d satellites and %d beacons, want 1 and 1", len(sats), len(bcs))
	}

	// Matched orbits put both bodies at the same point.
	sep := math.Hypot(sats[0].XKm-bcs[0].XKm, math.Hypot(sats[0].YKm-bcs[0].YKm, sats[0].ZKm-bcs[0].ZKm))
	if sep > 1e-6 {
		t.Errorf("separation = %v km, want 0", sep)
	}

	r := math.Sqrt(sats[0].XKm*sats[0].XKm + sats[0].YKm*sats[0].YKm + sats[0].ZKm*sats[0].ZKm)
	if math.Abs(r-(orbit.EarthRadiusKm+600)) > 1e-6 {
		t.Errorf("orbit radius = %v, want %v", r, orbit.EarthRadiusKm+600)
	}

	if _, _, err := e.PositionsAt(nil, beacons, 0); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("nil dataset: err = %v, want ErrNoCatalog", err)
	}
}

func TestSatelliteBodiesCachedPerSnapshot(t *testing.T) {
	ds := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	e := testEngine()

	first := e.satelliteBodies(ds)
	second := e.satelliteBodies(ds)
	if &first[0] != &second[0] {
		t.Error("same snapshot converted twice")
	}

	// A new snapshot invalidates the cache even with identical contents.
	ds2 := testDataset(sunSyncSat("SAT-MATCH", 600, 12, 0))
	ds2.FetchedAt = ds.FetchedAt.Add(time.Hour)
	third := e.satelliteBodies(ds2)
	if &first[0] == &third[0] {
		t.Error("stale bodies served for a new snapshot")
	}
}
