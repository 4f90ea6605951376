package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/kabirarshafidz/galactic-grip/internal/orbit"
)

// Records with eccentricity above this are skipped: the circular reduction
// would place them hundreds of kilometres off their real track.
const maxEccentricity = 0.25

const secondsPerDay = 86400.0

// ParseTLE reads three-line element sets (name, line 1, line 2) from r and
// reduces each to a circular catalog record. Malformed or unusable sets are
// skipped with a warning rather than failing the whole batch.
func ParseTLE(r io.Reader, logger *slog.Logger) ([]Satellite, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element sets: %w", err)
	}

	var sats []Satellite
	for i := 0; i+2 < len(lines); i += 3 {
		name := strings.TrimSpace(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		sat, err := reduceElements(name, line1, line2)
		if err != nil {
			logger.Warn("skipping element set", "name", name, "error", err)
			continue
		}
		sats = append(sats, sat)
	}
	return sats, nil
}

// reduceElements validates one element set and reduces it to a circular
// record. The set must also initialize under SGP4 and yield a finite
// position at its own epoch; elements that fail that gate are junk even
// for the circular approximation.
func reduceElements(name, line1, line2 string) (Satellite, error) {
	if !strings.HasPrefix(line1, "1 ") || len(line1) < 32 {
		return Satellite{}, fmt.Errorf("bad line 1")
	}
	if !strings.HasPrefix(line2, "2 ") || len(line2) < 63 {
		return Satellite{}, fmt.Errorf("bad line 2")
	}

	id := strings.TrimSpace(line1[2:7])
	if id == "" {
		return Satellite{}, fmt.Errorf("missing catalog number")
	}

	epoch, err := parseEpoch(line1[18:32])
	if err != nil {
		return Satellite{}, fmt.Errorf("epoch: %w", err)
	}

	incDeg, err := parseField(line2[8:16], "inclination")
	if err != nil {
		return Satellite{}, err
	}
	raanDeg, err := parseField(line2[17:25], "raan")
	if err != nil {
		return Satellite{}, err
	}
	ecc, err := parseField("0."+strings.TrimSpace(line2[26:33]), "eccentricity")
	if err != nil {
		return Satellite{}, err
	}
	argpDeg, err := parseField(line2[34:42], "argument of pericenter")
	if err != nil {
		return Satellite{}, err
	}
	maDeg, err := parseField(line2[43:51], "mean anomaly")
	if err != nil {
		return Satellite{}, err
	}
	revPerDay, err := parseField(line2[52:63], "mean motion")
	if err != nil {
		return Satellite{}, err
	}

	if ecc > maxEccentricity {
		return Satellite{}, fmt.Errorf("eccentricity %.4f too high for circular reduction", ecc)
	}
	if revPerDay <= 0 {
		return Satellite{}, fmt.Errorf("non-positive mean motion %.8f", revPerDay)
	}

	period := secondsPerDay / revPerDay
	n := 2 * math.Pi / period
	semiMajor := math.Cbrt(orbit.MuEarth / (n * n))
	altitude := semiMajor - orbit.EarthRadiusKm
	if altitude <= 0 {
		return Satellite{}, fmt.Errorf("decayed orbit, altitude %.1f km", altitude)
	}

	sgp4Sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	pos, _ := satellite.Propagate(sgp4Sat, epoch.Year(), int(epoch.Month()), epoch.Day(),
		epoch.Hour(), epoch.Minute(), epoch.Second())
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return Satellite{}, fmt.Errorf("sgp4 initialization produced NaN position")
	}

	if name == "" {
		name = id
	}
	return Satellite{
		ID:               id,
		Name:             name,
		AltitudeKm:       altitude,
		InclinationDeg:   incDeg,
		RAANDeg:          raanDeg,
		ArgPericenterDeg: argpDeg,
		MeanAnomalyDeg:   maDeg,
		PeriodSeconds:    period,
		Epoch:            epoch,
	}, nil
}

func parseField(raw, what string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: not finite", what)
	}
	return v, nil
}

// parseEpoch decodes the YYDDD.DDDDDDDD epoch field. Years 57-99 map to the
// 1900s, the rest to the 2000s.
func parseEpoch(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("field too short: %q", raw)
	}
	yy, err := strconv.Atoi(s[0:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("year digits: %w", err)
	}
	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("day of year: %w", err)
	}
	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}
	base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration((dayOfYear - 1) * 24 * float64(time.Hour))), nil
}
