package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
	"github.com/kabirarshafidz/galactic-grip/internal/metrics"
	"github.com/kabirarshafidz/galactic-grip/internal/sim"
	"github.com/kabirarshafidz/galactic-grip/internal/timeline"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// beaconErrStatus maps registry errors onto HTTP status codes.
func beaconErrStatus(err error) int {
	switch {
	case errors.Is(err, sim.ErrBeaconLimit):
		return http.StatusConflict
	case errors.Is(err, sim.ErrBeaconNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

type catalogMetadata struct {
	Source     string             `json:"source"`
	FetchedAt  string             `json:"fetched_at"`
	AgeSeconds float64            `json:"age_seconds"`
	Count      int                `json:"count"`
	EpochRange catalog.EpochRange `json:"epoch_range"`
}

type catalogResponse struct {
	catalogMetadata
	Satellites []catalog.Satellite `json:"satellites"`
}

func (s *Server) catalogMeta(ds *catalog.Dataset) catalogMetadata {
	return catalogMetadata{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt.UTC().Format(time.RFC3339),
		AgeSeconds: s.store.AgeSeconds(),
		Count:      len(ds.Satellites),
		EpochRange: ds.EpochRange,
	}
}

// GET /api/v1/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{
		catalogMetadata: s.catalogMeta(ds),
		Satellites:      ds.Satellites,
	})
}

// GET /api/v1/catalog/metadata
func (s *Server) handleCatalogMetadata(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}
	writeJSON(w, http.StatusOK, s.catalogMeta(ds))
}

// POST /api/v1/catalog/refresh
func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "no catalog refresher configured")
		return
	}
	s.store.Lock()
	defer s.store.Unlock()
	ds, err := s.refresh(r.Context())
	if err != nil {
		s.logger.Warn("catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "catalog refresh failed")
		return
	}
	s.store.Set(ds)
	metrics.SetCatalogSatellites(len(ds.Satellites))
	s.runner.Nudge()
	s.logger.Info("catalog refreshed", "source", ds.Source, "satellites", len(ds.Satellites))
	writeJSON(w, http.StatusOK, s.catalogMeta(ds))
}

// GET /api/v1/beacons
func (s *Server) handleListBeacons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// POST /api/v1/beacons
func (s *Server) handleAddBeacon(w http.ResponseWriter, r *http.Request) {
	var cfg engine.BeaconConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	added, err := s.registry.Add(cfg)
	if err != nil {
		writeError(w, beaconErrStatus(err), err.Error())
		return
	}
	s.runner.Nudge()
	s.logger.Info("beacon added", "id", added.ID, "kind", added.Kind)
	writeJSON(w, http.StatusCreated, added)
}

// GET /api/v1/beacons/{id}
func (s *Server) handleGetBeacon(w http.ResponseWriter, r *http.Request) {
	b, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "beacon not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// PUT /api/v1/beacons/{id}
func (s *Server) handleUpdateBeacon(w http.ResponseWriter, r *http.Request) {
	var cfg engine.BeaconConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.registry.Update(r.PathValue("id"), cfg)
	if err != nil {
		writeError(w, beaconErrStatus(err), err.Error())
		return
	}
	s.runner.Nudge()
	s.logger.Info("beacon updated", "id", updated.ID, "kind", updated.Kind)
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/beacons/{id}
func (s *Server) handleRemoveBeacon(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Remove(id); err != nil {
		writeError(w, beaconErrStatus(err), err.Error())
		return
	}
	s.runner.Nudge()
	s.logger.Info("beacon removed", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	frame := s.runner.Frame()
	if frame == nil {
		writeError(w, http.StatusServiceUnavailable, "no frame published yet")
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	frame := s.runner.Frame()
	if frame == nil {
		writeError(w, http.StatusServiceUnavailable, "no frame published yet")
		return
	}
	writeJSON(w, http.StatusOK, frame.Stats)
}

// timeParam reads the optional ?t= query parameter. Without one, the
// current simulated time is used.
func (s *Server) timeParam(r *http.Request) (float64, error) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		if f := s.runner.Frame(); f != nil {
			return f.SimTimeS, nil
		}
		return 0, nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0, errors.New("t must be a number of seconds in [0, 86400]")
	}
	return math.Min(t, engine.HorizonSeconds), nil
}

type positionsResponse struct {
	T          float64               `json:"t"`
	Satellites []engine.BodyPosition `json:"satellites"`
	Beacons    []engine.BodyPosition `json:"beacons"`
}

// GET /api/v1/positions?t=<seconds>
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	t, err := s.timeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sats, bcs, err := s.eng.PositionsAt(s.store.Get(), s.registry.List(), t)
	if err != nil {
		if errors.Is(err, engine.ErrNoCatalog) {
			writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, positionsResponse{T: t, Satellites: sats, Beacons: bcs})
}

type coverageResponse struct {
	T        float64             `json:"t"`
	Coverage map[string][]string `json:"coverage"`
}

// GET /api/v1/coverage?t=<seconds>
func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	t, err := s.timeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	beacons := s.registry.List()
	res, err := s.eng.ResolveCoverage(s.store.Get(), beacons, t)
	if err != nil {
		if errors.Is(err, engine.ErrNoCatalog) {
			writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	coverage := make(map[string][]string, len(beacons))
	for _, b := range beacons {
		coverage[b.ID] = res.Covering(b.ID)
	}
	writeJSON(w, http.StatusOK, coverageResponse{T: t, Coverage: coverage})
}

type timelineResponse struct {
	StepS     float64                        `json:"step_s"`
	Ready     bool                           `json:"ready"`
	Intervals map[string][]timeline.Interval `json:"intervals"`
}

// GET /api/v1/timeline?beacon=<id>
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	resp := timelineResponse{
		StepS:     s.timeline.StepSeconds(),
		Ready:     s.timeline.Ready(),
		Intervals: make(map[string][]timeline.Interval),
	}
	if id := r.URL.Query().Get("beacon"); id != "" {
		if _, ok := s.registry.Get(id); !ok {
			writeError(w, http.StatusNotFound, "beacon not found")
			return
		}
		resp.Intervals[id] = s.timeline.Intervals(id)
	} else {
		for _, b := range s.registry.List() {
			resp.Intervals[b.ID] = s.timeline.Intervals(b.ID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func simAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/v1/sim/start and /api/v1/sim/resume
func (s *Server) handleSimResume(w http.ResponseWriter, r *http.Request) {
	s.runner.Resume()
	simAck(w)
}

// POST /api/v1/sim/pause
func (s *Server) handleSimPause(w http.ResponseWriter, r *http.Request) {
	s.runner.Pause()
	simAck(w)
}

// POST /api/v1/sim/seek
func (s *Server) handleSimSeek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		T *float64 `json:"t"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.T == nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object with a numeric t")
		return
	}
	t := *body.T
	if math.IsNaN(t) || math.IsInf(t, 0) {
		writeError(w, http.StatusBadRequest, "t must be finite")
		return
	}
	s.runner.Seek(t)
	simAck(w)
}

// POST /api/v1/sim/rate
func (s *Server) handleSimRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rate *float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Rate == nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object with a numeric rate")
		return
	}
	if err := s.runner.SetRate(*body.Rate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	simAck(w)
}

// POST /api/v1/sim/reset
func (s *Server) handleSimReset(w http.ResponseWriter, r *http.Request) {
	s.runner.Reset()
	simAck(w)
}

// POST /api/v1/sim/stop
func (s *Server) handleSimStop(w http.ResponseWriter, r *http.Request) {
	s.runner.Stop()
	simAck(w)
}
