package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kabirarshafidz/galactic-grip/internal/engine"
)

var (
	// ErrBeaconLimit is returned when adding a beacon would exceed the cap.
	ErrBeaconLimit = errors.New("beacon limit reached")
	// ErrBeaconNotFound is returned for operations on unknown beacon ids.
	ErrBeaconNotFound = errors.New("beacon not found")
)

// Colors assigned to beacons that do not pick their own.
var defaultPalette = [...]string{"#1f77b4", "#ff7f0e", "#2ca02c"}

// Registry holds the mutable beacon set in insertion order. Safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	beacons []engine.BeaconConfig
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// fillDefaults mints an id and fills presentation fields left empty.
func fillDefaults(b engine.BeaconConfig, slot int) engine.BeaconConfig {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Name == "" {
		b.Name = "beacon-" + b.ID[:8]
	}
	if b.Color == "" {
		b.Color = defaultPalette[slot%len(defaultPalette)]
	}
	return b
}

// Seed replaces the whole set, minting ids where needed. Used at startup
// with the scenario's beacon list.
func (r *Registry) Seed(beacons []engine.BeaconConfig) error {
	if len(beacons) > engine.MaxBeacons {
		return fmt.Errorf("%w: %d beacons, limit %d", ErrBeaconLimit, len(beacons), engine.MaxBeacons)
	}
	filled := make([]engine.BeaconConfig, 0, len(beacons))
	for i, b := range beacons {
		b = fillDefaults(b, i)
		if err := b.Validate(); err != nil {
			return fmt.Errorf("beacon %d (%s): %w", i, b.Name, err)
		}
		filled = append(filled, b)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.beacons = filled
	return nil
}

// List returns a copy of the current set in insertion order.
func (r *Registry) List() []engine.BeaconConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]engine.BeaconConfig, len(r.beacons))
	copy(out, r.beacons)
	return out
}

// Get returns the beacon with the given id.
func (r *Registry) Get(id string) (engine.BeaconConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.beacons {
		if b.ID == id {
			return b, true
		}
	}
	return engine.BeaconConfig{}, false
}

// Len returns the number of beacons.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.beacons)
}

// Add validates and appends a beacon, minting an id when absent, and
// returns the stored config.
func (r *Registry) Add(b engine.BeaconConfig) (engine.BeaconConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.beacons) >= engine.MaxBeacons {
		return engine.BeaconConfig{}, fmt.Errorf("%w: limit %d", ErrBeaconLimit, engine.MaxBeacons)
	}
	b = fillDefaults(b, len(r.beacons))
	if err := b.Validate(); err != nil {
		return engine.BeaconConfig{}, err
	}
	for _, existing := range r.beacons {
		if existing.ID == b.ID {
			return engine.BeaconConfig{}, fmt.Errorf("%w: duplicate id %q", engine.ErrInvalidBeacon, b.ID)
		}
	}
	r.beacons = append(r.beacons, b)
	return b, nil
}

// Update replaces the beacon with the given id, keeping the id stable.
func (r *Registry) Update(id string, b engine.BeaconConfig) (engine.BeaconConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.beacons {
		if existing.ID != id {
			continue
		}
		b.ID = id
		if b.Name == "" {
			b.Name = existing.Name
		}
		if b.Color == "" {
			b.Color = existing.Color
		}
		if err := b.Validate(); err != nil {
			return engine.BeaconConfig{}, err
		}
		r.beacons[i] = b
		return b, nil
	}
	return engine.BeaconConfig{}, fmt.Errorf("%w: %s", ErrBeaconNotFound, id)
}

// Remove deletes the beacon with the given id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.beacons {
		if existing.ID != id {
			continue
		}
		r.beacons = append(r.beacons[:i], r.beacons[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBeaconNotFound, id)
}
