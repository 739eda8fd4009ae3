package station

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Visual-Illusions/NewU/internal/model"
)

var (
	// ErrTooClose is returned by Add when another station is within MinSeparation.
	ErrTooClose = errors.New("too close to another station")
	// ErrNameTaken is returned by Add when the name is already used.
	ErrNameTaken = errors.New("station name already in use")
	// ErrNotFound is returned when no station matches a remove request.
	ErrNotFound = errors.New("station not found")
)

// Store persists the full station set.
type Store interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// Recorder receives registry metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	SetStations(n int)
	IncDiscoveries()
	ObserveSave(d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) SetStations(int)                  {}
func (nopRecorder) IncDiscoveries()                  {}
func (nopRecorder) ObserveSave(time.Duration, error) {}

// Option configures a Registry.
type Option func(*Registry)

// WithRand sets the source used for respawn jitter.
func WithRand(rnd func() float64) Option {
	return func(r *Registry) { r.rnd = rnd }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// Registry owns all stations. Structural changes hold the write lock across
// the separation check and the mutation; every change is followed by a
// synchronous save of the whole set.
type Registry struct {
	store    Store
	rnd      func() float64
	recorder Recorder

	mu       sync.RWMutex
	stations []*Station

	saveMu sync.Mutex
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		rnd:      rand.Float64,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the registry contents with what the store holds. On a decode
// error the records parsed before the error are still installed and the
// error is returned for logging.
func (r *Registry) Load() error {
	records, err := r.store.Load()

	r.mu.Lock()
	r.stations = make([]*Station, 0, len(records))
	names := make(map[string]struct{}, len(records))
	for _, rec := range records {
		st := stationFromRecord(rec)
		if _, dup := names[st.name]; dup {
			renamed := GenerateName()
			slog.Warn("duplicate station name in store, renaming",
				"name", st.name,
				"renamed", renamed)
			st.name = renamed
		}
		names[st.name] = struct{}{}
		r.stations = append(r.stations, st)
	}
	n := len(r.stations)
	r.mu.Unlock()

	r.recorder.SetStations(n)
	slog.Info("stations loaded", "count", n)

	if err != nil {
		return fmt.Errorf("loading stations: %w", err)
	}
	return nil
}

// Add inserts st unless it is within MinSeparation of an existing station
// or its name is taken. A failed save is logged, not returned.
func (r *Registry) Add(st *Station) error {
	r.mu.Lock()
	for _, existing := range r.stations {
		if existing.name == st.name {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrNameTaken, st.name)
		}
		if d := existing.DistanceFrom(st.placement); d < MinSeparation {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s is %.1f away", ErrTooClose, existing.name, d)
		}
	}
	r.stations = append(r.stations, st)
	n := len(r.stations)
	r.mu.Unlock()

	r.recorder.SetStations(n)
	slog.Info("station added",
		"name", st.name,
		"world", st.placement.World,
		"dimension", st.placement.Dimension,
		"coords", st.Coordinates())

	r.persist("add")
	return nil
}

// Remove deletes the station called name.
func (r *Registry) Remove(name string) (Snapshot, error) {
	r.mu.Lock()
	idx := -1
	for i, st := range r.stations {
		if st.name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	removed := r.removeLocked(idx)
	r.mu.Unlock()

	r.afterRemove(removed)
	return removed.snapshot(), nil
}

// RemoveNearest deletes the station nearest to pose. Lookup and removal
// happen under one lock so a concurrent change cannot slip in between.
func (r *Registry) RemoveNearest(pose model.Pose) (Snapshot, error) {
	r.mu.Lock()
	idx := r.nearestLocked(pose)
	if idx < 0 {
		r.mu.Unlock()
		return Snapshot{}, ErrNotFound
	}
	removed := r.removeLocked(idx)
	r.mu.Unlock()

	r.afterRemove(removed)
	return removed.snapshot(), nil
}

func (r *Registry) removeLocked(idx int) *Station {
	st := r.stations[idx]
	r.stations = append(r.stations[:idx], r.stations[idx+1:]...)
	return st
}

func (r *Registry) afterRemove(st *Station) {
	r.recorder.SetStations(r.Len())
	slog.Info("station removed", "name", st.name, "coords", st.Coordinates())
	r.persist("remove")
}

// Nearest returns the station closest to pose. Stations in another world or
// dimension are never returned. Ties go to the earliest inserted station.
func (r *Registry) Nearest(pose model.Pose) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.nearestLocked(pose)
	if idx < 0 {
		return Snapshot{}, false
	}
	return r.stations[idx].snapshot(), true
}

func (r *Registry) nearestLocked(pose model.Pose) int {
	best := -1
	bestDist := model.Unreachable
	for i, st := range r.stations {
		if d := st.DistanceFrom(pose); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// NearestDiscoveredRespawn picks the closest station actorID has discovered
// (standing within DiscoveryRadius of one counts) and returns its jittered
// respawn pose, or fallback when there is none.
func (r *Registry) NearestDiscoveredRespawn(actorID string, pose, fallback model.Pose) model.Pose {
	if p, ok := r.DiscoveredRespawn(actorID, pose); ok {
		return p
	}
	return fallback
}

// DiscoveredRespawn is NearestDiscoveredRespawn without a fallback: ok is
// false when actorID has discovered no reachable station.
func (r *Registry) DiscoveredRespawn(actorID string, pose model.Pose) (model.Pose, bool) {
	r.mu.RLock()
	var (
		best     *Station
		bestDist = model.Unreachable
		recorded bool
	)
	for _, st := range r.stations {
		ok, added := st.discover(actorID, pose)
		if added {
			recorded = true
		}
		if !ok {
			continue
		}
		if d := st.DistanceFrom(pose); d < bestDist {
			best = st
			bestDist = d
		}
	}
	r.mu.RUnlock()

	if recorded {
		r.recorder.IncDiscoveries()
		r.persist("discover")
	}
	if best == nil {
		return model.Pose{}, false
	}
	return best.RespawnPose(r.rnd), true
}

// Discover handles actor movement: if the nearest station is within
// DiscoveryRadius and actorID is not yet recorded, it is recorded and saved.
// Returns the station and true only for a new discovery.
func (r *Registry) Discover(actorID string, pose model.Pose) (Snapshot, bool) {
	r.mu.RLock()
	idx := r.nearestLocked(pose)
	if idx < 0 {
		r.mu.RUnlock()
		return Snapshot{}, false
	}
	st := r.stations[idx]
	added := false
	if st.DistanceFrom(pose) <= DiscoveryRadius && !st.IsDiscoverer(actorID) {
		added = st.AddDiscoverer(actorID)
	}
	r.mu.RUnlock()

	if !added {
		return Snapshot{}, false
	}
	r.recorder.IncDiscoveries()
	slog.Debug("station discovered", "station", st.name, "actor", actorID)
	r.persist("discover")
	return st.snapshot(), true
}

// Stations returns snapshots of all stations in insertion order.
func (r *Registry) Stations() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.stations))
	for _, st := range r.stations {
		out = append(out, st.snapshot())
	}
	return out
}

// Len returns the number of stations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stations)
}

// Save writes the full station set. Saves never interleave; the records are
// captured inside the save lock so the last save always carries the latest state.
func (r *Registry) Save() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	records := r.records()
	start := time.Now()
	err := r.store.Save(records)
	r.recorder.ObserveSave(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("saving %d stations: %w", len(records), err)
	}
	return nil
}

func (r *Registry) records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.stations))
	for _, st := range r.stations {
		out = append(out, st.record())
	}
	return out
}

func (r *Registry) persist(op string) {
	if err := r.Save(); err != nil {
		slog.Error("failed to store stations", "op", op, "error", err)
	}
}
