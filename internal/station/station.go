package station

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Visual-Illusions/NewU/internal/model"
)

const (
	// MinSeparation is the minimum distance between two stations in the same world and dimension.
	MinSeparation = 50.0
	// DiscoveryRadius is how close an actor must get to a station to discover it.
	DiscoveryRadius = 10.0

	defaultOffset = 2
)

// Station is a respawn point. The placement pose is fixed at creation;
// only the discoverer set changes afterwards.
type Station struct {
	name      string
	placement model.Pose

	mu          sync.Mutex
	discoverers []string
	known       map[string]struct{}
}

// NewStation creates a station at the cell containing pose.
// An empty name gets a generated token.
func NewStation(name string, pose model.Pose) *Station {
	if name == "" {
		name = GenerateName()
	}
	placement := pose.WithCoordinates(
		float64(pose.BlockX())+0.5,
		float64(pose.BlockY())+0.1,
		float64(pose.BlockZ())+0.5,
	)
	placement.Dimension = model.ParseDimension(string(pose.Dimension))
	return &Station{
		name:      name,
		placement: placement,
		known:     make(map[string]struct{}),
	}
}

// stationFromRecord builds a station from a decoded persistence record.
func stationFromRecord(rec Record) *Station {
	pose := model.NewPose(rec.World, model.ParseDimension(string(rec.Dimension)),
		float64(rec.X), float64(rec.Y), float64(rec.Z))
	st := NewStation(rec.Name, pose)
	for _, id := range rec.Discoverers {
		if id != "" {
			st.AddDiscoverer(id)
		}
	}
	return st
}

// GenerateName returns a short random station token.
func GenerateName() string {
	return "station-" + uuid.NewString()[:8]
}

// Name returns the station identity.
func (s *Station) Name() string { return s.name }

// Placement returns the cell-centered placement pose.
func (s *Station) Placement() model.Pose { return s.placement }

// AddDiscoverer records actorID. Returns true if it was not already recorded.
func (s *Station) AddDiscoverer(actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(actorID)
}

func (s *Station) addLocked(actorID string) bool {
	if _, ok := s.known[actorID]; ok {
		return false
	}
	s.known[actorID] = struct{}{}
	s.discoverers = append(s.discoverers, actorID)
	return true
}

// HasDiscovered reports whether actorID knows this station. An actor within
// DiscoveryRadius that is not yet recorded is recorded by this call.
func (s *Station) HasDiscovered(actorID string, pose model.Pose) bool {
	ok, _ := s.discover(actorID, pose)
	return ok
}

// discover is HasDiscovered that also reports whether the actor was newly recorded.
func (s *Station) discover(actorID string, pose model.Pose) (ok, added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.known[actorID]; known {
		return true, false
	}
	if s.DistanceFrom(pose) <= DiscoveryRadius {
		return true, s.addLocked(actorID)
	}
	return false, false
}

// IsDiscoverer is the read-only discovery check.
func (s *Station) IsDiscoverer(actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.known[actorID]
	return ok
}

// Discoverers returns a copy of the discoverer list in insertion order.
func (s *Station) Discoverers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.discoverers)
}

// DistanceFrom returns the distance to pose, or model.Unreachable for another world or dimension.
func (s *Station) DistanceFrom(pose model.Pose) float64 {
	return s.placement.Distance(pose)
}

// RespawnPose jitters the placement on X and Z. Each axis draws r from rnd:
// r in (0.3, 0.7) gives an offset of floor(r*10), anything else gives 2.
func (s *Station) RespawnPose(rnd func() float64) model.Pose {
	p := s.placement
	p.X = float64(s.placement.BlockX()+respawnOffset(rnd())) + 0.5
	p.Z = float64(s.placement.BlockZ()+respawnOffset(rnd())) + 0.5
	return p
}

func respawnOffset(r float64) int {
	if r > 0.3 && r < 0.7 {
		return int(math.Floor(r * 10))
	}
	return defaultOffset
}

// Coordinates formats the placement for chat output.
func (s *Station) Coordinates() string {
	return formatCoordinates(s.placement)
}

func formatCoordinates(p model.Pose) string {
	return fmt.Sprintf("X:%.2f;Y:%.2f;Z:%.2f", p.X, p.Y, p.Z)
}

func (s *Station) snapshot() Snapshot {
	return Snapshot{
		Name:        s.name,
		Placement:   s.placement,
		Discoverers: s.Discoverers(),
	}
}

func (s *Station) record() Record {
	return Record{
		Name:        s.name,
		World:       s.placement.World,
		Dimension:   s.placement.Dimension,
		X:           s.placement.BlockX(),
		Y:           s.placement.BlockY(),
		Z:           s.placement.BlockZ(),
		Discoverers: s.Discoverers(),
	}
}

// Snapshot is a detached copy of a station handed to callers outside the registry.
type Snapshot struct {
	Name        string     `json:"name"`
	Placement   model.Pose `json:"placement"`
	Discoverers []string   `json:"discoverers"`
}

// Coordinates formats the placement for chat output.
func (s Snapshot) Coordinates() string {
	return formatCoordinates(s.Placement)
}

// Record is the persisted form of a station: block coordinates only.
type Record struct {
	Name        string
	World       string
	Dimension   model.Dimension
	X, Y, Z     int
	Discoverers []string
}
