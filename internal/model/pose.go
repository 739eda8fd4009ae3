package model

import (
	"encoding/json"
	"math"
	"strings"
)

// Dimension identifies a layer of a world.
type Dimension string

const (
	DimensionNormal Dimension = "NORMAL"
	DimensionNether Dimension = "NETHER"
	DimensionEnd    Dimension = "END"
)

// ParseDimension normalizes a dimension name. Unknown names are kept as given (upper-cased)
// so files written by newer hosts still load.
func ParseDimension(name string) Dimension {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return DimensionNormal
	}
	return Dimension(name)
}

// UnmarshalJSON normalizes the dimension name sent by a host.
func (d *Dimension) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	*d = ParseDimension(name)
	return nil
}

// Unreachable is the distance between poses in different worlds or dimensions.
const Unreachable = math.MaxFloat64

// Pose is a position plus orientation in a world.
// Value type, passed by value.
type Pose struct {
	World     string    `json:"world"`
	Dimension Dimension `json:"dimension"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Yaw       float32   `json:"yaw"`
	Pitch     float32   `json:"pitch"`
}

// NewPose creates a Pose with zero orientation.
func NewPose(world string, dim Dimension, x, y, z float64) Pose {
	return Pose{World: world, Dimension: dim, X: x, Y: y, Z: z}
}

// WithCoordinates returns a copy with new coordinates (immutable pattern).
func (p Pose) WithCoordinates(x, y, z float64) Pose {
	p.X = x
	p.Y = y
	p.Z = z
	return p
}

// WithRotation returns a copy with new orientation.
func (p Pose) WithRotation(yaw, pitch float32) Pose {
	p.Yaw = yaw
	p.Pitch = pitch
	return p
}

// SameSpace reports whether both poses are in the same world and dimension.
// Dimension names are compared after ParseDimension.
func (p Pose) SameSpace(other Pose) bool {
	return p.World == other.World && ParseDimension(string(p.Dimension)) == ParseDimension(string(other.Dimension))
}

// Distance returns the Euclidean distance over X/Y/Z, or Unreachable when
// the poses are not in the same world and dimension.
func (p Pose) Distance(other Pose) float64 {
	if !p.SameSpace(other) {
		return Unreachable
	}
	return math.Sqrt(p.DistanceSquared(other))
}

// DistanceSquared ignores world and dimension.
func (p Pose) DistanceSquared(other Pose) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// BlockX returns the cell index containing X.
func (p Pose) BlockX() int { return int(math.Floor(p.X)) }

// BlockY returns the cell index containing Y.
func (p Pose) BlockY() int { return int(math.Floor(p.Y)) }

// BlockZ returns the cell index containing Z.
func (p Pose) BlockZ() int { return int(math.Floor(p.Z)) }
