package model

import "math"

// DeltaV is a velocity change expressed in a maneuver's local orbit frame,
// in metres per second.
type DeltaV struct {
	Radial   float64
	Normal   float64
	Prograde float64
}

// Magnitude returns the Euclidean norm of the vector without overflowing
// on large components.
func (d DeltaV) Magnitude() float64 {
	return math.Hypot(math.Hypot(d.Radial, d.Normal), d.Prograde)
}

// Add returns d + other.
func (d DeltaV) Add(other DeltaV) DeltaV {
	return DeltaV{
		Radial:   d.Radial + other.Radial,
		Normal:   d.Normal + other.Normal,
		Prograde: d.Prograde + other.Prograde,
	}
}

// NodeDefinition is the persisted shape of a planned maneuver: an id, the
// burn vector and the scheduled universal time in seconds.
type NodeDefinition struct {
	ID     string
	DeltaV DeltaV
	UT     float64
}
