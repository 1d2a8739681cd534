package orbit

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Propagator returns a vessel's inertial state at a universal time given
// in seconds.
type Propagator interface {
	StateAt(ut float64) (r, v Vec3)
}

// SGP4Propagator propagates a TLE with SGP4. Universal time zero maps to
// Epoch.
type SGP4Propagator struct {
	sat   satellite.Satellite
	Epoch time.Time
}

// NewSGP4Propagator constructs a propagator from TLE lines.
func NewSGP4Propagator(line1, line2 string, epoch time.Time) *SGP4Propagator {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &SGP4Propagator{sat: sat, Epoch: epoch.UTC()}
}

// MaxPropagationSpan bounds |ut| for SGP4Propagator. Beyond it the offset
// from Epoch would overflow time.Duration.
const MaxPropagationSpan = 200 * 365.25 * 86400.0

// StateAt returns the ECI position and velocity at ut. go-satellite works
// in whole seconds; sub-second UT is truncated and |ut| is clamped to
// MaxPropagationSpan.
func (p *SGP4Propagator) StateAt(ut float64) (Vec3, Vec3) {
	t := p.Epoch.Add(time.Duration(clampSpan(ut) * float64(time.Second)))
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, vel := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	return Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}, Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}
}

func clampSpan(ut float64) float64 {
	switch {
	case math.IsNaN(ut):
		return 0
	case ut > MaxPropagationSpan:
		return MaxPropagationSpan
	case ut < -MaxPropagationSpan:
		return -MaxPropagationSpan
	}
	return ut
}

// FixedPropagator reports the same state at every time. It stands in for
// a real propagator where only the shape of the orbit matters.
type FixedPropagator struct {
	R, V Vec3
}

// StateAt implements Propagator.
func (p FixedPropagator) StateAt(float64) (Vec3, Vec3) { return p.R, p.V }

// CircularState returns a state on a circular equatorial orbit of the
// given radius in kilometres.
func CircularState(radius float64) (Vec3, Vec3) {
	speed := math.Sqrt(MuEarth / radius)
	return Vec3{X: radius}, Vec3{Y: speed}
}
