package orbit

import (
	"math"

	"github.com/signalsfoundry/maneuver-editor/model"
)

// MuEarth is the WGS72 gravitational parameter in km³/s², matching the
// constants go-satellite propagates with.
const MuEarth = 398600.8

// circularTolerance is the eccentricity below which the periapsis
// direction is undefined and the vessel is treated as being at periapsis.
const circularTolerance = 1e-9

// Elements describes the conic a state vector lies on, together with the
// vessel's position on it.
type Elements struct {
	SemiMajorAxis   float64 // km; negative for hyperbolic orbits
	Eccentricity    float64
	PeriapsisRadius float64 // km
	ApoapsisRadius  float64 // km; +Inf when the orbit escapes
	MeanMotion      float64 // rad/s
	MeanAnomaly     float64 // rad
}

// ElementsFromState derives orbital elements from an inertial position
// (km) and velocity (km/s) around the Earth.
func ElementsFromState(r, v Vec3) Elements {
	rn := r.Norm()
	h := r.Cross(v)
	eVec := v.Cross(h).Scale(1 / MuEarth).Sub(r.Scale(1 / rn))
	e := eVec.Norm()
	energy := v.Dot(v)/2 - MuEarth/rn

	p := h.Dot(h) / MuEarth
	el := Elements{
		Eccentricity:    e,
		PeriapsisRadius: p / (1 + e),
		ApoapsisRadius:  math.Inf(1),
	}
	if energy < 0 && e < 1 {
		el.ApoapsisRadius = p / (1 - e)
	}
	if energy != 0 {
		el.SemiMajorAxis = -MuEarth / (2 * energy)
		el.MeanMotion = math.Sqrt(MuEarth / math.Abs(el.SemiMajorAxis*el.SemiMajorAxis*el.SemiMajorAxis))
	} else {
		el.SemiMajorAxis = math.Inf(1)
	}

	nu := 0.0
	if e > circularTolerance {
		cosNu := eVec.Dot(r) / (e * rn)
		nu = math.Acos(math.Max(-1, math.Min(1, cosNu)))
		if r.Dot(v) < 0 {
			nu = -nu
		}
	}

	switch {
	case el.Closed():
		ea := 2 * math.Atan2(math.Sqrt(1-e)*math.Sin(nu/2), math.Sqrt(1+e)*math.Cos(nu/2))
		m := math.Mod(ea-e*math.Sin(ea), 2*math.Pi)
		if m < 0 {
			m += 2 * math.Pi
		}
		el.MeanAnomaly = m
	case e > 1:
		f := 2 * math.Atanh(math.Sqrt((e-1)/(e+1))*math.Tan(nu/2))
		el.MeanAnomaly = e*math.Sinh(f) - f
	}
	return el
}

// Closed reports whether the orbit is an ellipse.
func (el Elements) Closed() bool {
	return !math.IsInf(el.ApoapsisRadius, 1)
}

// Period returns the orbital period in seconds, or 0 for open orbits.
func (el Elements) Period() float64 {
	if !el.Closed() || el.MeanMotion == 0 {
		return 0
	}
	return 2 * math.Pi / el.MeanMotion
}

// TimeToPeriapsis returns the seconds until the next periapsis passage.
// On an open orbit that has already passed periapsis the result is
// negative.
func (el Elements) TimeToPeriapsis() float64 {
	if el.MeanMotion == 0 {
		return 0
	}
	if el.Closed() {
		return math.Mod(2*math.Pi-el.MeanAnomaly, 2*math.Pi) / el.MeanMotion
	}
	return -el.MeanAnomaly / el.MeanMotion
}

// TimeToApoapsis returns the seconds until the next apoapsis passage.
// Open orbits have no apoapsis and report 0.
func (el Elements) TimeToApoapsis() float64 {
	if !el.Closed() || el.MeanMotion == 0 {
		return 0
	}
	t := (math.Pi - el.MeanAnomaly) / el.MeanMotion
	if t < 0 {
		t += el.Period()
	}
	return t
}

// ApplyManeuver returns the velocity after a burn given in the orbit
// frame at r, v. Burn components are in m/s.
func ApplyManeuver(r, v Vec3, dv model.DeltaV) Vec3 {
	prograde := v.Unit()
	normal := r.Cross(v).Unit()
	radial := prograde.Cross(normal)

	const mpsToKmps = 1.0 / 1000.0
	burn := prograde.Scale(dv.Prograde * mpsToKmps).
		Add(normal.Scale(dv.Normal * mpsToKmps)).
		Add(radial.Scale(dv.Radial * mpsToKmps))
	return v.Add(burn)
}
