package core

import "github.com/signalsfoundry/maneuver-editor/model"

// ManeuverNode is the capability set the editor needs from a host-owned
// maneuver node. The host may mutate the node between ticks; the editor
// reads and writes it but never owns or destroys it.
type ManeuverNode interface {
	DeltaV() model.DeltaV
	UT() float64
	SetDeltaV(dv model.DeltaV)
	SetUT(ut float64)

	// Gizmo returns the live direct-manipulation handle attached to the
	// node, or nil when none is shown.
	Gizmo() Gizmo

	// OnUpdated asks the host to recompute the trajectory that results
	// from the given burn.
	OnUpdated(dv model.DeltaV, ut float64)

	// Patch returns the trajectory patch the node sits on, or nil.
	Patch() Patch
}

// Gizmo mirrors a node's vector and time for interactive dragging.
type Gizmo interface {
	SetDeltaV(dv model.DeltaV)
	SetUT(ut float64)
}

// Patch is a trajectory segment. Times are seconds from the current host
// time and may be degenerate when the segment has no such apsis.
type Patch interface {
	TimeToPeriapsis() float64
	TimeToApoapsis() float64
}

// Clock reads the host's current universal time in seconds.
type Clock interface {
	UT() float64
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() float64

// UT implements Clock.
func (f ClockFunc) UT() float64 { return f() }

// EncounterLookup reports whether the trajectory resulting from a node
// reaches another body, and which one.
type EncounterLookup interface {
	FindNextEncounter(n ManeuverNode) (body string, ok bool)
}

// EncounterFunc adapts a plain function to EncounterLookup.
type EncounterFunc func(n ManeuverNode) (string, bool)

// FindNextEncounter implements EncounterLookup.
func (f EncounterFunc) FindNextEncounter(n ManeuverNode) (string, bool) { return f(n) }

type noEncounters struct{}

func (noEncounters) FindNextEncounter(ManeuverNode) (string, bool) { return "", false }
