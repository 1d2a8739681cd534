package host

import (
	"cmp"
	"slices"

	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/model"
	"github.com/signalsfoundry/maneuver-editor/orbit"
)

// trajectoryNode is a node that can report the orbit after its burn.
type trajectoryNode interface {
	Trajectory() orbit.Elements
}

// Encounters finds the first body whose sphere of influence the
// post-burn trajectory crosses. Bodies are checked innermost first.
type Encounters struct {
	bodies []model.Body
}

// NewEncounters constructs a lookup over bodies.
func NewEncounters(bodies []model.Body) *Encounters {
	sorted := slices.Clone(bodies)
	slices.SortStableFunc(sorted, func(a, b model.Body) int {
		return cmp.Compare(a.OrbitRadius, b.OrbitRadius)
	})
	return &Encounters{bodies: sorted}
}

// FindNextEncounter implements core.EncounterLookup. Nodes that cannot
// report a trajectory never encounter anything.
func (e *Encounters) FindNextEncounter(n core.ManeuverNode) (string, bool) {
	tn, ok := n.(trajectoryNode)
	if !ok {
		return "", false
	}
	traj := tn.Trajectory()
	for _, b := range e.bodies {
		lo, hi := b.OrbitRadius-b.SOIRadius, b.OrbitRadius+b.SOIRadius
		if traj.PeriapsisRadius <= hi && traj.ApoapsisRadius >= lo {
			return b.Name, true
		}
	}
	return "", false
}
