package host

import (
	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/model"
	"github.com/signalsfoundry/maneuver-editor/orbit"
)

// Node is the host's maneuver node. It implements core.ManeuverNode and
// carries the trajectory that results from its burn.
type Node struct {
	id    string
	dv    model.DeltaV
	ut    float64
	gizmo *Gizmo

	prop  orbit.Propagator
	clock core.Clock

	trajectory orbit.Elements
	updates    int
}

// NewNode constructs a node from its definition and computes the
// resulting trajectory.
func NewNode(def model.NodeDefinition, prop orbit.Propagator, clock core.Clock) *Node {
	n := &Node{
		id:    def.ID,
		prop:  prop,
		clock: clock,
	}
	n.apply(def.DeltaV, def.UT)
	return n
}

// ID returns the node's identifier.
func (n *Node) ID() string { return n.id }

// DeltaV implements core.ManeuverNode.
func (n *Node) DeltaV() model.DeltaV { return n.dv }

// UT implements core.ManeuverNode.
func (n *Node) UT() float64 { return n.ut }

// SetDeltaV implements core.ManeuverNode.
func (n *Node) SetDeltaV(dv model.DeltaV) { n.dv = dv }

// SetUT implements core.ManeuverNode.
func (n *Node) SetUT(ut float64) { n.ut = ut }

// Gizmo implements core.ManeuverNode. A hidden gizmo is reported as a nil
// interface, not a typed nil.
func (n *Node) Gizmo() core.Gizmo {
	if n.gizmo == nil {
		return nil
	}
	return n.gizmo
}

// ShowGizmo attaches a direct-manipulation handle mirroring the node.
func (n *Node) ShowGizmo() *Gizmo {
	if n.gizmo == nil {
		n.gizmo = &Gizmo{node: n, dv: n.dv, ut: n.ut}
	}
	return n.gizmo
}

// HideGizmo detaches the handle.
func (n *Node) HideGizmo() { n.gizmo = nil }

// AttachedGizmo returns the concrete handle, or nil.
func (n *Node) AttachedGizmo() *Gizmo { return n.gizmo }

// OnUpdated implements core.ManeuverNode by recomputing the trajectory.
func (n *Node) OnUpdated(dv model.DeltaV, ut float64) {
	n.apply(dv, ut)
}

// Patch implements core.ManeuverNode. The patch is the orbit the vessel
// is on at the current host time, before any burn.
func (n *Node) Patch() core.Patch {
	if n.prop == nil || n.clock == nil {
		return nil
	}
	r, v := n.prop.StateAt(n.clock.UT())
	return orbit.ElementsFromState(r, v)
}

// Trajectory returns the orbit after the burn.
func (n *Node) Trajectory() orbit.Elements { return n.trajectory }

// Updates counts how many times the trajectory was recomputed.
func (n *Node) Updates() int { return n.updates }

func (n *Node) apply(dv model.DeltaV, ut float64) {
	n.dv = dv
	n.ut = ut
	if n.prop != nil {
		r, v := n.prop.StateAt(ut)
		n.trajectory = orbit.ElementsFromState(r, orbit.ApplyManeuver(r, v, dv))
	}
	n.updates++
}

// Gizmo is the on-screen handle of a node. Dragging it moves the node
// directly, bypassing the editor.
type Gizmo struct {
	node *Node
	dv   model.DeltaV
	ut   float64
}

// SetDeltaV implements core.Gizmo.
func (g *Gizmo) SetDeltaV(dv model.DeltaV) { g.dv = dv }

// SetUT implements core.Gizmo.
func (g *Gizmo) SetUT(ut float64) { g.ut = ut }

// DeltaV returns the mirrored vector.
func (g *Gizmo) DeltaV() model.DeltaV { return g.dv }

// UT returns the mirrored time.
func (g *Gizmo) UT() float64 { return g.ut }

// Drag moves the handle and the node it is attached to.
func (g *Gizmo) Drag(dv model.DeltaV, ut float64) {
	g.dv = dv
	g.ut = ut
	g.node.apply(dv, ut)
}
