package core

import "github.com/signalsfoundry/maneuver-editor/model"

// NodeState is a value snapshot of a maneuver node. It never holds a
// reference to the node it was taken from.
type NodeState struct {
	DeltaV model.DeltaV
	UT     float64
}

// NewNodeState snapshots n. A nil node yields the zero state.
func NewNodeState(n ManeuverNode) NodeState {
	var s NodeState
	if n != nil {
		s.Update(n)
	}
	return s
}

// Compare reports whether n still holds exactly this vector and time.
// The comparison is exact; any host-side change, however small, counts.
func (s NodeState) Compare(n ManeuverNode) bool {
	return n.DeltaV() == s.DeltaV && n.UT() == s.UT
}

// Update overwrites the snapshot from n.
func (s *NodeState) Update(n ManeuverNode) {
	s.DeltaV = n.DeltaV()
	s.UT = n.UT()
}

// Vector returns the burn vector for writing back into a node.
func (s NodeState) Vector() model.DeltaV {
	return s.DeltaV
}

// Magnitude returns the Euclidean norm of the burn vector.
func (s NodeState) Magnitude() float64 {
	return s.DeltaV.Magnitude()
}
