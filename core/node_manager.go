package core

import (
	"context"

	"github.com/signalsfoundry/maneuver-editor/internal/logging"
)

// ReconcileState is the decision a NodeManager takes on a tick.
type ReconcileState int

const (
	// ReconcileIdle: the node is unchanged and there are no local edits.
	ReconcileIdle ReconcileState = iota
	// ReconcileFlush: the node is unchanged and local edits are written to it.
	ReconcileFlush
	// ReconcileExternal: something else moved the node; its values replace
	// the local state and any unflushed edits are dropped.
	ReconcileExternal
)

func (s ReconcileState) String() string {
	switch s {
	case ReconcileIdle:
		return "idle"
	case ReconcileFlush:
		return "flush"
	case ReconcileExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Observer receives editor events, typically to record metrics.
type Observer interface {
	ObserveReconcile(state ReconcileState)
	ObserveField(field Field, state FieldState)
	ObserveChainAdvance()
}

type noopObserver struct{}

func (noopObserver) ObserveReconcile(ReconcileState) {}
func (noopObserver) ObserveField(Field, FieldState)  {}
func (noopObserver) ObserveChainAdvance()            {}

// Option configures a NodeManager.
type Option func(*NodeManager)

// WithEncounterLookup sets the lookup run on construction and on NextState.
func WithEncounterLookup(l EncounterLookup) Option {
	return func(m *NodeManager) {
		if l != nil {
			m.encounters = l
		}
	}
}

// WithLogger sets the logger used for reconciliation events.
func WithLogger(l logging.Logger) Option {
	return func(m *NodeManager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithObserver sets the observer notified of reconciliation and field events.
func WithObserver(o Observer) Option {
	return func(m *NodeManager) {
		if o != nil {
			m.observer = o
		}
	}
}

// NodeManager keeps a local edit buffer for one host-owned maneuver node
// and reconciles it with the node once per tick.
//
// The manager is not safe for concurrent use. The host calls UpdateNode
// once per tick and field edits arrive on the same goroutine between ticks.
type NodeManager struct {
	curState     NodeState // local edits
	curNodeState NodeState // node as last observed

	node     ManeuverNode
	nextNode ManeuverNode

	changed       bool
	encounter     bool
	encounterBody string
	last          ReconcileState

	fields [4]*FieldBuffer

	encounters EncounterLookup
	log        logging.Logger
	observer   Observer
	opts       []Option
}

// NewNodeManager wraps n. Both the local state and the observed snapshot
// start equal to the node. A nil node gives an empty manager.
func NewNodeManager(n ManeuverNode, opts ...Option) *NodeManager {
	m := &NodeManager{
		node:       n,
		encounters: noEncounters{},
		log:        logging.Noop(),
		observer:   noopObserver{},
		opts:       opts,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.fields[FieldRadial] = newFieldBuffer(m, FieldRadial, &m.curState.DeltaV.Radial)
	m.fields[FieldNormal] = newFieldBuffer(m, FieldNormal, &m.curState.DeltaV.Normal)
	m.fields[FieldPrograde] = newFieldBuffer(m, FieldPrograde, &m.curState.DeltaV.Prograde)
	m.fields[FieldTime] = newFieldBuffer(m, FieldTime, &m.curState.UT)

	if n != nil {
		m.curState.Update(n)
		m.curNodeState.Update(n)
		m.refreshFields()
		m.lookupEncounter()
	}
	return m
}

// HasNode reports whether a node is wrapped.
func (m *NodeManager) HasNode() bool {
	return m.node != nil
}

// Node returns the wrapped node, or nil.
func (m *NodeManager) Node() ManeuverNode { return m.node }

// NextNode returns the chain successor, or nil.
func (m *NodeManager) NextNode() ManeuverNode { return m.nextNode }

// SetNextNode records the node that follows this one in the chain.
func (m *NodeManager) SetNextNode(n ManeuverNode) { m.nextNode = n }

// Changed reports whether local edits are waiting to be flushed.
func (m *NodeManager) Changed() bool { return m.changed }

// Encounter reports the cached result of the encounter lookup.
func (m *NodeManager) Encounter() bool { return m.encounter }

// EncounterBody names the body found by the last lookup, if any.
func (m *NodeManager) EncounterBody() string { return m.encounterBody }

// LastReconcile returns the decision taken by the most recent UpdateNode.
func (m *NodeManager) LastReconcile() ReconcileState { return m.last }

// State returns the local edit buffer.
func (m *NodeManager) State() NodeState { return m.curState }

// ObservedState returns the node as last observed.
func (m *NodeManager) ObservedState() NodeState { return m.curNodeState }

// CurrentUT returns the locally edited burn time.
func (m *NodeManager) CurrentUT() float64 { return m.curState.UT }

// CurrentMagnitude returns the norm of the locally edited burn vector.
func (m *NodeManager) CurrentMagnitude() float64 { return m.curState.Magnitude() }

// Field returns the buffer for f, or nil if f is not one of the four
// editable slots.
func (m *NodeManager) Field(f Field) *FieldBuffer {
	if !f.valid() {
		return nil
	}
	return m.fields[f]
}

// SetField applies user text to f. Unknown fields are ignored.
func (m *NodeManager) SetField(f Field, text string) {
	if b := m.Field(f); b != nil {
		b.Set(text)
	}
}

// AddField increments f by delta. Unknown fields are ignored.
func (m *NodeManager) AddField(f Field, delta float64) {
	if b := m.Field(f); b != nil {
		b.Add(delta)
	}
}

// SetUT sets the burn time directly.
func (m *NodeManager) SetUT(ut float64) { m.fields[FieldTime].Assign(ut) }

// SetPeriapsis schedules the burn at the next periapsis of the node's
// current patch.
//
// When the patch has no periapsis the host reports a degenerate time and
// it is used as is; later patches are not searched.
func (m *NodeManager) SetPeriapsis(clock Clock) {
	if p := m.patch(); p != nil {
		m.SetUT(clock.UT() + p.TimeToPeriapsis())
	}
}

// SetApoapsis schedules the burn at the next apoapsis of the node's
// current patch. It has the same limitation as SetPeriapsis.
func (m *NodeManager) SetApoapsis(clock Clock) {
	if p := m.patch(); p != nil {
		m.SetUT(clock.UT() + p.TimeToApoapsis())
	}
}

func (m *NodeManager) patch() Patch {
	if m.node == nil {
		return nil
	}
	return m.node.Patch()
}

// Classify returns the decision UpdateNode would take now.
func (m *NodeManager) Classify() ReconcileState {
	if m.node == nil {
		return ReconcileIdle
	}
	if !m.curNodeState.Compare(m.node) {
		return ReconcileExternal
	}
	if m.changed {
		return ReconcileFlush
	}
	return ReconcileIdle
}

// UpdateNode reconciles the local state with the node. It must run every
// tick. A change on the node side always wins; local edits are written
// to the node only on a tick where the node was found untouched.
func (m *NodeManager) UpdateNode() ReconcileState {
	state := m.Classify()
	switch state {
	case ReconcileFlush:
		dv, ut := m.curState.Vector(), m.curState.UT
		m.node.SetDeltaV(dv)
		m.node.SetUT(ut)
		if g := m.node.Gizmo(); g != nil {
			g.SetDeltaV(dv)
			g.SetUT(ut)
		}
		m.node.OnUpdated(dv, ut)
		m.curNodeState.Update(m.node)
		m.changed = false
		// Field texts are left alone so a pending "3." in another field survives.

		m.log.Debug(context.Background(), "flushed local edits to node",
			logging.Float("ut", ut),
			logging.Float("dv", dv.Magnitude()),
		)
	case ReconcileExternal:
		dropped := m.changed
		m.curNodeState.Update(m.node)
		m.curState.Update(m.node)
		m.refreshFields()
		m.changed = false

		m.log.Debug(context.Background(), "node changed externally",
			logging.Float("ut", m.curState.UT),
			logging.Float("dv", m.curState.Magnitude()),
			logging.Bool("dropped_local_edits", dropped),
		)
	}
	m.last = state
	m.observer.ObserveReconcile(state)
	return state
}

// NextState advances to the next node in the chain. With a successor it
// returns a new manager wrapping it; otherwise it refreshes the encounter
// lookup and returns m.
func (m *NodeManager) NextState() *NodeManager {
	if m.nextNode != nil {
		m.log.Debug(context.Background(), "advancing to next node in chain")
		m.observer.ObserveChainAdvance()
		return NewNodeManager(m.nextNode, m.opts...)
	}
	m.RefreshEncounter()
	return m
}

// RefreshEncounter re-runs the encounter lookup on the wrapped node.
func (m *NodeManager) RefreshEncounter() {
	m.lookupEncounter()
}

func (m *NodeManager) lookupEncounter() {
	if m.node == nil {
		return
	}
	m.encounterBody, m.encounter = m.encounters.FindNextEncounter(m.node)
	if !m.encounter {
		m.encounterBody = ""
	}
}

func (m *NodeManager) refreshFields() {
	for _, b := range m.fields {
		b.refresh()
	}
}

func (m *NodeManager) markChanged() { m.changed = true }

func (m *NodeManager) observeField(f Field, s FieldState) { m.observer.ObserveField(f, s) }
