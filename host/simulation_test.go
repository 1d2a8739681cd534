package host

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/model"
	"github.com/signalsfoundry/maneuver-editor/orbit"
)

var moon = model.Body{Name: "Moon", OrbitRadius: 384400, SOIRadius: 66100}

type manualClock struct{ ut float64 }

func (c *manualClock) UT() float64 { return c.ut }

type countingMetrics struct {
	reconciles map[core.ReconcileState]int
	fields     int
	advances   int
	executed   int
	planNodes  int
}

func (m *countingMetrics) ObserveReconcile(s core.ReconcileState) {
	if m.reconciles == nil {
		m.reconciles = make(map[core.ReconcileState]int)
	}
	m.reconciles[s]++
}

func (m *countingMetrics) ObserveField(core.Field, core.FieldState) { m.fields++ }
func (m *countingMetrics) ObserveChainAdvance()                     { m.advances++ }
func (m *countingMetrics) SetPlanNodes(n int)                       { m.planNodes = n }
func (m *countingMetrics) ObserveBurnExecuted()                     { m.executed++ }

func circularPropagator() orbit.Propagator {
	r, v := orbit.CircularState(7000)
	return orbit.FixedPropagator{R: r, V: v}
}

func newTestSimulation(t *testing.T, clock *manualClock, defs []model.NodeDefinition, opts ...SimOption) *Simulation {
	t.Helper()
	sim, err := NewSimulation(clock, circularPropagator(), []model.Body{moon}, defs, opts...)
	require.NoError(t, err)
	return sim
}

func TestNewSimulation_EditsEarliestNode(t *testing.T) {
	clock := &manualClock{}
	metrics := &countingMetrics{}
	sim := newTestSimulation(t, clock, []model.NodeDefinition{
		{ID: "late", UT: 900},
		{ID: "early", DeltaV: model.DeltaV{Prograde: 10}, UT: 300},
	}, WithMetricsRecorder(metrics))

	assert.Equal(t, "early", sim.EditedID())
	require.True(t, sim.Manager().HasNode())
	assert.Equal(t, 300.0, sim.Manager().CurrentUT())
	assert.Equal(t, sim.Node("late"), sim.Manager().NextNode())
	assert.Equal(t, 2, metrics.planNodes)

	report := sim.Tick(context.Background())
	assert.Equal(t, core.ReconcileIdle, report.Reconcile)
	assert.Equal(t, "10", report.Fields[core.FieldPrograde].Text)
	assert.True(t, report.Fields[core.FieldPrograde].Valid)
}

func TestNewSimulation_DuplicateNode(t *testing.T) {
	_, err := NewSimulation(&manualClock{}, circularPropagator(), nil, []model.NodeDefinition{
		{ID: "a", UT: 1},
		{ID: "a", UT: 2},
	})
	require.Error(t, err)
}

func TestSimulation_ScriptedEditFlushesToNode(t *testing.T) {
	clock := &manualClock{}
	sim := newTestSimulation(t, clock, []model.NodeDefinition{{ID: "n1", UT: 500}},
		WithScript([]Action{
			{At: 10, Kind: ActionSetField, Field: core.FieldPrograde, Text: "3."},
			{At: 20, Kind: ActionSetField, Field: core.FieldPrograde, Text: "3.5"},
			{At: 20, Kind: ActionAddField, Field: core.FieldNormal, Delta: -1},
		}))
	node := sim.Node("n1")
	before := node.Updates()

	clock.ut = 10
	report := sim.Tick(context.Background())
	assert.Equal(t, core.ReconcileIdle, report.Reconcile, "pending text is not flushed")
	assert.Equal(t, FieldView{Text: "3.", Valid: false}, report.Fields[core.FieldPrograde])

	clock.ut = 20
	report = sim.Tick(context.Background())
	assert.Equal(t, core.ReconcileFlush, report.Reconcile)
	assert.Equal(t, model.DeltaV{Normal: -1, Prograde: 3.5}, node.DeltaV())
	assert.Equal(t, before+1, node.Updates())
	assert.InDelta(t, math.Sqrt(3.5*3.5+1), report.Magnitude, 1e-12)
}

func TestSimulation_SameTickDragBeatsEdit(t *testing.T) {
	clock := &manualClock{}
	sim := newTestSimulation(t, clock, []model.NodeDefinition{{ID: "n1", UT: 500}},
		WithScript([]Action{
			{At: 5, Kind: ActionSetField, Field: core.FieldPrograde, Text: "42"},
			{At: 5, Kind: ActionDrag, NodeID: "n1", DeltaV: model.DeltaV{Radial: 7}, UT: 600},
		}))
	node := sim.Node("n1")

	clock.ut = 5
	report := sim.Tick(context.Background())
	assert.Equal(t, core.ReconcileExternal, report.Reconcile)
	assert.Equal(t, model.DeltaV{Radial: 7}, node.DeltaV())
	assert.Equal(t, 600.0, node.UT())
	assert.Equal(t, node.DeltaV(), report.State.DeltaV)
	assert.Equal(t, "0", report.Fields[core.FieldPrograde].Text)
	assert.False(t, sim.Manager().Changed())

	// With the gizmo now shown, a later edit is mirrored into it.
	sim.Manager().SetField(core.FieldTime, "650")
	clock.ut = 6
	report = sim.Tick(context.Background())
	assert.Equal(t, core.ReconcileFlush, report.Reconcile)
	require.NotNil(t, node.AttachedGizmo())
	assert.Equal(t, 650.0, node.AttachedGizmo().UT())
	assert.Equal(t, model.DeltaV{Radial: 7}, node.AttachedGizmo().DeltaV())
}

func TestSimulation_ExecutesBurnAndAdvancesChain(t *testing.T) {
	clock := &manualClock{}
	metrics := &countingMetrics{}
	sim := newTestSimulation(t, clock, []model.NodeDefinition{
		{ID: "a", DeltaV: model.DeltaV{Prograde: 1}, UT: 100},
		{ID: "b", DeltaV: model.DeltaV{Radial: 2}, UT: 200},
	}, WithMetricsRecorder(metrics))

	sim.Manager().SetField(core.FieldPrograde, "99") // lost when "a" burns

	clock.ut = 150
	report := sim.Tick(context.Background())
	assert.Equal(t, []string{"a"}, report.Executed)
	assert.Equal(t, "b", sim.EditedID())
	assert.Equal(t, core.NodeState{DeltaV: model.DeltaV{Radial: 2}, UT: 200}, report.State)
	assert.Equal(t, core.ReconcileIdle, report.Reconcile)
	assert.Nil(t, sim.Manager().NextNode())
	assert.Equal(t, 1, metrics.advances)
	assert.Equal(t, 1, metrics.executed)
	assert.Equal(t, 1, metrics.planNodes)

	clock.ut = 250
	report = sim.Tick(context.Background())
	assert.Equal(t, []string{"b"}, report.Executed)
	assert.False(t, sim.Manager().HasNode())
	assert.Equal(t, "", report.NodeID)
	assert.Equal(t, 0, sim.Plan.Len())
}

func TestSimulation_ExecutingUpstreamNodeKeepsEditor(t *testing.T) {
	clock := &manualClock{}
	sim := newTestSimulation(t, clock, []model.NodeDefinition{
		{ID: "a", UT: 100},
		{ID: "b", UT: 200},
	}, WithScript([]Action{{At: 10, Kind: ActionSelect, NodeID: "b"}}))

	clock.ut = 10
	sim.Tick(context.Background())
	require.Equal(t, "b", sim.EditedID())

	sim.Manager().AddField(core.FieldNormal, 5)
	clock.ut = 120
	report := sim.Tick(context.Background())
	assert.Equal(t, []string{"a"}, report.Executed)
	assert.Equal(t, "b", sim.EditedID())
	assert.Equal(t, core.ReconcileFlush, report.Reconcile)
	assert.Equal(t, 5.0, sim.Node("b").DeltaV().Normal)
}

func TestSimulation_PeriapsisAndApoapsisSnap(t *testing.T) {
	clock := &manualClock{}
	sim := newTestSimulation(t, clock, []model.NodeDefinition{{ID: "n1", UT: 5000}},
		WithScript([]Action{
			{At: 100, Kind: ActionApoapsis},
			{At: 200, Kind: ActionPeriapsis},
		}))
	period := orbit.ElementsFromState(circularPropagator().StateAt(0)).Period()

	clock.ut = 100
	sim.Tick(context.Background())
	assert.InDelta(t, 100+period/2, sim.Node("n1").UT(), 1e-6)

	clock.ut = 200
	sim.Tick(context.Background())
	assert.InDelta(t, 200, sim.Node("n1").UT(), 1e-6)
}

func TestSimulation_UnknownNodeActionsAreIgnored(t *testing.T) {
	clock := &manualClock{}
	sim := newTestSimulation(t, clock, []model.NodeDefinition{{ID: "n1", UT: 5000}},
		WithScript([]Action{
			{At: 1, Kind: ActionDrag, NodeID: "ghost"},
			{At: 1, Kind: ActionSelect, NodeID: "ghost"},
			{At: 1, Kind: "teleport"},
		}))
	clock.ut = 1
	report := sim.Tick(context.Background())
	assert.Equal(t, "n1", report.NodeID)
	assert.Equal(t, core.ReconcileIdle, report.Reconcile)
}

func TestSimulation_TickListeners(t *testing.T) {
	clock := &manualClock{}
	sim := newTestSimulation(t, clock, nil)
	var got []TickReport
	sim.RegisterTickListener(func(r TickReport) { got = append(got, r) })

	sim.Tick(context.Background())
	sim.Tick(context.Background())
	assert.Len(t, got, 2)
	assert.False(t, sim.Manager().HasNode())
}

func TestEncounters_FindNextEncounter(t *testing.T) {
	clock := &manualClock{}
	enc := NewEncounters([]model.Body{
		{Name: "Far", OrbitRadius: 5e6, SOIRadius: 1e5},
		moon,
	})

	parked := NewNode(model.NodeDefinition{ID: "p", UT: 0}, circularPropagator(), clock)
	_, ok := enc.FindNextEncounter(parked)
	assert.False(t, ok)

	transfer := NewNode(model.NodeDefinition{ID: "t", DeltaV: model.DeltaV{Prograde: 3100}, UT: 0}, circularPropagator(), clock)
	body, ok := enc.FindNextEncounter(transfer)
	assert.True(t, ok)
	assert.Equal(t, "Moon", body)

	var plain core.ManeuverNode = &stubManeuver{}
	_, ok = enc.FindNextEncounter(plain)
	assert.False(t, ok)
}

func TestNode_GizmoAndPatch(t *testing.T) {
	clock := &manualClock{}
	n := NewNode(model.NodeDefinition{ID: "n", UT: 10}, circularPropagator(), clock)
	assert.Nil(t, n.Gizmo(), "hidden gizmo must be a nil interface")

	g := n.ShowGizmo()
	assert.Same(t, g, n.ShowGizmo())
	g.Drag(model.DeltaV{Prograde: 5}, 20)
	assert.Equal(t, model.DeltaV{Prograde: 5}, n.DeltaV())
	assert.Equal(t, 20.0, n.UT())
	assert.Greater(t, n.Trajectory().ApoapsisRadius, 7000.0)

	n.HideGizmo()
	assert.Nil(t, n.Gizmo())

	p := n.Patch()
	require.NotNil(t, p)
	assert.InDelta(t, 0, p.TimeToPeriapsis(), 1e-6)

	detached := NewNode(model.NodeDefinition{ID: "d"}, nil, nil)
	assert.Nil(t, detached.Patch())
}

type stubManeuver struct{}

func (stubManeuver) DeltaV() model.DeltaV            { return model.DeltaV{} }
func (stubManeuver) UT() float64                     { return 0 }
func (stubManeuver) SetDeltaV(model.DeltaV)          {}
func (stubManeuver) SetUT(float64)                   {}
func (stubManeuver) Gizmo() core.Gizmo               { return nil }
func (stubManeuver) OnUpdated(model.DeltaV, float64) {}
func (stubManeuver) Patch() core.Patch               { return nil }
