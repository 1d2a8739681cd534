package host

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/flightplan"
	"github.com/signalsfoundry/maneuver-editor/internal/logging"
	"github.com/signalsfoundry/maneuver-editor/model"
	"github.com/signalsfoundry/maneuver-editor/orbit"
)

// ActionKind names a scripted input.
type ActionKind string

const (
	// ActionSetField types text into an editor field.
	ActionSetField ActionKind = "set"
	// ActionAddField presses a stepper on an editor field.
	ActionAddField ActionKind = "add"
	// ActionDrag drags a node's gizmo on the host side.
	ActionDrag ActionKind = "drag"
	// ActionPeriapsis snaps the edited node to the next periapsis.
	ActionPeriapsis ActionKind = "periapsis"
	// ActionApoapsis snaps the edited node to the next apoapsis.
	ActionApoapsis ActionKind = "apoapsis"
	// ActionSelect makes a planned node the one under edit.
	ActionSelect ActionKind = "select"
)

// Action is a scripted input applied between ticks once the simulation
// reaches At.
type Action struct {
	At     float64
	Kind   ActionKind
	NodeID string // drag, select
	Field  core.Field
	Text   string
	Delta  float64
	DeltaV model.DeltaV
	UT     float64
}

// TickReport summarises one tick for listeners.
type TickReport struct {
	UT        float64
	NodeID    string
	Reconcile core.ReconcileState
	State     core.NodeState
	Magnitude float64
	Encounter string
	Executed  []string
	Fields    map[core.Field]FieldView
}

// FieldView is the display state of one editor field.
type FieldView struct {
	Text  string
	Valid bool
}

// MetricsRecorder receives editor and plan metrics.
type MetricsRecorder interface {
	core.Observer
	SetPlanNodes(n int)
	ObserveBurnExecuted()
}

type noopMetrics struct{}

func (noopMetrics) ObserveReconcile(core.ReconcileState)     {}
func (noopMetrics) ObserveField(core.Field, core.FieldState) {}
func (noopMetrics) ObserveChainAdvance()                     {}
func (noopMetrics) SetPlanNodes(int)                         {}
func (noopMetrics) ObserveBurnExecuted()                     {}

// SimOption configures a Simulation.
type SimOption func(*Simulation)

// WithLogger sets the simulation logger.
func WithLogger(l logging.Logger) SimOption {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder wires editor and plan metrics.
func WithMetricsRecorder(m MetricsRecorder) SimOption {
	return func(s *Simulation) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used for per-tick spans.
func WithTracer(t trace.Tracer) SimOption {
	return func(s *Simulation) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithScript queues scripted inputs.
func WithScript(actions []Action) SimOption {
	return func(s *Simulation) {
		s.script = append(s.script, actions...)
	}
}

// Simulation is a minimal host: it owns a vessel's flight plan, executes
// burns when their time comes, applies host-side gizmo drags and user
// edits, and drives the editor once per tick.
type Simulation struct {
	Plan       *flightplan.Plan
	Clock      core.Clock
	Propagator orbit.Propagator
	Encounters *Encounters

	manager  *core.NodeManager
	editedID string

	script        []Action
	log           logging.Logger
	metrics       MetricsRecorder
	tracer        trace.Tracer
	tickListeners []func(TickReport)
}

// NewSimulation builds the plan from defs and puts the earliest node
// under edit.
func NewSimulation(clock core.Clock, prop orbit.Propagator, bodies []model.Body, defs []model.NodeDefinition, opts ...SimOption) (*Simulation, error) {
	s := &Simulation{
		Plan:       flightplan.NewPlan(),
		Clock:      clock,
		Propagator: prop,
		Encounters: NewEncounters(bodies),
		log:        logging.Noop(),
		metrics:    noopMetrics{},
		tracer:     noop.NewTracerProvider().Tracer("host"),
	}
	for _, opt := range opts {
		opt(s)
	}
	slices.SortStableFunc(s.script, func(a, b Action) int { return cmp.Compare(a.At, b.At) })
	s.Plan.Subscribe(s.onPlanEvent)

	for _, def := range defs {
		if err := s.Plan.Add(def.ID, NewNode(def, prop, clock)); err != nil {
			return nil, fmt.Errorf("build flight plan: %w", err)
		}
	}

	if first, ok := s.Plan.First(); ok {
		s.edit(first.ID)
	} else {
		s.manager = s.newManager(nil)
	}
	return s, nil
}

// Manager returns the editor for the node under edit.
func (s *Simulation) Manager() *core.NodeManager { return s.manager }

// EditedID returns the plan ID of the node under edit, or "".
func (s *Simulation) EditedID() string { return s.editedID }

// Node returns a planned node by ID, or nil.
func (s *Simulation) Node(id string) *Node {
	n, _ := s.Plan.Get(id).(*Node)
	return n
}

// RegisterTickListener adds a callback run after every tick.
func (s *Simulation) RegisterTickListener(fn func(TickReport)) {
	s.tickListeners = append(s.tickListeners, fn)
}

// Tick runs one host tick at the clock's current time: burns due by now
// are executed, scripted inputs are applied, then the editor reconciles.
func (s *Simulation) Tick(ctx context.Context) TickReport {
	now := s.Clock.UT()
	ctx, span := s.tracer.Start(ctx, "editor.tick")
	defer span.End()

	executed := s.executeDue(ctx, now)
	s.applyScript(ctx, now)

	if s.manager.HasNode() {
		s.linkSuccessor()
	}
	state := s.manager.UpdateNode()

	report := s.report(now, state, executed)
	span.SetAttributes(
		attribute.Float64("editor.ut", now),
		attribute.String("editor.node_id", report.NodeID),
		attribute.String("editor.reconcile", state.String()),
		attribute.Int("editor.executed", len(executed)),
	)
	if state == core.ReconcileExternal {
		s.log.Info(ctx, "node moved by host; local edits replaced",
			logging.String("node_id", s.editedID),
			logging.Float("node_ut", report.State.UT),
		)
	}

	for _, fn := range s.tickListeners {
		fn(report)
	}
	return report
}

func (s *Simulation) executeDue(ctx context.Context, now float64) []string {
	var executed []string
	for {
		first, ok := s.Plan.First()
		if !ok || first.Node.UT() > now {
			break
		}
		if first.ID == s.editedID {
			if next, ok := s.Plan.Next(first.ID); ok {
				s.manager.SetNextNode(next.Node)
			} else {
				s.manager.SetNextNode(nil)
			}
		}
		if err := s.Plan.Remove(first.ID); err != nil {
			s.log.Warn(ctx, "failed to remove executed node", logging.String("node_id", first.ID), logging.Err(err))
			break
		}
		executed = append(executed, first.ID)
		s.metrics.ObserveBurnExecuted()
		s.log.Info(ctx, "executed burn",
			logging.String("node_id", first.ID),
			logging.Float("dv", first.Node.DeltaV().Magnitude()),
		)

		switch {
		case first.ID != s.editedID:
			// Upstream burn changed the trajectory the edited node sits on.
			s.refreshEncounter(ctx)
		case s.manager.NextNode() != nil:
			s.manager = s.manager.NextState()
			s.editedID, _ = s.Plan.IDOf(s.manager.Node())
			s.log.Info(ctx, "editing next node in chain", logging.String("node_id", s.editedID))
		default:
			s.manager = s.newManager(nil)
			s.editedID = ""
		}
	}
	return executed
}

func (s *Simulation) onPlanEvent(ev flightplan.Event) {
	s.metrics.SetPlanNodes(s.Plan.Len())
	s.log.Debug(context.Background(), "flight plan changed",
		logging.String("event", ev.Type.String()),
		logging.String("node_id", ev.ID),
		logging.Float("node_ut", ev.Node.UT()),
	)
}

func (s *Simulation) refreshEncounter(ctx context.Context) {
	if !s.manager.HasNode() {
		return
	}
	before := s.manager.EncounterBody()
	s.manager.RefreshEncounter()
	if s.manager.EncounterBody() != before {
		s.log.Info(ctx, "encounter changed",
			logging.String("node_id", s.editedID),
			logging.String("body", s.manager.EncounterBody()),
		)
	}
}

func (s *Simulation) applyScript(ctx context.Context, now float64) {
	n := 0
	for n < len(s.script) && s.script[n].At <= now {
		s.apply(ctx, s.script[n])
		n++
	}
	s.script = s.script[n:]
}

func (s *Simulation) apply(ctx context.Context, a Action) {
	m := s.manager
	switch a.Kind {
	case ActionSetField:
		if m.HasNode() {
			m.SetField(a.Field, a.Text)
		}
	case ActionAddField:
		if m.HasNode() {
			m.AddField(a.Field, a.Delta)
		}
	case ActionPeriapsis:
		if m.HasNode() {
			m.SetPeriapsis(s.Clock)
		}
	case ActionApoapsis:
		if m.HasNode() {
			m.SetApoapsis(s.Clock)
		}
	case ActionDrag:
		node := s.Node(a.NodeID)
		if node == nil {
			s.log.Warn(ctx, "drag on unknown node", logging.String("node_id", a.NodeID))
			return
		}
		node.ShowGizmo().Drag(a.DeltaV, a.UT)
	case ActionSelect:
		if s.Node(a.NodeID) == nil {
			s.log.Warn(ctx, "select of unknown node", logging.String("node_id", a.NodeID))
			return
		}
		s.edit(a.NodeID)
	default:
		s.log.Warn(ctx, "unknown scripted action", logging.String("kind", string(a.Kind)))
	}
}

func (s *Simulation) edit(id string) {
	s.editedID = id
	s.manager = s.newManager(s.Plan.Get(id))
	s.linkSuccessor()
}

func (s *Simulation) linkSuccessor() {
	if next, ok := s.Plan.Next(s.editedID); ok {
		s.manager.SetNextNode(next.Node)
	} else {
		s.manager.SetNextNode(nil)
	}
}

func (s *Simulation) newManager(n core.ManeuverNode) *core.NodeManager {
	return core.NewNodeManager(n,
		core.WithEncounterLookup(s.Encounters),
		core.WithLogger(s.log),
		core.WithObserver(s.metrics),
	)
}

func (s *Simulation) report(now float64, state core.ReconcileState, executed []string) TickReport {
	m := s.manager
	r := TickReport{
		UT:        now,
		NodeID:    s.editedID,
		Reconcile: state,
		State:     m.State(),
		Magnitude: m.CurrentMagnitude(),
		Encounter: m.EncounterBody(),
		Executed:  executed,
		Fields:    make(map[core.Field]FieldView, len(core.Fields)),
	}
	for _, f := range core.Fields {
		b := m.Field(f)
		r.Fields[f] = FieldView{Text: b.Text(), Valid: b.Valid()}
	}
	return r
}
