package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/maneuver-editor/core"
)

// EditorCollector bundles Prometheus metrics for the maneuver editor and
// its host simulation. It implements core.Observer and
// host.MetricsRecorder.
type EditorCollector struct {
	gatherer prometheus.Gatherer

	Reconciles    *prometheus.CounterVec
	FieldEdits    *prometheus.CounterVec
	ChainAdvances prometheus.Counter
	BurnsExecuted prometheus.Counter
	PlanNodes     prometheus.Gauge
}

// NewEditorCollector registers editor metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEditorCollector(reg prometheus.Registerer) (*EditorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	reconciles, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_reconciles_total",
		Help: "Node reconciliation ticks, labeled by the decision taken (idle, flush, external).",
	}, []string{"state"}), "editor_reconciles_total")
	if err != nil {
		return nil, err
	}

	fieldEdits, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_field_edits_total",
		Help: "Field edits, labeled by field and resulting validation state.",
	}, []string{"field", "state"}), "editor_field_edits_total")
	if err != nil {
		return nil, err
	}

	advances, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editor_chain_advances_total",
		Help: "Times the editor advanced to the next node in the chain.",
	}), "editor_chain_advances_total")
	if err != nil {
		return nil, err
	}

	burns, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "host_burns_executed_total",
		Help: "Maneuver nodes executed and removed from the flight plan.",
	}), "host_burns_executed_total")
	if err != nil {
		return nil, err
	}

	planNodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "host_plan_nodes",
		Help: "Current number of maneuver nodes in the flight plan.",
	}), "host_plan_nodes")
	if err != nil {
		return nil, err
	}

	return &EditorCollector{
		gatherer:      gatherer,
		Reconciles:    reconciles,
		FieldEdits:    fieldEdits,
		ChainAdvances: advances,
		BurnsExecuted: burns,
		PlanNodes:     planNodes,
	}, nil
}

// ObserveReconcile implements core.Observer.
func (c *EditorCollector) ObserveReconcile(state core.ReconcileState) {
	if c == nil || c.Reconciles == nil {
		return
	}
	c.Reconciles.WithLabelValues(state.String()).Inc()
}

// ObserveField implements core.Observer.
func (c *EditorCollector) ObserveField(field core.Field, state core.FieldState) {
	if c == nil || c.FieldEdits == nil {
		return
	}
	c.FieldEdits.WithLabelValues(field.String(), state.String()).Inc()
}

// ObserveChainAdvance implements core.Observer.
func (c *EditorCollector) ObserveChainAdvance() {
	if c == nil || c.ChainAdvances == nil {
		return
	}
	c.ChainAdvances.Inc()
}

// ObserveBurnExecuted counts an executed node.
func (c *EditorCollector) ObserveBurnExecuted() {
	if c == nil || c.BurnsExecuted == nil {
		return
	}
	c.BurnsExecuted.Inc()
}

// SetPlanNodes sets the flight plan size gauge.
func (c *EditorCollector) SetPlanNodes(n int) {
	if c == nil || c.PlanNodes == nil {
		return
	}
	c.PlanNodes.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EditorCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
