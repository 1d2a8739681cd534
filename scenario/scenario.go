// Package scenario loads host simulation scenarios from YAML.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/host"
	"github.com/signalsfoundry/maneuver-editor/model"
	"github.com/signalsfoundry/maneuver-editor/orbit"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Scenario is a loaded, validated scenario ready to build a simulation.
type Scenario struct {
	Name    string
	Epoch   time.Time
	Vessel  model.VesselDefinition
	Bodies  []model.Body
	Nodes   []model.NodeDefinition
	Actions []host.Action

	// CircularRadius replaces the TLE with a fixed circular orbit when set.
	CircularRadius float64
}

// internal YAML shapes
type scenarioYAML struct {
	Name   string       `yaml:"name"`
	Epoch  string       `yaml:"epoch"`
	Vessel vesselYAML   `yaml:"vessel"`
	Bodies []bodyYAML   `yaml:"bodies"`
	Nodes  []nodeYAML   `yaml:"nodes"`
	Events []actionYAML `yaml:"events"`
}

type vesselYAML struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	NoradID        uint32   `yaml:"norad_id"`
	TLE            []string `yaml:"tle"`
	CircularRadius float64  `yaml:"circular_radius_km"`
}

type bodyYAML struct {
	Name        string  `yaml:"name"`
	OrbitRadius float64 `yaml:"orbit_radius_km"`
	SOIRadius   float64 `yaml:"soi_radius_km"`
}

type deltaVYAML struct {
	Radial   float64 `yaml:"radial"`
	Normal   float64 `yaml:"normal"`
	Prograde float64 `yaml:"prograde"`
}

type nodeYAML struct {
	ID string     `yaml:"id"`
	UT float64    `yaml:"ut"`
	DV deltaVYAML `yaml:"dv"`
}

type actionYAML struct {
	At     float64    `yaml:"at"`
	Action string     `yaml:"action"`
	Node   string     `yaml:"node"`
	Field  string     `yaml:"field"`
	Text   *string    `yaml:"text"`
	Delta  float64    `yaml:"delta"`
	DV     deltaVYAML `yaml:"dv"`
	UT     float64    `yaml:"ut"`
}

var fieldsByName = map[string]core.Field{
	"radial":   core.FieldRadial,
	"normal":   core.FieldNormal,
	"prograde": core.FieldPrograde,
	"time":     core.FieldTime,
	"ut":       core.FieldTime,
}

// LoadFile reads a scenario from path.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %q: %w", path, err)
	}
	sc, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", path, err)
	}
	return sc, nil
}

// Load decodes and validates a scenario. Unknown keys are rejected.
func Load(r io.Reader) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	sc := &Scenario{
		Name:           payload.Name,
		CircularRadius: payload.Vessel.CircularRadius,
		Vessel: model.VesselDefinition{
			ID:      payload.Vessel.ID,
			Name:    payload.Vessel.Name,
			NoradID: payload.Vessel.NoradID,
		},
	}

	if payload.Epoch != "" {
		epoch, err := time.Parse(time.RFC3339, payload.Epoch)
		if err != nil {
			return nil, fmt.Errorf("%w: epoch: %v", ErrInvalid, err)
		}
		sc.Epoch = epoch.UTC()
	}

	if err := sc.loadVessel(payload.Vessel); err != nil {
		return nil, err
	}

	for i, b := range payload.Bodies {
		if b.Name == "" || b.OrbitRadius <= 0 || b.SOIRadius <= 0 {
			return nil, fmt.Errorf("%w: body %d needs a name and positive radii", ErrInvalid, i)
		}
		sc.Bodies = append(sc.Bodies, model.Body{Name: b.Name, OrbitRadius: b.OrbitRadius, SOIRadius: b.SOIRadius})
	}

	seen := make(map[string]bool, len(payload.Nodes))
	for i, n := range payload.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node %d has no id", ErrInvalid, i)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalid, n.ID)
		}
		seen[n.ID] = true
		sc.Nodes = append(sc.Nodes, model.NodeDefinition{ID: n.ID, UT: n.UT, DeltaV: n.DV.toModel()})
	}

	for i, ev := range payload.Events {
		a, err := ev.toAction(seen)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalid, i, err)
		}
		sc.Actions = append(sc.Actions, a)
	}
	return sc, nil
}

func (sc *Scenario) loadVessel(v vesselYAML) error {
	if v.CircularRadius < 0 {
		return fmt.Errorf("%w: circular_radius_km must be positive", ErrInvalid)
	}
	if v.CircularRadius > 0 {
		if len(v.TLE) != 0 {
			return fmt.Errorf("%w: vessel sets both tle and circular_radius_km", ErrInvalid)
		}
		return nil
	}
	if len(v.TLE) != 2 {
		return fmt.Errorf("%w: vessel needs two TLE lines or circular_radius_km", ErrInvalid)
	}
	l1, l2 := strings.TrimSpace(v.TLE[0]), strings.TrimSpace(v.TLE[1])
	if !strings.HasPrefix(l1, "1 ") || !strings.HasPrefix(l2, "2 ") || len(l1) != 69 || len(l2) != 69 {
		return fmt.Errorf("%w: malformed TLE", ErrInvalid)
	}
	if sc.Epoch.IsZero() {
		return fmt.Errorf("%w: a TLE vessel needs an epoch", ErrInvalid)
	}
	sc.Vessel.TLELine1, sc.Vessel.TLELine2 = l1, l2
	return nil
}

// Propagator returns the vessel's trajectory source.
func (sc *Scenario) Propagator() orbit.Propagator {
	if sc.CircularRadius > 0 {
		r, v := orbit.CircularState(sc.CircularRadius)
		return orbit.FixedPropagator{R: r, V: v}
	}
	return orbit.NewSGP4Propagator(sc.Vessel.TLELine1, sc.Vessel.TLELine2, sc.Epoch)
}

func (d deltaVYAML) toModel() model.DeltaV {
	return model.DeltaV{Radial: d.Radial, Normal: d.Normal, Prograde: d.Prograde}
}

func (ev actionYAML) toAction(nodes map[string]bool) (host.Action, error) {
	a := host.Action{
		At:     ev.At,
		Kind:   host.ActionKind(strings.ToLower(ev.Action)),
		NodeID: ev.Node,
		Delta:  ev.Delta,
		DeltaV: ev.DV.toModel(),
		UT:     ev.UT,
	}
	if ev.At < 0 {
		return a, fmt.Errorf("negative time %v", ev.At)
	}

	switch a.Kind {
	case host.ActionSetField, host.ActionAddField:
		f, ok := fieldsByName[strings.ToLower(ev.Field)]
		if !ok {
			return a, fmt.Errorf("unknown field %q", ev.Field)
		}
		a.Field = f
		if a.Kind == host.ActionSetField {
			if ev.Text == nil {
				return a, fmt.Errorf("set needs text")
			}
			a.Text = *ev.Text
		}
	case host.ActionDrag, host.ActionSelect:
		if !nodes[ev.Node] {
			return a, fmt.Errorf("%s of unknown node %q", a.Kind, ev.Node)
		}
	case host.ActionPeriapsis, host.ActionApoapsis:
	default:
		return a, fmt.Errorf("unknown action %q", ev.Action)
	}
	return a, nil
}
