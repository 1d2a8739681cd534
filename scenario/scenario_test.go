package scenario

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/host"
	"github.com/signalsfoundry/maneuver-editor/model"
	"github.com/signalsfoundry/maneuver-editor/orbit"
)

const circularScenario = `
name: test
vessel:
  id: v1
  circular_radius_km: 7000
bodies:
  - {name: Moon, orbit_radius_km: 384400, soi_radius_km: 66100}
nodes:
  - {id: a, ut: 100, dv: {prograde: 5, radial: -1}}
  - {id: b, ut: 200}
events:
  - {at: 1, action: set, field: Prograde, text: "3."}
  - {at: 2, action: set, field: ut, text: ""}
  - {at: 3, action: add, field: normal, delta: 0.5}
  - {at: 4, action: drag, node: b, dv: {normal: 2}, ut: 250}
  - {at: 5, action: select, node: b}
  - {at: 6, action: periapsis}
`

func TestLoad_CircularScenario(t *testing.T) {
	sc, err := Load(strings.NewReader(circularScenario))
	require.NoError(t, err)

	assert.Equal(t, "test", sc.Name)
	assert.Equal(t, 7000.0, sc.CircularRadius)
	assert.Equal(t, []model.Body{{Name: "Moon", OrbitRadius: 384400, SOIRadius: 66100}}, sc.Bodies)
	assert.Equal(t, []model.NodeDefinition{
		{ID: "a", UT: 100, DeltaV: model.DeltaV{Prograde: 5, Radial: -1}},
		{ID: "b", UT: 200},
	}, sc.Nodes)

	require.Len(t, sc.Actions, 6)
	assert.Equal(t, host.Action{At: 1, Kind: host.ActionSetField, Field: core.FieldPrograde, Text: "3."}, sc.Actions[0])
	assert.Equal(t, host.Action{At: 2, Kind: host.ActionSetField, Field: core.FieldTime, Text: ""}, sc.Actions[1])
	assert.Equal(t, 0.5, sc.Actions[2].Delta)
	assert.Equal(t, host.Action{At: 4, Kind: host.ActionDrag, NodeID: "b", DeltaV: model.DeltaV{Normal: 2}, UT: 250}, sc.Actions[3])
	assert.Equal(t, host.ActionSelect, sc.Actions[4].Kind)
	assert.Equal(t, host.ActionPeriapsis, sc.Actions[5].Kind)

	prop, ok := sc.Propagator().(orbit.FixedPropagator)
	require.True(t, ok)
	assert.InDelta(t, 7000, prop.R.Norm(), 1e-9)
}

func TestLoadFile_ExampleConfig(t *testing.T) {
	sc, err := LoadFile("../configs/leo_transfer.yaml")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2021, 10, 2, 14, 11, 0, 0, time.UTC), sc.Epoch)
	assert.Equal(t, uint32(25544), sc.Vessel.NoradID)
	assert.Len(t, sc.Nodes, 2)
	assert.NotEmpty(t, sc.Actions)

	prop, ok := sc.Propagator().(*orbit.SGP4Propagator)
	require.True(t, ok)
	r, _ := prop.StateAt(0)
	assert.InDelta(t, 6780, r.Norm(), 60, "ISS should sit in low orbit")
}

func TestLoad_SimulationRuns(t *testing.T) {
	sc, err := Load(strings.NewReader(circularScenario))
	require.NoError(t, err)

	clock := &stepClock{}
	sim, err := host.NewSimulation(clock, sc.Propagator(), sc.Bodies, sc.Nodes, host.WithScript(sc.Actions))
	require.NoError(t, err)
	assert.Equal(t, "a", sim.EditedID())

	clock.ut = 1
	report := sim.Tick(t.Context())
	assert.Equal(t, core.ReconcileIdle, report.Reconcile)
	assert.False(t, report.Fields[core.FieldPrograde].Valid)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"unknown key":    "vessel: {circular_radius_km: 7000}\nbogus: 1\n",
		"no trajectory":  "vessel: {id: v}\n",
		"both sources":   "vessel: {circular_radius_km: 7000, tle: [a, b]}\n",
		"short tle":      "epoch: \"2021-10-02T14:11:00Z\"\nvessel: {tle: [\"1 x\", \"2 y\"]}\n",
		"tle no epoch":   "vessel:\n  tle:\n    - \"1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990\"\n    - \"2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760\"\n",
		"bad epoch":      "epoch: yesterday\nvessel: {circular_radius_km: 7000}\n",
		"bad body":       "vessel: {circular_radius_km: 7000}\nbodies: [{name: Moon}]\n",
		"node no id":     "vessel: {circular_radius_km: 7000}\nnodes: [{ut: 1}]\n",
		"duplicate node": "vessel: {circular_radius_km: 7000}\nnodes: [{id: a}, {id: a}]\n",
		"unknown field":  "vessel: {circular_radius_km: 7000}\nevents: [{action: set, field: warp, text: \"1\"}]\n",
		"set no text":    "vessel: {circular_radius_km: 7000}\nevents: [{action: set, field: radial}]\n",
		"drag unknown":   "vessel: {circular_radius_km: 7000}\nevents: [{action: drag, node: ghost}]\n",
		"unknown action": "vessel: {circular_radius_km: 7000}\nevents: [{action: warp}]\n",
		"negative time":  "vessel: {circular_radius_km: 7000}\nevents: [{at: -1, action: apoapsis}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("does-not-exist.yaml")
	assert.Error(t, err)
}

type stepClock struct{ ut float64 }

func (c *stepClock) UT() float64 { return c.ut }
