package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/signalsfoundry/maneuver-editor/host"
	"github.com/signalsfoundry/maneuver-editor/internal/observability"
)

// statusBoard keeps the latest tick report for the HTTP status endpoint.
// Ticks arrive on the time controller goroutine.
type statusBoard struct {
	mu     sync.RWMutex
	last   host.TickReport
	ticked bool
}

func (b *statusBoard) Record(r host.TickReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = r
	b.ticked = true
}

func (b *statusBoard) Latest() (host.TickReport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.ticked
}

type fieldStatus struct {
	Text  string `json:"text"`
	Valid bool   `json:"valid"`
}

type tickStatus struct {
	UT        float64                `json:"ut"`
	NodeID    string                 `json:"node_id,omitempty"`
	Reconcile string                 `json:"reconcile"`
	Magnitude float64                `json:"dv_magnitude"`
	Encounter string                 `json:"encounter,omitempty"`
	Executed  []string               `json:"executed,omitempty"`
	Fields    map[string]fieldStatus `json:"fields,omitempty"`
}

func newTickStatus(r host.TickReport) tickStatus {
	st := tickStatus{
		UT:        r.UT,
		NodeID:    r.NodeID,
		Reconcile: r.Reconcile.String(),
		Magnitude: r.Magnitude,
		Encounter: r.Encounter,
		Executed:  r.Executed,
	}
	if r.NodeID != "" {
		st.Fields = make(map[string]fieldStatus, len(r.Fields))
		for f, v := range r.Fields {
			st.Fields[f.String()] = fieldStatus{Text: v.Text, Valid: v.Valid}
		}
	}
	return st
}

func newStatusHandler(collector *observability.EditorCollector, board *statusBoard) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", collector.Handler())
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		report, ok := board.Latest()
		if !ok {
			http.Error(w, "no tick yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(newTickStatus(report))
	})
	return r
}
