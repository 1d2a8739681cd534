package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/host"
)

// reportPrinter is called on the time controller goroutine and read back
// by run, possibly while a tick is still in flight after an interrupt.
type reportPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	err     error

	lastFields map[core.Field]host.FieldView
}

// Print writes one line per interesting tick.
func (p *reportPrinter) Print(r host.TickReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if !p.verbose && !p.interesting(r) {
		return
	}
	_, p.err = fmt.Fprintln(p.out, formatReport(r))
}

// Err returns the first write error.
func (p *reportPrinter) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *reportPrinter) interesting(r host.TickReport) bool {
	defer func() { p.lastFields = r.Fields }()
	if r.Reconcile != core.ReconcileIdle || len(r.Executed) > 0 {
		return true
	}
	for f, v := range r.Fields {
		if p.lastFields[f] != v {
			return true
		}
	}
	return false
}

func formatReport(r host.TickReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%-8s", core.FormatValue(r.UT))
	if len(r.Executed) > 0 {
		fmt.Fprintf(&b, " executed=%s", strings.Join(r.Executed, ","))
	}
	if r.NodeID == "" {
		b.WriteString(" node=- (no node under edit)")
		return b.String()
	}

	fmt.Fprintf(&b, " node=%s reconcile=%s |dv|=%.3f", r.NodeID, r.Reconcile, r.Magnitude)
	for _, f := range core.Fields {
		v := r.Fields[f]
		mark := ""
		if !v.Valid {
			mark = "!"
		}
		fmt.Fprintf(&b, " %s=%q%s", f, v.Text, mark)
	}
	if r.Encounter != "" {
		fmt.Fprintf(&b, " encounter=%s", r.Encounter)
	}
	return b.String()
}
