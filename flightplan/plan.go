package flightplan

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/signalsfoundry/maneuver-editor/core"
)

var (
	// ErrNodeExists is returned when adding a node under an ID already in use.
	ErrNodeExists = errors.New("maneuver node already exists")
	// ErrNodeNotFound is returned when an ID is not in the plan.
	ErrNodeNotFound = errors.New("maneuver node not found")
)

// EventType indicates what kind of change happened in the plan.
type EventType int

const (
	EventNodeAdded EventType = iota
	EventNodeRemoved
)

func (t EventType) String() string {
	switch t {
	case EventNodeAdded:
		return "added"
	case EventNodeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when the plan changes.
type Event struct {
	Type EventType
	ID   string
	Node core.ManeuverNode
}

// Entry pairs a node with its plan ID.
type Entry struct {
	ID   string
	Node core.ManeuverNode
}

// Plan is the ordered chain of maneuver nodes of one vessel. Order is by
// scheduled time, read from the nodes on every query since the host and
// the editor both move nodes in time.
type Plan struct {
	mu sync.RWMutex

	nodes map[string]core.ManeuverNode

	subs    []subscription
	nextSub uint64
}

type subscription struct {
	id uint64
	fn func(Event)
}

// NewPlan constructs an empty plan.
func NewPlan() *Plan {
	return &Plan{
		nodes: make(map[string]core.ManeuverNode),
	}
}

// Add inserts a node. It returns ErrNodeExists if the ID is taken.
func (p *Plan) Add(id string, n core.ManeuverNode) error {
	if n == nil {
		return fmt.Errorf("add %q: nil node", id)
	}
	p.mu.Lock()
	if _, exists := p.nodes[id]; exists {
		p.mu.Unlock()
		return fmt.Errorf("add %q: %w", id, ErrNodeExists)
	}
	p.nodes[id] = n
	subs := p.subscribers()
	p.mu.Unlock()

	notify(subs, Event{Type: EventNodeAdded, ID: id, Node: n})
	return nil
}

// Remove deletes a node, typically because it was executed or deleted by
// the user.
func (p *Plan) Remove(id string) error {
	p.mu.Lock()
	n, ok := p.nodes[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("remove %q: %w", id, ErrNodeNotFound)
	}
	delete(p.nodes, id)
	subs := p.subscribers()
	p.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, Event{Type: EventNodeRemoved, ID: id, Node: n})
	return nil
}

// Get returns the node with the given ID, or nil if not found.
func (p *Plan) Get(id string) core.ManeuverNode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nodes[id]
}

// Len returns the number of planned nodes.
func (p *Plan) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}

// List returns the plan in burn order. Ties on time are broken by ID.
func (p *Plan) List() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	res := make([]Entry, 0, len(p.nodes))
	for id, n := range p.nodes {
		res = append(res, Entry{ID: id, Node: n})
	}
	slices.SortFunc(res, func(a, b Entry) int {
		if c := cmp.Compare(a.Node.UT(), b.Node.UT()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return res
}

// First returns the earliest node, or ok=false on an empty plan.
func (p *Plan) First() (Entry, bool) {
	list := p.List()
	if len(list) == 0 {
		return Entry{}, false
	}
	return list[0], true
}

// Next returns the node that follows id in burn order, or ok=false when
// id is last or unknown.
func (p *Plan) Next(id string) (Entry, bool) {
	list := p.List()
	for i, e := range list {
		if e.ID == id && i+1 < len(list) {
			return list[i+1], true
		}
	}
	return Entry{}, false
}

// IDOf returns the plan ID of n.
func (p *Plan) IDOf(n core.ManeuverNode) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, candidate := range p.nodes {
		if candidate == n {
			return id, true
		}
	}
	return "", false
}

// Subscribe registers a callback for plan events. It returns an unsubscribe function.
func (p *Plan) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	id := p.nextSub
	p.subs = append(p.subs, subscription{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.subs = slices.DeleteFunc(p.subs, func(s subscription) bool { return s.id == id })
	}
}

// subscribers copies the callbacks; callers hold p.mu.
func (p *Plan) subscribers() []func(Event) {
	fns := make([]func(Event), 0, len(p.subs))
	for _, s := range p.subs {
		fns = append(fns, s.fn)
	}
	return fns
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
