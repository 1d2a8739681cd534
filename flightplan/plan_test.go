package flightplan

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/maneuver-editor/core"
	"github.com/signalsfoundry/maneuver-editor/model"
)

type stubNode struct {
	dv model.DeltaV
	ut float64
}

func (n *stubNode) DeltaV() model.DeltaV                  { return n.dv }
func (n *stubNode) UT() float64                           { return n.ut }
func (n *stubNode) SetDeltaV(dv model.DeltaV)             { n.dv = dv }
func (n *stubNode) SetUT(ut float64)                      { n.ut = ut }
func (n *stubNode) Gizmo() core.Gizmo                     { return nil }
func (n *stubNode) OnUpdated(dv model.DeltaV, ut float64) {}
func (n *stubNode) Patch() core.Patch                     { return nil }

func TestAddAndGet(t *testing.T) {
	plan := NewPlan()
	n := &stubNode{ut: 10}
	if err := plan.Add("a", n); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if got := plan.Get("a"); got != n {
		t.Fatalf("Get returned %#v, want %#v", got, n)
	}
	if plan.Get("missing") != nil {
		t.Fatalf("Get on unknown id should return nil")
	}
}

func TestAddDuplicate(t *testing.T) {
	plan := NewPlan()
	if err := plan.Add("a", &stubNode{}); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	err := plan.Add("a", &stubNode{})
	if !errors.Is(err, ErrNodeExists) {
		t.Fatalf("duplicate Add error = %v, want ErrNodeExists", err)
	}
	if err := plan.Add("b", nil); err == nil {
		t.Fatalf("expected nil node to be rejected")
	}
}

func TestRemoveUnknown(t *testing.T) {
	plan := NewPlan()
	if err := plan.Remove("nope"); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("Remove error = %v, want ErrNodeNotFound", err)
	}
}

func TestListOrdersByTime(t *testing.T) {
	plan := NewPlan()
	late := &stubNode{ut: 300}
	early := &stubNode{ut: 100}
	mid := &stubNode{ut: 200}
	for id, n := range map[string]*stubNode{"late": late, "early": early, "mid": mid} {
		if err := plan.Add(id, n); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}

	list := plan.List()
	want := []string{"early", "mid", "late"}
	for i, e := range list {
		if e.ID != want[i] {
			t.Fatalf("List()[%d] = %s, want %s", i, e.ID, want[i])
		}
	}

	// Moving a node in time reorders the chain.
	early.SetUT(400)
	if first, _ := plan.First(); first.ID != "mid" {
		t.Fatalf("First after retime = %s, want mid", first.ID)
	}
	if next, ok := plan.Next("late"); !ok || next.ID != "early" {
		t.Fatalf("Next(late) = %v, %v; want early", next.ID, ok)
	}
	if _, ok := plan.Next("early"); ok {
		t.Fatalf("last node should have no successor")
	}
}

func TestIDOf(t *testing.T) {
	plan := NewPlan()
	n := &stubNode{}
	_ = plan.Add("x", n)
	if id, ok := plan.IDOf(n); !ok || id != "x" {
		t.Fatalf("IDOf = %q, %v; want x", id, ok)
	}
	if _, ok := plan.IDOf(&stubNode{}); ok {
		t.Fatalf("IDOf on foreign node should fail")
	}
}

func TestSubscribeEvents(t *testing.T) {
	plan := NewPlan()
	var events []Event
	unsub := plan.Subscribe(func(ev Event) { events = append(events, ev) })

	_ = plan.Add("a", &stubNode{})
	_ = plan.Remove("a")
	unsub()
	_ = plan.Add("b", &stubNode{})

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventNodeAdded || events[1].Type != EventNodeRemoved {
		t.Fatalf("unexpected event types: %v, %v", events[0].Type, events[1].Type)
	}
}

func TestConcurrentAdds(t *testing.T) {
	plan := NewPlan()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = plan.Add(fmt.Sprintf("n-%d", i), &stubNode{ut: float64(i)})
		}()
	}
	wg.Wait()
	if plan.Len() != 20 {
		t.Fatalf("Len = %d, want 20", plan.Len())
	}
}

func TestUnsubscribeRemovesOwnCallback(t *testing.T) {
	plan := NewPlan()
	var first, second, third int
	unsubFirst := plan.Subscribe(func(Event) { first++ })
	unsubSecond := plan.Subscribe(func(Event) { second++ })
	plan.Subscribe(func(Event) { third++ })

	unsubFirst()
	unsubSecond()
	unsubSecond()
	_ = plan.Add("a", &stubNode{})

	if first != 0 || second != 0 || third != 1 {
		t.Fatalf("callbacks ran first=%d second=%d third=%d, want 0 0 1", first, second, third)
	}
}
