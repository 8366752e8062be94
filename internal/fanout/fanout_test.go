package fanout

import (
	"testing"
	"time"

	"github.com/conductorhq/conductor/pkg/models"
)

func TestSubscribeDeliversFutureEventsOnly(t *testing.T) {
	h := New(nil)
	agent := models.AgentID("a1")

	h.Publish(agent, models.AgentTypeImplementation, "main", "", EventMessage, "before")

	sub := h.Subscribe(agent, false)
	defer sub.Close()

	h.Publish(agent, models.AgentTypeImplementation, "main", "", EventMessage, "after")

	select {
	case ev := <-sub.Events():
		if ev.Data != "after" {
			t.Fatalf("expected only the post-subscribe event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishAssignsMonotoneSeqPerAgent(t *testing.T) {
	h := New(nil)
	agent := models.AgentID("a1")
	sub := h.Subscribe(agent, false)
	defer sub.Close()

	h.Publish(agent, models.AgentTypeImplementation, "main", "", EventMessage, "1")
	h.Publish(agent, models.AgentTypeImplementation, "main", "", EventMessage, "2")

	ev1 := <-sub.Events()
	ev2 := <-sub.Events()
	if ev2.Seq <= ev1.Seq {
		t.Fatalf("expected monotone seq, got %d then %d", ev1.Seq, ev2.Seq)
	}
}

func TestMainSubscriberReceivesDescendantEvents(t *testing.T) {
	h := New(nil)
	mainAgent := models.AgentID("main")
	child := models.AgentID("child")
	h.RegisterAgent(mainAgent, mainAgent)
	h.RegisterAgent(child, mainAgent)

	sub := h.Subscribe(mainAgent, true)
	defer sub.Close()

	h.Publish(child, models.AgentTypeImplementation, "child", "", EventMessage, "from-child")

	select {
	case ev := <-sub.Events():
		if ev.AgentID != child {
			t.Fatalf("expected event tagged with child agent id, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for multiplexed child event")
	}
}

func TestNonMainSubscriberDoesNotReceiveDescendantEvents(t *testing.T) {
	h := New(nil)
	mainAgent := models.AgentID("main")
	child := models.AgentID("child")
	h.RegisterAgent(mainAgent, mainAgent)
	h.RegisterAgent(child, mainAgent)

	sub := h.Subscribe(mainAgent, false)
	defer sub.Close()

	h.Publish(child, models.AgentTypeImplementation, "child", "", EventMessage, "from-child")

	select {
	case ev := <-sub.Events():
		t.Fatalf("expected no delivery to a non-main subscriber, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberGetsDroppedMarkerInsteadOfBlocking(t *testing.T) {
	h := New(nil)
	agent := models.AgentID("a1")
	sub := h.Subscribe(agent, false)
	defer sub.Close()

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(agent, models.AgentTypeImplementation, "main", "", EventMessage, i)
	}

	var sawDropped bool
	for i := 0; i < subscriberBuffer; i++ {
		ev := <-sub.Events()
		if ev.Type == EventDropped {
			sawDropped = true
		}
	}
	if !sawDropped {
		t.Fatal("expected at least one dropped marker for an overwhelmed subscriber")
	}
}

func TestUnrelatedAgentSubscribersAreUnaffectedByOtherAgentEvents(t *testing.T) {
	h := New(nil)
	a := models.AgentID("a")
	b := models.AgentID("b")
	subA := h.Subscribe(a, false)
	defer subA.Close()
	subB := h.Subscribe(b, false)
	defer subB.Close()

	h.Publish(a, models.AgentTypeImplementation, "a", "", EventMessage, "for-a")

	select {
	case ev := <-subB.Events():
		t.Fatalf("expected no event delivered to an unrelated agent's subscriber, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case ev := <-subA.Events():
		if ev.Data != "for-a" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber A's event")
	}
}
