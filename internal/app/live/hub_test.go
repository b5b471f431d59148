package live

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func startTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		if err := hub.Shutdown(time.Second); err != nil {
			t.Errorf("hub shutdown: %v", err)
		}
	})
	return hub
}

func addTestClient(hub *Hub, groups ...primitive.ObjectID) *Client {
	c := newClient(nil, hub, primitive.NewObjectID(), groups, 8, zap.NewNop())
	hub.Register(c)
	return c
}

func recvPayload(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case payload := <-c.send:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if ok {
			t.Errorf("unexpected payload: %s", payload)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastScopedToRoom(t *testing.T) {
	hub := startTestHub(t)
	g1 := primitive.NewObjectID()
	g2 := primitive.NewObjectID()

	inG1 := addTestClient(hub, g1)
	alsoInG1 := addTestClient(hub, g1, g2)
	onlyG2 := addTestClient(hub, g2)

	hub.Broadcast(g1, []byte("hello"))

	if got := string(recvPayload(t, inG1)); got != "hello" {
		t.Errorf("payload: got %q", got)
	}
	if got := string(recvPayload(t, alsoInG1)); got != "hello" {
		t.Errorf("payload: got %q", got)
	}
	expectNothing(t, onlyG2)
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := startTestHub(t)
	g := primitive.NewObjectID()

	stay := addTestClient(hub, g)
	leave := addTestClient(hub, g)

	hub.Unregister(leave)
	hub.Broadcast(g, []byte("after"))

	if got := string(recvPayload(t, stay)); got != "after" {
		t.Errorf("payload: got %q", got)
	}
	// The unregistered client's channel is closed, not written to.
	select {
	case payload, ok := <-leave.send:
		if ok {
			t.Errorf("unexpected payload after unregister: %s", payload)
		}
	case <-time.After(time.Second):
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_UnregisterTwice(t *testing.T) {
	hub := startTestHub(t)
	c := addTestClient(hub, primitive.NewObjectID())

	hub.Unregister(c)
	hub.Unregister(c) // must not panic on double close
	hub.Broadcast(primitive.NewObjectID(), []byte("x"))
}

func TestHub_FullBufferDropsClient(t *testing.T) {
	hub := startTestHub(t)
	g := primitive.NewObjectID()

	stalled := newClient(nil, hub, primitive.NewObjectID(), []primitive.ObjectID{g}, 1, zap.NewNop())
	hub.Register(stalled)
	healthy := addTestClient(hub, g)

	// Fill the stalled client's buffer, then overflow it.
	hub.Broadcast(g, []byte("one"))
	hub.Broadcast(g, []byte("two"))

	if got := string(recvPayload(t, healthy)); got != "one" {
		t.Errorf("payload: got %q", got)
	}
	if got := string(recvPayload(t, healthy)); got != "two" {
		t.Errorf("payload: got %q", got)
	}

	// The stalled client got the first frame, then was dropped: its
	// channel holds "one" and is closed.
	if got := string(recvPayload(t, stalled)); got != "one" {
		t.Errorf("payload: got %q", got)
	}
	if _, ok := <-stalled.send; ok {
		t.Error("stalled client's channel should be closed")
	}
}

func TestHub_SendToConcurrentWithUnregister(t *testing.T) {
	hub := startTestHub(t)
	g := primitive.NewObjectID()

	// Scoped sends racing a disconnect must serialize through the run
	// loop; a send after removal is dropped, never a write to the
	// closed channel.
	for i := 0; i < 50; i++ {
		c := addTestClient(hub, g)
		done := make(chan struct{})
		go func() {
			for j := 0; j < 20; j++ {
				hub.sendTo(c, []byte("scoped"))
			}
			close(done)
		}()
		hub.Unregister(c)
		<-done
	}
}

func TestHub_SendToUnregisteredIsNoop(t *testing.T) {
	hub := startTestHub(t)
	c := newClient(nil, hub, primitive.NewObjectID(), nil, 1, zap.NewNop())

	hub.sendTo(c, []byte("orphan"))

	select {
	case payload := <-c.send:
		t.Errorf("unexpected payload: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}
