package livesearch

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(context.Background(), zap.NewNop())
	t.Cleanup(func() { r.cancel() })
	return r
}

func view(t *testing.T, r *Registry) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for registry view")
	}
	return View{}
}

func recvStopped(t *testing.T, stop chan struct{}) {
	t.Helper()
	select {
	case <-stop:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop handle to close")
	}
}

func recvNotStopped(t *testing.T, stop chan struct{}) {
	t.Helper()
	select {
	case <-stop:
		t.Fatal("stop handle closed unexpectedly")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRegistryStopCurrentTerminatesFleet(t *testing.T) {
	r := newTestRegistry(t)

	stops := []chan struct{}{make(chan struct{}), make(chan struct{}), make(chan struct{})}
	for i, stop := range stops {
		r.Inbox() <- Register{ID: string(rune('a' + i)), Stop: stop}
	}
	if v := view(t, r); v.NumSubscribers != 3 {
		t.Fatalf("expected 3 subscribers, got %d", v.NumSubscribers)
	}

	r.StopCurrent()
	for _, stop := range stops {
		recvStopped(t, stop)
	}
	if v := view(t, r); v.NumSubscribers != 0 {
		t.Fatalf("expected empty registry after stop, got %d", v.NumSubscribers)
	}
}

func TestRegistryDeregisterLeavesOthersRunning(t *testing.T) {
	r := newTestRegistry(t)

	keep := make(chan struct{})
	gone := make(chan struct{})
	r.Inbox() <- Register{ID: "keep", Stop: keep}
	r.Inbox() <- Register{ID: "gone", Stop: gone}
	r.Inbox() <- Deregister{ID: "gone"}

	if v := view(t, r); v.NumSubscribers != 1 {
		t.Fatalf("expected 1 subscriber, got %d", v.NumSubscribers)
	}

	r.StopCurrent()
	recvStopped(t, keep)
	// A deregistered handle is never closed by the registry.
	recvNotStopped(t, gone)
}

func TestRegistryRegisterAfterStopCurrent(t *testing.T) {
	r := newTestRegistry(t)

	first := make(chan struct{})
	r.Inbox() <- Register{ID: "first", Stop: first}
	r.StopCurrent()
	recvStopped(t, first)

	// The registry keeps serving the next event's subscribers.
	second := make(chan struct{})
	r.Inbox() <- Register{ID: "second", Stop: second}
	if v := view(t, r); v.NumSubscribers != 1 {
		t.Fatalf("expected 1 subscriber, got %d", v.NumSubscribers)
	}
	recvNotStopped(t, second)
}

func TestRegistryShutdownStopsEveryone(t *testing.T) {
	r := newTestRegistry(t)

	stop := make(chan struct{})
	r.Inbox() <- Register{ID: "a", Stop: stop}
	r.Inbox() <- Shutdown{}
	recvStopped(t, stop)
}
