package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	subscribed   []string
	unsubscribed []string
}

func (f *fakeRemote) Subscribe(ctx context.Context, channels ...string) error {
	f.subscribed = append(f.subscribed, channels...)
	return nil
}

func (f *fakeRemote) Unsubscribe(ctx context.Context, channels ...string) error {
	f.unsubscribed = append(f.unsubscribed, channels...)
	return nil
}

func TestSubscribeOncePerEvent(t *testing.T) {
	remote := &fakeRemote{}
	bus := NewBus(context.Background(), remote)

	a := make(chan []byte, 1)
	b := make(chan []byte, 1)

	require.NoError(t, bus.Subscribe("events:room:7K9P2M:questions", a))
	require.NoError(t, bus.Subscribe("events:room:7K9P2M:questions", b))

	assert.Equal(t, []string{"events:room:7K9P2M:questions"}, remote.subscribed)
}

func TestDispatchFansOut(t *testing.T) {
	remote := &fakeRemote{}
	bus := NewBus(context.Background(), remote)

	a := make(chan []byte, 1)
	b := make(chan []byte, 1)
	require.NoError(t, bus.Subscribe("ev", a))
	require.NoError(t, bus.Subscribe("ev", b))

	bus.Dispatch("ev", []byte("payload"))

	assert.Equal(t, []byte("payload"), <-a)
	assert.Equal(t, []byte("payload"), <-b)
}

func TestDispatchUnknownEvent(t *testing.T) {
	bus := NewBus(context.Background(), &fakeRemote{})
	bus.Dispatch("nobody-listens", []byte("payload"))
}

func TestUnsubscribeLastListenerDropsRemote(t *testing.T) {
	remote := &fakeRemote{}
	bus := NewBus(context.Background(), remote)

	a := make(chan []byte, 1)
	b := make(chan []byte, 1)
	require.NoError(t, bus.Subscribe("ev", a))
	require.NoError(t, bus.Subscribe("ev", b))

	require.NoError(t, bus.Unsubscribe("ev", a))
	assert.Empty(t, remote.unsubscribed)

	require.NoError(t, bus.Unsubscribe("ev", b))
	assert.Equal(t, []string{"ev"}, remote.unsubscribed)

	// A dispatch after everyone left delivers nowhere.
	bus.Dispatch("ev", []byte("payload"))
	select {
	case <-a:
		t.Fatal("unsubscribed channel received payload")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestDispatchSkipsStalledListener(t *testing.T) {
	remote := &fakeRemote{}
	bus := NewBus(context.Background(), remote)

	// Nobody ever reads this one, like a feed whose client vanished.
	stalled := make(chan []byte)
	healthy := make(chan []byte, 1)
	other := make(chan []byte, 1)
	require.NoError(t, bus.Subscribe("room-a", stalled))
	require.NoError(t, bus.Subscribe("room-a", healthy))
	require.NoError(t, bus.Subscribe("room-b", other))

	done := make(chan struct{})
	go func() {
		bus.Dispatch("room-a", []byte("question"))
		bus.Dispatch("room-b", []byte("member"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("one abandoned listener blocked the bus for everyone else")
	}

	assert.Equal(t, []byte("question"), <-healthy)
	assert.Equal(t, []byte("member"), <-other)
}

func TestDispatchDropsWhenListenerBufferIsFull(t *testing.T) {
	remote := &fakeRemote{}
	bus := NewBus(context.Background(), remote)

	slow := make(chan []byte, 1)
	require.NoError(t, bus.Subscribe("ev", slow))

	bus.Dispatch("ev", []byte("first"))
	bus.Dispatch("ev", []byte("second"))

	assert.Equal(t, []byte("first"), <-slow)
	select {
	case payload := <-slow:
		t.Fatalf("expected overflow to be dropped, got %q", payload)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestDispatchSurvivesClosedListener(t *testing.T) {
	remote := &fakeRemote{}
	bus := NewBus(context.Background(), remote)

	closed := make(chan []byte)
	open := make(chan []byte, 1)
	require.NoError(t, bus.Subscribe("ev", closed))
	require.NoError(t, bus.Subscribe("ev", open))
	close(closed)

	bus.Dispatch("ev", []byte("payload"))
	assert.Equal(t, []byte("payload"), <-open)
}
