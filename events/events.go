package events

import (
	"context"
	"sync"
)

// Remote is the upstream pub/sub the bus mirrors, one remote subscription
// per event with at least one listener.
type Remote interface {
	Subscribe(ctx context.Context, channels ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
}

// Bus fans payloads from a remote pub/sub out to per-subscriber channels.
type Bus struct {
	mtx    sync.Mutex
	subs   map[string][]chan []byte
	remote Remote
	ctx    context.Context
}

func NewBus(ctx context.Context, remote Remote) *Bus {
	return &Bus{
		subs:   map[string][]chan []byte{},
		remote: remote,
		ctx:    ctx,
	}
}

func filterSlice(s []chan []byte, r chan []byte) []chan []byte {
	for i, v := range s {
		if v == r {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// Subscribe registers ch for event, subscribing upstream on the first
// listener.
func (b *Bus) Subscribe(event string, ch chan []byte) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if v, ok := b.subs[event]; ok {
		b.subs[event] = append(v, ch)
		return nil
	}
	b.subs[event] = []chan []byte{ch}
	return b.remote.Subscribe(b.ctx, event)
}

// Unsubscribe removes ch from event, dropping the upstream subscription
// with the last listener.
func (b *Bus) Unsubscribe(event string, ch chan []byte) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	remaining := filterSlice(b.subs[event], ch)
	if len(remaining) == 0 {
		delete(b.subs, event)
		return b.remote.Unsubscribe(b.ctx, event)
	}
	b.subs[event] = remaining
	return nil
}

// Dispatch delivers payload to every listener of event. Delivery never
// blocks: a listener whose buffer is full or that has gone away is skipped,
// so one stalled subscriber cannot hold up the rest of the bus.
func (b *Bus) Dispatch(event string, payload []byte) {
	b.mtx.Lock()
	listeners := append([]chan []byte(nil), b.subs[event]...)
	b.mtx.Unlock()

	for _, c := range listeners {
		func(c chan []byte) {
			defer func() {
				_ = recover()
			}()
			select {
			case c <- payload:
			default:
			}
		}(c)
	}
}
