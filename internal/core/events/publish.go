package events

import (
	"errors"
	"fmt"

	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
)

var ErrPayloadMismatch = errors.New("event payload does not match its type")

// Publish wraps msg in a bus event typed by msg.Type() and delivers it synchronously.
func Publish(b bus.EventBus, source string, msg Message) error {
	return b.Publish(bus.NewEvent(msg.Type(), source, msg))
}

// PublishAll delivers msgs in order as one batch. Every message is delivered even when
// an earlier one's handlers fail; the errors are joined.
func PublishAll(b bus.EventBus, source string, msgs ...Message) error {
	batch := make([]bus.Event, len(msgs))
	for i, msg := range msgs {
		batch[i] = bus.NewEvent(msg.Type(), source, msg)
	}
	return b.PublishBatch(batch...)
}

// On subscribes fn to every message of type T.
func On[T Message](b bus.EventBus, fn func(T) error) (bus.Subscription, error) {
	var zero T
	return b.Subscribe(zero.Type(), func(e bus.Event) error {
		msg, ok := e.Data().(T)
		if !ok {
			return fmt.Errorf("%w: %s carries %T", ErrPayloadMismatch, e.Type(), e.Data())
		}
		return fn(msg)
	})
}

// Recorder keeps every message published on a bus, in delivery order.
type Recorder struct {
	sub      bus.Subscription
	messages []Message
}

// Record subscribes a Recorder to all events on b.
func Record(b bus.EventBus) (*Recorder, error) {
	r := &Recorder{}
	sub, err := b.SubscribeAll(func(e bus.Event) error {
		if msg, ok := e.Data().(Message); ok {
			r.messages = append(r.messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

func (r *Recorder) Messages() []Message { return r.messages }
func (r *Recorder) Reset()              { r.messages = nil }
func (r *Recorder) Stop() error         { return r.sub.Cancel() }

// Types lists the recorded message types in order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Type()
	}
	return out
}

// Count returns how many recorded messages have the given type.
func (r *Recorder) Count(typ string) int {
	n := 0
	for _, m := range r.messages {
		if m.Type() == typ {
			n++
		}
	}
	return n
}

// Of filters recorded messages down to type T.
func Of[T Message](r *Recorder) []T {
	var out []T
	for _, m := range r.messages {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
