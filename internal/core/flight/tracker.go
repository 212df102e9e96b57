// Package flight tracks pin animations between the board and the slots.
//
// Every launch gets a unique id. The renderer ends a launch with exactly one completion
// or abort; whichever arrives first consumes the launch and any later message for it is
// rejected.
package flight

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/events"
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
)

var (
	ErrPinInFlight   = errors.New("pin already in flight")
	ErrUnknownLaunch = errors.New("no active launch")
)

// Launch is one in-flight animation.
type Launch struct {
	ID   uuid.UUID
	Pin  board.PinID
	Kind events.AnimationKind
	From geometry.Vec
	To   geometry.Vec
	Dest board.Destination
	// Origin is the holding slot a transfer left; rollback returns the pin there.
	Origin board.HoldingID
}

type Tracker struct {
	bus    bus.EventBus
	source string
	logger log.Log

	active map[uuid.UUID]Launch
	byPin  map[board.PinID]uuid.UUID
	// order keeps launch ids in start order.
	order []uuid.UUID
}

func NewTracker(b bus.EventBus, source string, logger log.Log) *Tracker {
	return &Tracker{
		bus:    b,
		source: source,
		logger: logger.With(log.String("component", "flight")),
		active: make(map[uuid.UUID]Launch),
		byPin:  make(map[board.PinID]uuid.UUID),
	}
}

// Start registers the launch under a fresh id and asks the renderer to animate it.
func (t *Tracker) Start(l Launch) (Launch, error) {
	if _, busy := t.byPin[l.Pin]; busy {
		return Launch{}, fmt.Errorf("start flight: %w: %d", ErrPinInFlight, l.Pin)
	}
	l.ID = uuid.New()
	t.active[l.ID] = l
	t.byPin[l.Pin] = l.ID
	t.order = append(t.order, l.ID)

	t.logger.Debug("Flight started",
		log.Uint32("pin", uint32(l.Pin)),
		log.String("launch", l.ID.String()),
		log.String("kind", l.Kind.String()),
		log.String("dest", l.Dest.Kind.String()),
	)
	err := events.Publish(t.bus, t.source, events.BeginAnimation{
		Pin:    l.Pin,
		Launch: l.ID,
		From:   l.From,
		To:     l.To,
		Kind:   l.Kind,
		Dest:   l.Dest,
	})
	if err != nil {
		t.logger.Warn("Event handler failed", log.String("event", events.TypeBeginAnimation), log.Error(err))
	}
	return l, nil
}

// Take consumes the active launch of a pin. A non-nil id must match that launch, which
// rejects late messages addressed to an earlier launch of the same pin.
func (t *Tracker) Take(pin board.PinID, id uuid.UUID) (Launch, error) {
	current, ok := t.byPin[pin]
	if !ok || (id != uuid.Nil && id != current) {
		return Launch{}, fmt.Errorf("%w: pin %d launch %s", ErrUnknownLaunch, pin, id)
	}
	l := t.active[current]
	t.forget(current, pin)
	return l, nil
}

func (t *Tracker) forget(id uuid.UUID, pin board.PinID) {
	delete(t.active, id)
	delete(t.byPin, pin)
	t.order = slices.DeleteFunc(t.order, func(o uuid.UUID) bool { return o == id })
}

// Get returns the active launch of a pin without consuming it.
func (t *Tracker) Get(pin board.PinID) (Launch, bool) {
	id, ok := t.byPin[pin]
	if !ok {
		return Launch{}, false
	}
	return t.active[id], true
}

func (t *Tracker) Len() int { return len(t.order) }

// Active lists launches in start order.
func (t *Tracker) Active() []Launch {
	out := make([]Launch, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.active[id])
	}
	return out
}

// AbortAll consumes every active launch and returns them newest first, the order in
// which their effects must be unwound.
func (t *Tracker) AbortAll() []Launch {
	out := t.Active()
	slices.Reverse(out)
	clear(t.active)
	clear(t.byPin)
	t.order = nil
	if len(out) > 0 {
		t.logger.Info("Flights aborted", log.Int("count", len(out)))
	}
	return out
}
