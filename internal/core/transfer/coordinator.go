// Package transfer moves pins out of holding slots into freshly coloured containers.
package transfer

import (
	"errors"
	"fmt"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/events"
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/flight"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/route"
	"github.com/paulrobello/par-shape-2d/internal/core/slots"
)

const source = "transfer"

var (
	ErrNotTransferable = errors.New("held pin is not transferable")
	ErrRollbackLost    = errors.New("no holding slot to return pin to")
)

type Coordinator struct {
	board   *board.Board
	alloc   *slots.Allocator
	flights *flight.Tracker
	routes  *route.Table
	bus     bus.EventBus
	logger  log.Log
	sub     bus.Subscription
}

func NewCoordinator(
	alloc *slots.Allocator,
	flights *flight.Tracker,
	routes *route.Table,
	b bus.EventBus,
	logger log.Log,
) *Coordinator {
	return &Coordinator{
		alloc:   alloc,
		flights: flights,
		routes:  routes,
		bus:     b,
		logger:  logger.With(log.String("component", "transfer")),
	}
}

// SetBoard points the coordinator at the live pin registry.
func (c *Coordinator) SetBoard(b *board.Board) { c.board = b }

// Start subscribes to container replacements.
func (c *Coordinator) Start() error {
	sub, err := events.On(c.bus, func(m events.ContainerReplaced) error {
		c.TransferMatching(m.New, m.Color)
		return nil
	})
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

func (c *Coordinator) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Cancel()
}

// TransferMatching launches every held pin of the colour toward the container, in
// holding order, until the container runs out of holes. It returns the number launched.
func (c *Coordinator) TransferMatching(container board.ContainerID, color board.Color) int {
	launched := 0
	for _, h := range c.alloc.Holdings() {
		if h.Empty() || h.Color != color {
			continue
		}
		err := c.TransferPin(h.ID, container)
		switch {
		case err == nil:
			launched++
		case errors.Is(err, slots.ErrNoFreeHole):
			return launched
		default:
			c.logger.Debug("Held pin skipped", log.Uint32("holding", uint32(h.ID)), log.Error(err))
		}
	}
	if launched > 0 {
		c.logger.Info("Held pins transferred",
			log.Uint32("container", uint32(container)),
			log.String("color", color.String()),
			log.Int("count", launched),
		)
	}
	return launched
}

// validate re-reads the pin from the live registry; the holding slot's view of it may be
// out of date.
func (c *Coordinator) validate(pin board.PinID, color board.Color) (*board.Pin, error) {
	if c.board == nil {
		return nil, fmt.Errorf("%w: no board", ErrNotTransferable)
	}
	p, ok := c.board.Pin(pin)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %d", ErrNotTransferable, board.ErrUnknownPin, pin)
	}
	if p.InFlight || p.Color != color || c.routes.State(pin) != route.Held {
		return nil, fmt.Errorf("%w: pin %d is %s", ErrNotTransferable, pin, c.routes.State(pin))
	}
	return p, nil
}

// TransferPin reserves a hole for the held pin, vacates its holding slot in the same
// call and launches the flight.
func (c *Coordinator) TransferPin(holding board.HoldingID, container board.ContainerID) error {
	h, ok := c.alloc.Holding(holding)
	if !ok || h.Empty() {
		return fmt.Errorf("transfer: %w: %d", slots.ErrHoldingEmpty, holding)
	}
	target, ok := c.alloc.Container(container)
	if !ok {
		return fmt.Errorf("transfer: %w: %d", slots.ErrUnknownContainer, container)
	}
	if target.Color != h.Color {
		return fmt.Errorf("transfer: %w: container %d is %s, pin is %s", ErrNotTransferable, container, target.Color, h.Color)
	}
	if target.Free() == 0 {
		return fmt.Errorf("transfer: %w: container %d", slots.ErrNoFreeHole, container)
	}
	p, err := c.validate(h.Occupant, h.Color)
	if err != nil {
		return err
	}

	// The pin is never listed in the holding slot and the container at once.
	if _, err := c.alloc.Vacate(holding); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	hole, err := c.alloc.Reserve(container, p.ID)
	if err != nil {
		if rerr := c.alloc.Occupy(holding, p.ID, p.Color); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	dest := board.ToContainer(container, hole)
	if err := c.routes.Transition(p.ID, route.Reserved); err != nil {
		return errors.Join(err, c.alloc.Rollback(container, hole, p.ID), c.alloc.Occupy(holding, p.ID, p.Color))
	}
	c.publish(events.PinReserved{Pin: p.ID, Dest: dest})

	p.InFlight = true
	p.Target = dest
	if _, err := c.flights.Start(flight.Launch{
		Pin:    p.ID,
		Kind:   events.AnimTransfer,
		From:   h.Position,
		To:     target.HolePosition(hole),
		Dest:   dest,
		Origin: holding,
	}); err != nil {
		return err
	}
	return c.routes.Transition(p.ID, route.InFlight)
}

// Complete commits a finished transfer. A commit the container refuses is unwound like
// an abort.
func (c *Coordinator) Complete(l flight.Launch) error {
	p, ok := c.board.Pin(l.Pin)
	if !ok {
		return fmt.Errorf("complete transfer: %w: %d", board.ErrUnknownPin, l.Pin)
	}
	if err := c.settle(p, l); err != nil {
		c.logger.Warn("Transfer commit refused", log.Uint32("pin", uint32(l.Pin)), log.Error(err))
		return errors.Join(err, c.Abort(l))
	}
	return nil
}

func (c *Coordinator) settle(p *board.Pin, l flight.Launch) error {
	if err := c.alloc.Commit(l.Dest.Container, l.Dest.Hole, l.Pin); err != nil {
		return err
	}
	p.InFlight = false
	p.Settled = true
	p.Target = l.Dest
	if err := c.routes.Transition(l.Pin, route.Settled); err != nil {
		return err
	}
	c.publish(events.PinTransferred{Pin: l.Pin, From: l.Origin, Container: l.Dest.Container, Hole: l.Dest.Hole})
	return nil
}

// Abort returns the pin to the holding slot it left, or to any free holding slot when
// that one has been taken meanwhile, and releases its reservation. With every holding
// slot taken the pin keeps its reservation and settles into the reserved hole.
func (c *Coordinator) Abort(l flight.Launch) error {
	p, ok := c.board.Pin(l.Pin)
	if !ok {
		return fmt.Errorf("abort transfer: %w: %d", board.ErrUnknownPin, l.Pin)
	}

	home, found := c.returnSlot(l.Origin)
	if !found {
		c.logger.Warn("No holding slot to return to, settling transfer", log.Uint32("pin", uint32(l.Pin)))
		if err := c.settle(p, l); err != nil {
			c.logger.Error("Transfer rollback has nowhere to go", log.Uint32("pin", uint32(l.Pin)), log.Error(err))
			return fmt.Errorf("abort transfer: %w: pin %d: %w", ErrRollbackLost, l.Pin, err)
		}
		return nil
	}

	if err := c.alloc.Rollback(l.Dest.Container, l.Dest.Hole, l.Pin); err != nil && !errors.Is(err, slots.ErrUnknownContainer) {
		return err
	}
	if err := c.alloc.Occupy(home, l.Pin, p.Color); err != nil {
		return err
	}

	p.InFlight = false
	p.Target = board.ToHolding(home)
	if err := c.routes.Path(l.Pin, route.RolledBack, route.Held); err != nil {
		return err
	}
	c.publish(events.PinRolledBack{Pin: l.Pin, Dest: l.Dest})
	return nil
}

func (c *Coordinator) returnSlot(origin board.HoldingID) (board.HoldingID, bool) {
	if h, ok := c.alloc.Holding(origin); ok && h.Empty() {
		return origin, true
	}
	return c.alloc.FindAvailableHolding()
}

func (c *Coordinator) publish(msg events.Message) {
	if err := events.Publish(c.bus, source, msg); err != nil {
		c.logger.Warn("Event handler failed", log.String("event", msg.Type()), log.Error(err))
	}
}
