// Package game orchestrates one play session: it routes picked pins to containers or
// holding slots, settles and rolls back flights, and keeps extractability current.
//
// A Session is not safe for concurrent use. One goroutine owns it and feeds it input,
// animation results and ticks; everything it does happens synchronously inside those
// calls.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paulrobello/par-shape-2d/internal/core/blocking"
	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/collision"
	"github.com/paulrobello/par-shape-2d/internal/core/events"
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/flight"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/route"
	"github.com/paulrobello/par-shape-2d/internal/core/scheduler"
	"github.com/paulrobello/par-shape-2d/internal/core/slots"
	"github.com/paulrobello/par-shape-2d/internal/core/transfer"
)

const source = "game"

type BoardConfig struct {
	PinRadius      float64 `json:"pin_radius" yaml:"pin_radius"`
	BlockingMargin float64 `json:"blocking_margin" yaml:"blocking_margin"`
	FallbackWidth  float64 `json:"fallback_width" yaml:"fallback_width"`
	FallbackHeight float64 `json:"fallback_height" yaml:"fallback_height"`
	// Workers bounds the goroutines used to refresh extractability.
	Workers int `json:"workers" yaml:"workers"`
}

type Config struct {
	Board BoardConfig  `json:"board" yaml:"board"`
	Slots slots.Config `json:"slots" yaml:"slots"`
}

func DefaultConfig() Config {
	return Config{
		Board: BoardConfig{
			PinRadius:      12,
			BlockingMargin: 4,
			FallbackWidth:  60,
			FallbackHeight: 60,
			Workers:        4,
		},
		Slots: slots.DefaultConfig(),
	}
}

type Session struct {
	cfg    Config
	bus    bus.EventBus
	sched  *scheduler.Scheduler
	logger log.Log

	board    *board.Board
	engine   *collision.Engine
	resolver *blocking.Resolver
	alloc    *slots.Allocator
	flights  *flight.Tracker
	routes   *route.Table
	transfer *transfer.Coordinator

	lost    bool
	cleared bool
	subs    []bus.Subscription
}

// NewSession wires the session's services and subscribes it to inbound collaborator
// messages on b. Call Load before sending input.
func NewSession(cfg Config, b bus.EventBus, sched *scheduler.Scheduler, logger log.Log) (*Session, error) {
	engine := collision.NewEngine(collision.Rectangle{Width: cfg.Board.FallbackWidth, Height: cfg.Board.FallbackHeight})
	alloc := slots.NewAllocator(cfg.Slots, b, sched, logger)
	flights := flight.NewTracker(b, source, logger)
	routes := route.NewTable(logger)
	resolver := blocking.NewResolver(board.New(), engine, blocking.Config{
		PinRadius: cfg.Board.PinRadius,
		Margin:    cfg.Board.BlockingMargin,
		Workers:   cfg.Board.Workers,
	}, logger)

	s := &Session{
		cfg:      cfg,
		bus:      b,
		sched:    sched,
		logger:   logger.With(log.String("component", "game")),
		engine:   engine,
		resolver: resolver,
		alloc:    alloc,
		flights:  flights,
		routes:   routes,
		transfer: transfer.NewCoordinator(alloc, flights, routes, b, logger),
	}
	if err := s.subscribe(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) subscribe() error {
	if err := s.transfer.Start(); err != nil {
		return err
	}
	subscribers := []func() (bus.Subscription, error){
		func() (bus.Subscription, error) {
			return events.On(s.bus, func(m events.PointerDown) error { return s.PointerDown(m.Point, m.Radius) })
		},
		func() (bus.Subscription, error) {
			return events.On(s.bus, func(m events.AnimationCompleted) error { return s.AnimationCompleted(m.Pin, m.Launch) })
		},
		func() (bus.Subscription, error) {
			return events.On(s.bus, func(m events.AnimationAborted) error { return s.AnimationAborted(m.Pin, m.Launch) })
		},
		func() (bus.Subscription, error) {
			return events.On(s.bus, func(events.HoldingOverflow) error {
				s.lost = true
				s.logger.Warn("Session lost")
				return nil
			})
		},
	}
	for _, sub := range subscribers {
		h, err := sub()
		if err != nil {
			return err
		}
		s.subs = append(s.subs, h)
	}
	return nil
}

// Close cancels the session's subscriptions and pending timers.
func (s *Session) Close() error {
	var all error
	for _, sub := range s.subs {
		all = errors.Join(all, sub.Cancel())
	}
	s.subs = nil
	all = errors.Join(all, s.transfer.Stop())
	s.alloc.Clear()
	return all
}

func (s *Session) Board() *board.Board          { return s.board }
func (s *Session) Allocator() *slots.Allocator  { return s.alloc }
func (s *Session) Flights() *flight.Tracker     { return s.flights }
func (s *Session) Resolver() *blocking.Resolver { return s.resolver }
func (s *Session) Engine() *collision.Engine    { return s.engine }
func (s *Session) Lost() bool                   { return s.lost }
func (s *Session) Cleared() bool                { return s.cleared }

// State is the routing state of a pin.
func (s *Session) State(pin board.PinID) route.State { return s.routes.State(pin) }

// Load starts a fresh game on b. Containers take the given colours; with none given
// they are chosen from the colours that are extractable at the start.
func (s *Session) Load(b *board.Board, colors []board.Color) error {
	s.flights.AbortAll()
	s.sched.CancelAll()
	s.alloc.Clear()
	s.routes.Reset()

	s.board = b
	s.resolver.Reset(b)
	s.transfer.SetBoard(b)
	s.lost = false
	s.cleared = false

	for _, p := range b.Pins() {
		p.Extractable, p.InFlight, p.Settled, p.Target = false, false, false, board.Destination{}
		if p.Removed {
			s.routes.Set(p.ID, route.Settled)
		}
	}
	if _, err := s.refresh(); err != nil {
		return err
	}
	if len(colors) == 0 {
		colors = s.alloc.InitialColors(b.ExtractableColors())
	}
	if err := s.alloc.Init(b, colors); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	s.logger.Info("Level loaded",
		log.Int("shapes", len(b.Shapes())),
		log.Int("pins", len(b.Pins())),
		log.Int("containers", len(colors)),
	)
	return nil
}

// PointerDown selects the front-most pin under the pointer and extracts it.
func (s *Session) PointerDown(point geometry.Vec, radius float64) error {
	if s.board == nil {
		return ErrNoBoard
	}
	id, ok := s.board.PinAt(point, radius, s.cfg.Board.PinRadius)
	if !ok {
		return fmt.Errorf("%w: nothing under (%.1f, %.1f)", ErrPinNotSelectable, point.X, point.Y)
	}
	return s.Extract(id)
}

// Extract routes a pin off the board: it must be Extractable; the cheap bounds check is
// tried first and the exact check has the final word. The destination is a matching
// container, else a holding slot.
func (s *Session) Extract(id board.PinID) error {
	if s.board == nil {
		return ErrNoBoard
	}
	if s.lost || s.cleared {
		return ErrSessionOver
	}
	p, ok := s.board.Pin(id)
	if !ok {
		return fmt.Errorf("extract: %w: %d", board.ErrUnknownPin, id)
	}
	if st := s.routes.State(id); st != route.Extractable {
		return fmt.Errorf("%w: pin %d is %s", ErrPinNotSelectable, id, st)
	}

	if !s.resolver.Check(id, blocking.Bounds) {
		if blockers := s.resolver.Blockers(id, blocking.Exact); len(blockers) > 0 {
			s.publish(events.PinShake{Pin: id, Blockers: blockers})
			p.Extractable = false
			if err := s.routes.Transition(id, route.Blocked); err != nil {
				return err
			}
			s.publish(events.PinBlocked{Pin: id})
			return fmt.Errorf("extract: %w: pin %d", ErrPinBlocked, id)
		}
	}

	dest, to, err := s.reserveDestination(p)
	if err != nil {
		s.publish(events.ExtractRejected{Pin: id, Reason: err.Error()})
		return err
	}
	if err := s.routes.Transition(id, route.Reserved); err != nil {
		return errors.Join(err, s.release(id, dest))
	}
	s.publish(events.PinReserved{Pin: id, Dest: dest})

	p.InFlight = true
	p.Target = dest
	if _, err := s.flights.Start(flight.Launch{
		Pin:  id,
		Kind: events.AnimExtract,
		From: p.Position,
		To:   to,
		Dest: dest,
	}); err != nil {
		return err
	}
	return s.routes.Transition(id, route.InFlight)
}

// reserveDestination claims a container hole, or failing that a holding slot. A stale
// container answer falls through to holding.
func (s *Session) reserveDestination(p *board.Pin) (board.Destination, geometry.Vec, error) {
	if cid, ok := s.alloc.FindAvailable(p.Color); ok {
		hole, err := s.alloc.Reserve(cid, p.ID)
		if err == nil {
			c, _ := s.alloc.Container(cid)
			return board.ToContainer(cid, hole), c.HolePosition(hole), nil
		}
		if !errors.Is(err, slots.ErrNoFreeHole) {
			return board.Destination{}, geometry.Vec{}, err
		}
	}
	if hid, ok := s.alloc.FindAvailableHolding(); ok {
		if err := s.alloc.Occupy(hid, p.ID, p.Color); err != nil {
			return board.Destination{}, geometry.Vec{}, err
		}
		h, _ := s.alloc.Holding(hid)
		return board.ToHolding(hid), h.Position, nil
	}
	return board.Destination{}, geometry.Vec{}, fmt.Errorf("extract: %w: pin %d", ErrNoDestination, p.ID)
}

// release undoes whatever reserveDestination claimed.
func (s *Session) release(pin board.PinID, dest board.Destination) error {
	switch dest.Kind {
	case board.DestContainer:
		return s.alloc.Rollback(dest.Container, dest.Hole, pin)
	case board.DestHolding:
		h, ok := s.alloc.Holding(dest.Holding)
		if !ok || h.Occupant != pin {
			return fmt.Errorf("release: %w: holding %d", slots.ErrReservationMismatch, dest.Holding)
		}
		_, err := s.alloc.Vacate(dest.Holding)
		return err
	}
	return nil
}

// AnimationCompleted settles the pin of a finished launch. A zero launch id matches the
// pin's current launch; messages for launches already consumed are rejected.
func (s *Session) AnimationCompleted(pin board.PinID, launch uuid.UUID) error {
	l, err := s.flights.Take(pin, launch)
	if err != nil {
		s.logger.Debug("Completion ignored", log.Uint32("pin", uint32(pin)), log.Error(err))
		return err
	}
	if l.Kind == events.AnimTransfer {
		err = s.transfer.Complete(l)
	} else {
		err = s.settle(l)
	}
	if _, rerr := s.refresh(); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

func (s *Session) settle(l flight.Launch) error {
	p, ok := s.board.Pin(l.Pin)
	if !ok {
		return fmt.Errorf("settle: %w: %d", board.ErrUnknownPin, l.Pin)
	}

	switch l.Dest.Kind {
	case board.DestContainer:
		if err := s.alloc.Commit(l.Dest.Container, l.Dest.Hole, l.Pin); err != nil {
			s.logger.Error("Commit refused", log.Uint32("pin", uint32(l.Pin)), log.Error(err))
			return errors.Join(err, s.rollback(l))
		}
		p.InFlight, p.Settled = false, true
		if err := s.routes.Transition(l.Pin, route.Settled); err != nil {
			return err
		}
		s.publish(events.PinSettled{Pin: l.Pin, Color: p.Color, Container: l.Dest.Container, Hole: l.Dest.Hole})
		return s.detach(p)

	case board.DestHolding:
		p.InFlight, p.Settled = false, true
		if err := s.routes.Transition(l.Pin, route.Held); err != nil {
			return err
		}
		s.publish(events.PinHeld{Pin: l.Pin, Color: p.Color, Holding: l.Dest.Holding})
		if err := s.detach(p); err != nil {
			return err
		}
		if cid, ok := s.alloc.FindAvailable(p.Color); ok {
			if err := s.transfer.TransferPin(l.Dest.Holding, cid); err != nil {
				s.logger.Debug("Transfer on landing skipped", log.Uint32("pin", uint32(l.Pin)), log.Error(err))
			}
		}
		return nil
	}
	return fmt.Errorf("settle: pin %d has no destination", l.Pin)
}

// detach takes a settled pin off its shape for good.
func (s *Session) detach(p *board.Pin) error {
	cleared, err := s.board.Detach(p.ID)
	if err != nil {
		return err
	}
	if cleared {
		s.logger.Info("Shape cleared", log.Uint32("shape", uint32(p.Shape)))
		s.publish(events.ShapeCleared{Shape: p.Shape})
	}
	return nil
}

// AnimationAborted rolls a launch back to exactly the state before it started.
func (s *Session) AnimationAborted(pin board.PinID, launch uuid.UUID) error {
	l, err := s.flights.Take(pin, launch)
	if err != nil {
		s.logger.Debug("Abort ignored", log.Uint32("pin", uint32(pin)), log.Error(err))
		return err
	}
	err = s.unwind(l)
	if _, rerr := s.refresh(); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

func (s *Session) unwind(l flight.Launch) error {
	if l.Kind == events.AnimTransfer {
		return s.transfer.Abort(l)
	}
	return s.rollback(l)
}

func (s *Session) rollback(l flight.Launch) error {
	p, ok := s.board.Pin(l.Pin)
	if !ok {
		return fmt.Errorf("rollback: %w: %d", board.ErrUnknownPin, l.Pin)
	}
	if err := s.release(l.Pin, l.Dest); err != nil && !errors.Is(err, slots.ErrUnknownContainer) {
		return err
	}
	p.InFlight = false
	p.Target = board.Destination{}
	if err := s.routes.Path(l.Pin, route.RolledBack, route.Extractable); err != nil {
		return err
	}
	s.publish(events.PinRolledBack{Pin: l.Pin, Dest: l.Dest})
	return nil
}

// Tick advances the session clock, firing fade, countdown and tween timers that fall due.
func (s *Session) Tick(dt time.Duration) int { return s.sched.Advance(dt) }

// Reset aborts every flight, newest first so each rollback finds the slots as its launch
// left them, then cancels all timers. Slot occupancy is kept; Resume re-arms the timers.
func (s *Session) Reset() error {
	launches := s.flights.AbortAll()
	all := s.alloc.Quiet(func() error {
		var err error
		for _, l := range launches {
			err = errors.Join(err, s.unwind(l))
		}
		return err
	})
	s.sched.CancelAll()
	if s.board != nil {
		if _, err := s.refresh(); err != nil {
			all = errors.Join(all, err)
		}
	}
	s.logger.Info("Session reset", log.Int("rolled_back", len(launches)))
	s.publish(events.SessionReset{RolledBack: len(launches)})
	return all
}

// Resume restarts the removal and countdown timers a Reset cancelled.
func (s *Session) Resume() { s.alloc.Rearm() }

// UpdateBody feeds a shape's physics state in and re-evaluates extractability.
func (s *Session) UpdateBody(shape board.ShapeID, t geometry.Transform, resolved []geometry.Vec) error {
	if s.board == nil {
		return ErrNoBoard
	}
	if err := s.board.UpdateBody(shape, t, resolved); err != nil {
		return err
	}
	_, err := s.refresh()
	return err
}

func (s *Session) SetLayerVisible(layer board.LayerID, visible bool) error {
	if s.board == nil {
		return ErrNoBoard
	}
	if err := s.board.SetLayerVisible(layer, visible); err != nil {
		return err
	}
	_, err := s.refresh()
	return err
}

// refresh recomputes extractability, mirrors flips into the routing table and retries
// stalled container replacements when new pins became extractable.
func (s *Session) refresh() (blocking.Changes, error) {
	changes, err := s.resolver.Refresh(context.Background())
	if err != nil {
		return changes, err
	}
	var all error
	flips := make([]events.Message, 0, len(changes.Extractable)+len(changes.Blocked))
	for _, id := range changes.Extractable {
		all = errors.Join(all, s.routes.Transition(id, route.Extractable))
		flips = append(flips, events.PinExtractable{Pin: id})
	}
	for _, id := range changes.Blocked {
		all = errors.Join(all, s.routes.Transition(id, route.Blocked))
		flips = append(flips, events.PinBlocked{Pin: id})
	}
	if len(flips) > 0 {
		if err := events.PublishAll(s.bus, source, flips...); err != nil {
			s.logger.Warn("Event handler failed", log.String("event", "extractability"), log.Error(err))
		}
	}
	if len(changes.Extractable) > 0 && len(s.alloc.Stalled()) > 0 {
		s.alloc.RetryStalled()
	}
	if !s.cleared && len(s.board.Shapes()) > 0 && s.board.AllCleared() {
		s.cleared = true
		s.logger.Info("Level cleared")
		s.publish(events.LevelCleared{})
	}
	return changes, all
}

func (s *Session) publish(msg events.Message) {
	if err := events.Publish(s.bus, source, msg); err != nil {
		s.logger.Warn("Event handler failed", log.String("event", msg.Type()), log.Error(err))
	}
}
