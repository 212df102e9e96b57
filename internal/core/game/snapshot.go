package game

import (
	"fmt"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/route"
	"github.com/paulrobello/par-shape-2d/internal/core/slots"
)

// Snapshot captures container and holding occupancy. Reservations only exist while pins
// fly, so snapshots are refused until every flight has ended.
func (s *Session) Snapshot() (slots.Snapshot, error) {
	if s.board == nil {
		return slots.Snapshot{}, ErrNoBoard
	}
	if n := s.flights.Len(); n > 0 {
		return slots.Snapshot{}, fmt.Errorf("snapshot: %w: %d", ErrFlightsActive, n)
	}
	return s.alloc.Snapshot(), nil
}

// Restore applies a snapshot to a freshly loaded board: the pins it lists are taken off
// their shapes and marked settled or held, then timers are re-armed.
func (s *Session) Restore(snap slots.Snapshot) error {
	if s.board == nil {
		return ErrNoBoard
	}
	if n := s.flights.Len(); n > 0 {
		return fmt.Errorf("restore: %w: %d", ErrFlightsActive, n)
	}
	for _, p := range s.board.Pins() {
		if p.Settled || p.Removed {
			return fmt.Errorf("restore: %w: pin %d", ErrBoardInProgress, p.ID)
		}
	}
	if err := s.checkSnapshotPins(snap); err != nil {
		return err
	}
	if err := s.alloc.Restore(s.board, snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	for _, cs := range snap.Containers {
		for hole, id := range cs.Holes {
			if id == board.NoPin {
				continue
			}
			if err := s.place(id, board.ToContainer(cs.ID, hole), route.Settled); err != nil {
				return err
			}
		}
	}
	for _, hs := range snap.Holdings {
		if hs.Occupant == board.NoPin {
			continue
		}
		if err := s.place(hs.Occupant, board.ToHolding(hs.ID), route.Held); err != nil {
			return err
		}
	}

	if _, err := s.refresh(); err != nil {
		return err
	}
	s.alloc.Rearm()
	s.logger.Info("Session restored",
		log.Int("containers", len(snap.Containers)),
		log.Int("pins", len(snap.Pins())),
	)
	return nil
}

func (s *Session) checkSnapshotPins(snap slots.Snapshot) error {
	check := func(id board.PinID, color board.Color) error {
		p, ok := s.board.Pin(id)
		if !ok {
			return fmt.Errorf("restore: %w: %w: %d", slots.ErrInvalidSnapshot, board.ErrUnknownPin, id)
		}
		if p.Color != color {
			return fmt.Errorf("restore: %w: pin %d is %s, slot is %s", slots.ErrInvalidSnapshot, id, p.Color, color)
		}
		return nil
	}
	for _, cs := range snap.Containers {
		for _, id := range cs.Holes {
			if id == board.NoPin {
				continue
			}
			if err := check(id, cs.Color); err != nil {
				return err
			}
		}
	}
	for _, hs := range snap.Holdings {
		if hs.Occupant == board.NoPin {
			continue
		}
		if err := check(hs.Occupant, hs.Color); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) place(id board.PinID, dest board.Destination, state route.State) error {
	p, _ := s.board.Pin(id)
	p.Settled = true
	p.Extractable = false
	p.Target = dest
	s.routes.Set(id, state)
	return s.detach(p)
}
