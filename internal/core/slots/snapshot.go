package slots

import (
	"fmt"
	"slices"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

// ContainerState is the persisted form of a container. Reservations are transient and
// never persisted.
type ContainerState struct {
	ID       board.ContainerID `json:"id" yaml:"id"`
	Color    board.Color       `json:"color" yaml:"color"`
	Position geometry.Vec      `json:"position" yaml:"position"`
	Holes    []board.PinID     `json:"holes" yaml:"holes"`
}

type HoldingState struct {
	ID       board.HoldingID `json:"id" yaml:"id"`
	Position geometry.Vec    `json:"position" yaml:"position"`
	Occupant board.PinID     `json:"occupant" yaml:"occupant"`
	Color    board.Color     `json:"color,omitempty" yaml:"color,omitempty"`
}

type Snapshot struct {
	Containers []ContainerState  `json:"containers" yaml:"containers"`
	Holdings   []HoldingState    `json:"holdings" yaml:"holdings"`
	NextID     board.ContainerID `json:"next_id" yaml:"next_id"`
}

// Pins lists every pin referenced by the snapshot.
func (s Snapshot) Pins() []board.PinID {
	var out []board.PinID
	for _, c := range s.Containers {
		for _, p := range c.Holes {
			if p != board.NoPin {
				out = append(out, p)
			}
		}
	}
	for _, h := range s.Holdings {
		if h.Occupant != board.NoPin {
			out = append(out, h.Occupant)
		}
	}
	return out
}

// Snapshot captures containers and holding slots. In-flight reservations are left out.
func (a *Allocator) Snapshot() Snapshot {
	snap := Snapshot{NextID: a.nextID}
	for _, c := range a.containers {
		snap.Containers = append(snap.Containers, ContainerState{
			ID:       c.ID,
			Color:    c.Color,
			Position: c.Position,
			Holes:    slices.Clone(c.holes),
		})
	}
	for _, h := range a.holdings {
		snap.Holdings = append(snap.Holdings, HoldingState{
			ID:       h.ID,
			Position: h.Position,
			Occupant: h.Occupant,
			Color:    h.Color,
		})
	}
	return snap
}

// Restore replaces all slots with the snapshot's. Timers are not started; call Rearm
// once the rest of the session is restored.
func (a *Allocator) Restore(pop Population, snap Snapshot) error {
	if err := a.validateSnapshot(snap); err != nil {
		return err
	}
	a.Clear()
	a.pop = pop
	a.nextID = snap.NextID
	for _, cs := range snap.Containers {
		c := newContainer(cs.ID, cs.Color, cs.Position, len(cs.Holes), a.cfg.HoleSpacing)
		copy(c.holes, cs.Holes)
		c.full = countSet(c.holes) == len(c.holes)
		a.containers = append(a.containers, c)
		if cs.ID > a.nextID {
			a.nextID = cs.ID
		}
	}
	a.holdings = make([]Holding, len(snap.Holdings))
	for i, hs := range snap.Holdings {
		a.holdings[i] = Holding{ID: board.HoldingID(i), Position: hs.Position, Occupant: hs.Occupant, Color: hs.Color}
	}
	return a.Validate()
}

func (a *Allocator) validateSnapshot(snap Snapshot) error {
	ids := make(map[board.ContainerID]struct{})
	for _, cs := range snap.Containers {
		if _, dup := ids[cs.ID]; dup || cs.ID == 0 {
			return fmt.Errorf("%w: container id %d", ErrInvalidSnapshot, cs.ID)
		}
		ids[cs.ID] = struct{}{}
		if !cs.Color.Valid() {
			return fmt.Errorf("%w: container %d color %d", ErrInvalidSnapshot, cs.ID, uint8(cs.Color))
		}
		if len(cs.Holes) != a.cfg.Capacity {
			return fmt.Errorf("%w: container %d has %d holes, want %d", ErrInvalidSnapshot, cs.ID, len(cs.Holes), a.cfg.Capacity)
		}
	}
	for i, hs := range snap.Holdings {
		if int(hs.ID) != i {
			return fmt.Errorf("%w: holding %d listed at index %d", ErrInvalidSnapshot, hs.ID, i)
		}
		if hs.Occupant != board.NoPin && !hs.Color.Valid() {
			return fmt.Errorf("%w: holding %d occupant has no color", ErrInvalidSnapshot, hs.ID)
		}
	}
	seen := make(map[board.PinID]struct{})
	for _, p := range snap.Pins() {
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: pin %d placed twice", ErrInvalidSnapshot, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}
