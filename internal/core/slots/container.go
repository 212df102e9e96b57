package slots

import (
	"fmt"
	"slices"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
	"github.com/paulrobello/par-shape-2d/internal/core/scheduler"
)

// Container is a fixed-capacity, single-colour collection slot.
//
// Each hole index is in exactly one of three states: free, reserved for a pin in flight,
// or filled by a settled pin. holes and reserved are never both set for the same index;
// the methods below are the only way to move between states.
type Container struct {
	ID       board.ContainerID
	Color    board.Color
	Position geometry.Vec

	holes       []board.PinID
	reserved    []board.PinID
	holeSpacing float64

	full           bool
	pendingRemoval bool
	removalTask    scheduler.TaskID
}

func newContainer(id board.ContainerID, color board.Color, pos geometry.Vec, capacity int, spacing float64) *Container {
	return &Container{
		ID:          id,
		Color:       color,
		Position:    pos,
		holes:       make([]board.PinID, capacity),
		reserved:    make([]board.PinID, capacity),
		holeSpacing: spacing,
	}
}

func (c *Container) Capacity() int           { return len(c.holes) }
func (c *Container) Full() bool              { return c.full }
func (c *Container) PendingRemoval() bool    { return c.pendingRemoval }
func (c *Container) Holes() []board.PinID    { return slices.Clone(c.holes) }
func (c *Container) Reserved() []board.PinID { return slices.Clone(c.reserved) }

// Filled counts settled pins.
func (c *Container) Filled() int { return countSet(c.holes) }

// Free counts holes neither filled nor reserved.
func (c *Container) Free() int { return len(c.holes) - countSet(c.holes) - countSet(c.reserved) }

// Contains reports whether the pin sits in or is reserved for any hole.
func (c *Container) Contains(pin board.PinID) bool {
	return slices.Contains(c.holes, pin) || slices.Contains(c.reserved, pin)
}

// HolePosition is the world position of hole i; holes are laid out horizontally and
// centred on the container.
func (c *Container) HolePosition(i int) geometry.Vec {
	offset := (float64(i) - float64(len(c.holes)-1)/2) * c.holeSpacing
	return geometry.V(c.Position.X+offset, c.Position.Y)
}

// Reserve claims the first free hole for pin.
func (c *Container) Reserve(pin board.PinID) (int, error) {
	if pin == board.NoPin {
		return -1, fmt.Errorf("reserve: %w: pin %d", board.ErrUnknownPin, pin)
	}
	if c.Contains(pin) {
		return -1, fmt.Errorf("reserve: %w: pin %d in container %d", ErrPinAlreadyPlaced, pin, c.ID)
	}
	for i := range c.holes {
		if c.holes[i] == board.NoPin && c.reserved[i] == board.NoPin {
			c.reserved[i] = pin
			return i, nil
		}
	}
	return -1, fmt.Errorf("reserve: %w: container %d", ErrNoFreeHole, c.ID)
}

// Commit moves pin from its reservation into the hole. filled reports that this commit
// completed the container.
func (c *Container) Commit(hole int, pin board.PinID) (filled bool, err error) {
	if err := c.checkReservation(hole, pin); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	c.reserved[hole] = board.NoPin
	c.holes[hole] = pin
	if !c.full && countSet(c.holes) == len(c.holes) {
		c.full = true
		return true, nil
	}
	return false, nil
}

// Rollback releases the reservation, leaving the hole free again.
func (c *Container) Rollback(hole int, pin board.PinID) error {
	if err := c.checkReservation(hole, pin); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	c.reserved[hole] = board.NoPin
	return nil
}

func (c *Container) checkReservation(hole int, pin board.PinID) error {
	if hole < 0 || hole >= len(c.holes) {
		return fmt.Errorf("%w: %d of %d in container %d", ErrHoleOutOfRange, hole, len(c.holes), c.ID)
	}
	if pin == board.NoPin || c.reserved[hole] != pin {
		return fmt.Errorf("%w: container %d hole %d holds reservation %d, not %d",
			ErrReservationMismatch, c.ID, hole, c.reserved[hole], pin)
	}
	return nil
}

// Validate checks mutual exclusion and capacity for every hole.
func (c *Container) Validate() error {
	if len(c.holes) != len(c.reserved) {
		return fmt.Errorf("%w: container %d has %d holes and %d reservations", ErrInvariant, c.ID, len(c.holes), len(c.reserved))
	}
	for i := range c.holes {
		if c.holes[i] != board.NoPin && c.reserved[i] != board.NoPin {
			return fmt.Errorf("%w: container %d hole %d both filled and reserved", ErrInvariant, c.ID, i)
		}
	}
	if countSet(c.holes) == len(c.holes) && !c.full {
		return fmt.Errorf("%w: container %d is complete but not marked full", ErrInvariant, c.ID)
	}
	return nil
}

func countSet(ids []board.PinID) int {
	n := 0
	for _, id := range ids {
		if id != board.NoPin {
			n++
		}
	}
	return n
}
