package slots

import (
	"fmt"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/events"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
)

// Holdings returns a copy of the holding row.
func (a *Allocator) Holdings() []Holding {
	out := make([]Holding, len(a.holdings))
	copy(out, a.holdings)
	return out
}

func (a *Allocator) Holding(id board.HoldingID) (Holding, bool) {
	if int(id) >= len(a.holdings) {
		return Holding{}, false
	}
	return a.holdings[id], true
}

// FindAvailableHolding returns the first empty holding slot.
func (a *Allocator) FindAvailableHolding() (board.HoldingID, bool) {
	for _, h := range a.holdings {
		if h.Empty() {
			return h.ID, true
		}
	}
	return 0, false
}

func (a *Allocator) OccupiedHoldings() int {
	n := 0
	for _, h := range a.holdings {
		if !h.Empty() {
			n++
		}
	}
	return n
}

// Occupy places a pin in an empty holding slot.
func (a *Allocator) Occupy(id board.HoldingID, pin board.PinID, color board.Color) error {
	if int(id) >= len(a.holdings) {
		return fmt.Errorf("occupy: %w: %d", ErrUnknownHolding, id)
	}
	if pin == board.NoPin {
		return fmt.Errorf("occupy: %w: pin %d", board.ErrUnknownPin, pin)
	}
	h := &a.holdings[id]
	if !h.Empty() {
		return fmt.Errorf("occupy: %w: holding %d has pin %d", ErrHoldingOccupied, id, h.Occupant)
	}
	if where, placed := a.Locate(pin); placed {
		return fmt.Errorf("occupy: %w: pin %d at %s", ErrPinAlreadyPlaced, pin, where.Kind)
	}
	h.Occupant = pin
	h.Color = color
	a.logger.Debug("Holding occupied", log.Uint32("holding", uint32(id)), log.Uint32("pin", uint32(pin)))
	a.checkHoldingFull()
	return nil
}

// Vacate empties a holding slot and returns the pin that was in it.
func (a *Allocator) Vacate(id board.HoldingID) (board.PinID, error) {
	if int(id) >= len(a.holdings) {
		return board.NoPin, fmt.Errorf("vacate: %w: %d", ErrUnknownHolding, id)
	}
	h := &a.holdings[id]
	if h.Empty() {
		return board.NoPin, fmt.Errorf("vacate: %w: %d", ErrHoldingEmpty, id)
	}
	pin := h.Occupant
	h.Occupant = board.NoPin
	h.Color = 0
	a.logger.Debug("Holding vacated", log.Uint32("holding", uint32(id)), log.Uint32("pin", uint32(pin)))
	a.checkHoldingFull()
	return pin, nil
}

// CountdownArmed reports whether the holding-full countdown is running.
func (a *Allocator) CountdownArmed() bool { return a.countdownArmed }

// checkHoldingFull arms the countdown on the transition into "every slot occupied" and
// cancels it on the transition out. Unchanged state publishes nothing.
func (a *Allocator) checkHoldingFull() {
	if a.quiet {
		return
	}
	full := len(a.holdings) > 0 && a.OccupiedHoldings() == len(a.holdings)
	switch {
	case full && !a.countdownArmed:
		a.countdownArmed = true
		a.countdown = a.sched.After(a.cfg.HoldingCountdown, "holding-countdown", a.overflow)
		a.logger.Warn("Holding slots full", log.Duration("countdown", a.cfg.HoldingCountdown))
		a.publish(events.HoldingFull{Countdown: a.cfg.HoldingCountdown.Seconds()})
	case !full && a.countdownArmed:
		a.disarmCountdown()
	}
}

func (a *Allocator) disarmCountdown() {
	if !a.countdownArmed {
		return
	}
	a.sched.Cancel(a.countdown)
	a.countdownArmed = false
	a.logger.Info("Holding countdown cancelled")
	a.publish(events.HoldingCountdownCancelled{})
}

func (a *Allocator) overflow() {
	a.countdownArmed = false
	a.logger.Warn("Holding countdown expired")
	a.publish(events.HoldingOverflow{})
}
