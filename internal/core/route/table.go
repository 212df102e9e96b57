// Package route holds the per-pin routing state machine.
//
//	Blocked <-> Extractable -> Reserved -> InFlight -> Settled
//	                                        |    \-> Held -> Reserved (transfer)
//	                                        \-> RolledBack -> Extractable | Held
//
// Held is "settled in a holding slot": terminal for the board, but a transfer can move
// the pin on into a container.
package route

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kamstrup/intmap"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
)

type State uint8

const (
	Blocked State = iota
	Extractable
	Reserved
	InFlight
	Held
	Settled
	RolledBack
)

var stateNames = [...]string{
	Blocked:     "blocked",
	Extractable: "extractable",
	Reserved:    "reserved",
	InFlight:    "in_flight",
	Held:        "held",
	Settled:     "settled",
	RolledBack:  "rolled_back",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

var ErrInvalidTransition = errors.New("invalid routing transition")

var transitions = map[State][]State{
	Blocked:     {Extractable},
	Extractable: {Blocked, Reserved},
	Reserved:    {InFlight, RolledBack},
	InFlight:    {Settled, Held, RolledBack},
	Held:        {Reserved},
	RolledBack:  {Extractable, Held},
	Settled:     nil,
}

// Allowed reports whether from -> to is a legal transition.
func Allowed(from, to State) bool { return slices.Contains(transitions[from], to) }

// Table tracks the routing state of every pin. Pins never seen are Blocked.
type Table struct {
	states *intmap.Map[board.PinID, State]
	logger log.Log
}

func NewTable(logger log.Log) *Table {
	return &Table{
		states: intmap.New[board.PinID, State](256),
		logger: logger.With(log.String("component", "route")),
	}
}

func (t *Table) State(pin board.PinID) State {
	s, _ := t.states.Get(pin)
	return s
}

// Transition moves the pin to a new state, refusing moves the machine does not allow.
func (t *Table) Transition(pin board.PinID, to State) error {
	from := t.State(pin)
	if !Allowed(from, to) {
		return fmt.Errorf("%w: pin %d %s -> %s", ErrInvalidTransition, pin, from, to)
	}
	t.states.Put(pin, to)
	t.logger.Debug("Pin routed",
		log.Uint32("pin", uint32(pin)),
		log.String("from", from.String()),
		log.String("to", to.String()),
	)
	return nil
}

// Path applies several transitions in order, stopping at the first illegal one.
func (t *Table) Path(pin board.PinID, states ...State) error {
	for _, s := range states {
		if err := t.Transition(pin, s); err != nil {
			return err
		}
	}
	return nil
}

// Set forces a state without validation. Used when loading or restoring a board.
func (t *Table) Set(pin board.PinID, s State) { t.states.Put(pin, s) }

func (t *Table) Reset() { t.states.Clear() }

// Count returns how many pins are in the state.
func (t *Table) Count(s State) int {
	n := 0
	t.states.ForEach(func(_ board.PinID, v State) bool {
		if v == s {
			n++
		}
		return true
	})
	return n
}
