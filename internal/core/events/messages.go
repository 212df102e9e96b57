// Package events defines the typed messages the puzzle core exchanges with its
// collaborators (input, renderer/physics, scoring/UI) over the in-process bus.
package events

import (
	"github.com/google/uuid"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

// Message is implemented by every payload carried on the bus. Type must not depend on
// the receiver's field values.
type Message interface {
	Type() string
}

const (
	TypePointerDown        = "input.pointer_down"
	TypeBeginAnimation     = "animation.begin"
	TypeAnimationCompleted = "animation.completed"
	TypeAnimationAborted   = "animation.aborted"

	TypePinExtractable  = "pin.extractable"
	TypePinBlocked      = "pin.blocked"
	TypePinShake        = "pin.shake"
	TypeExtractRejected = "pin.extract_rejected"
	TypePinReserved     = "pin.reserved"
	TypePinSettled      = "pin.settled"
	TypePinHeld         = "pin.held"
	TypePinTransferred  = "pin.transferred"
	TypePinRolledBack   = "pin.rolled_back"

	TypeContainerFilled   = "container.filled"
	TypeContainerReplaced = "container.replaced"
	TypeContainerRetired  = "container.retired"
	TypeReplacementFailed = "container.replacement_failed"

	TypeHoldingFull               = "holding.full"
	TypeHoldingCountdownCancelled = "holding.countdown_cancelled"
	TypeHoldingOverflow           = "holding.overflow"

	TypeShapeCleared = "shape.cleared"
	TypeLevelCleared = "level.cleared"
	TypeSessionReset = "session.reset"
)

// AnimationKind distinguishes a pin pulled from the board from one moved out of holding.
type AnimationKind uint8

const (
	AnimExtract AnimationKind = iota
	AnimTransfer
)

func (k AnimationKind) String() string {
	if k == AnimTransfer {
		return "transfer"
	}
	return "extract"
}

func (k AnimationKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// PointerDown is the input collaborator's selection at a world point.
type PointerDown struct {
	Point  geometry.Vec `json:"point"`
	Radius float64      `json:"radius"`
}

// BeginAnimation asks the renderer to move a pin. The renderer answers with exactly one
// AnimationCompleted or AnimationAborted carrying the same Launch.
type BeginAnimation struct {
	Pin    board.PinID       `json:"pin"`
	Launch uuid.UUID         `json:"launch"`
	From   geometry.Vec      `json:"from"`
	To     geometry.Vec      `json:"to"`
	Kind   AnimationKind     `json:"kind"`
	Dest   board.Destination `json:"dest"`
}

type AnimationCompleted struct {
	Pin    board.PinID `json:"pin"`
	Launch uuid.UUID   `json:"launch"`
}

type AnimationAborted struct {
	Pin    board.PinID `json:"pin"`
	Launch uuid.UUID   `json:"launch"`
}

type PinExtractable struct {
	Pin board.PinID `json:"pin"`
}

type PinBlocked struct {
	Pin board.PinID `json:"pin"`
}

// PinShake is feedback for a click on a covered pin.
type PinShake struct {
	Pin      board.PinID     `json:"pin"`
	Blockers []board.ShapeID `json:"blockers"`
}

type ExtractRejected struct {
	Pin    board.PinID `json:"pin"`
	Reason string      `json:"reason"`
}

type PinReserved struct {
	Pin  board.PinID       `json:"pin"`
	Dest board.Destination `json:"dest"`
}

// PinSettled reports a pin committed into a container hole.
type PinSettled struct {
	Pin       board.PinID       `json:"pin"`
	Color     board.Color       `json:"color"`
	Container board.ContainerID `json:"container"`
	Hole      int               `json:"hole"`
}

// PinHeld reports a pin resting in a holding slot.
type PinHeld struct {
	Pin     board.PinID     `json:"pin"`
	Color   board.Color     `json:"color"`
	Holding board.HoldingID `json:"holding"`
}

// PinTransferred reports a held pin committed into a container.
type PinTransferred struct {
	Pin       board.PinID       `json:"pin"`
	From      board.HoldingID   `json:"from"`
	Container board.ContainerID `json:"container"`
	Hole      int               `json:"hole"`
}

type PinRolledBack struct {
	Pin  board.PinID       `json:"pin"`
	Dest board.Destination `json:"dest"`
}

type ContainerFilled struct {
	Container board.ContainerID `json:"container"`
	Color     board.Color       `json:"color"`
}

// ContainerReplaced announces a fresh, empty container taking Old's position.
type ContainerReplaced struct {
	Old      board.ContainerID `json:"old"`
	New      board.ContainerID `json:"new"`
	Color    board.Color       `json:"color"`
	Position geometry.Vec      `json:"position"`
}

type ContainerRetired struct {
	Container board.ContainerID `json:"container"`
}

// ReplacementFailed is a visible fault: pins remain but none has a colour to offer.
type ReplacementFailed struct {
	Container board.ContainerID `json:"container"`
	Reason    string            `json:"reason"`
}

type HoldingFull struct {
	Countdown float64 `json:"countdown_seconds"`
}

type HoldingCountdownCancelled struct{}

type HoldingOverflow struct{}

type ShapeCleared struct {
	Shape board.ShapeID `json:"shape"`
}

type LevelCleared struct{}

type SessionReset struct {
	RolledBack int `json:"rolled_back"`
}

func (PointerDown) Type() string               { return TypePointerDown }
func (BeginAnimation) Type() string            { return TypeBeginAnimation }
func (AnimationCompleted) Type() string        { return TypeAnimationCompleted }
func (AnimationAborted) Type() string          { return TypeAnimationAborted }
func (PinExtractable) Type() string            { return TypePinExtractable }
func (PinBlocked) Type() string                { return TypePinBlocked }
func (PinShake) Type() string                  { return TypePinShake }
func (ExtractRejected) Type() string           { return TypeExtractRejected }
func (PinReserved) Type() string               { return TypePinReserved }
func (PinSettled) Type() string                { return TypePinSettled }
func (PinHeld) Type() string                   { return TypePinHeld }
func (PinTransferred) Type() string            { return TypePinTransferred }
func (PinRolledBack) Type() string             { return TypePinRolledBack }
func (ContainerFilled) Type() string           { return TypeContainerFilled }
func (ContainerReplaced) Type() string         { return TypeContainerReplaced }
func (ContainerRetired) Type() string          { return TypeContainerRetired }
func (ReplacementFailed) Type() string         { return TypeReplacementFailed }
func (HoldingFull) Type() string               { return TypeHoldingFull }
func (HoldingCountdownCancelled) Type() string { return TypeHoldingCountdownCancelled }
func (HoldingOverflow) Type() string           { return TypeHoldingOverflow }
func (ShapeCleared) Type() string              { return TypeShapeCleared }
func (LevelCleared) Type() string              { return TypeLevelCleared }
func (SessionReset) Type() string              { return TypeSessionReset }
