package board

import (
	"fmt"
	"strings"

	"github.com/paulrobello/par-shape-2d/internal/core/collision"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

type (
	PinID       uint32
	ShapeID     uint32
	LayerID     uint32
	ContainerID uint32
	HoldingID   uint32
)

// NoPin marks an empty hole or holding slot. Real ids start at 1.
const NoPin PinID = 0

// Color is the pin/container colour enumeration.
type Color uint8

const (
	Red Color = iota + 1
	Blue
	Green
	Yellow
	Purple
	Orange
	Pink
	Brown
)

var colorNames = map[Color]string{
	Red:    "red",
	Blue:   "blue",
	Green:  "green",
	Yellow: "yellow",
	Purple: "purple",
	Orange: "orange",
	Pink:   "pink",
	Brown:  "brown",
}

// Palette lists every colour in declaration order.
func Palette() []Color {
	return []Color{Red, Blue, Green, Yellow, Purple, Orange, Pink, Brown}
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("color(%d)", uint8(c))
}

func (c Color) Valid() bool {
	_, ok := colorNames[c]
	return ok
}

// ParseColor accepts the lower-case colour name.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range colorNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownColor, s)
}

func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownColor, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DestinationKind says which slot family a pin is bound for.
type DestinationKind uint8

const (
	DestNone DestinationKind = iota
	DestContainer
	DestHolding
)

func (k DestinationKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k DestinationKind) String() string {
	switch k {
	case DestContainer:
		return "container"
	case DestHolding:
		return "holding"
	default:
		return "none"
	}
}

// Destination references the slot a pin is reserved in, flying to, or resting in.
type Destination struct {
	Kind      DestinationKind `json:"kind"`
	Container ContainerID     `json:"container,omitempty"`
	Hole      int             `json:"hole"`
	Holding   HoldingID       `json:"holding"`
}

func ToContainer(id ContainerID, hole int) Destination {
	return Destination{Kind: DestContainer, Container: id, Hole: hole}
}

func ToHolding(id HoldingID) Destination {
	return Destination{Kind: DestHolding, Holding: id}
}

// Pin is a coloured screw fixed to a shape.
type Pin struct {
	ID    PinID
	Shape ShapeID
	Color Color
	// Local is the pin's offset in its shape's frame; Position follows the shape.
	Local    geometry.Vec
	Position geometry.Vec

	Extractable bool
	InFlight    bool
	Settled     bool
	// Removed is set once the pin has left its shape for good.
	Removed bool
	Target  Destination
}

// Shape is one physical piece on the board.
type Shape struct {
	ID      ShapeID
	Layer   LayerID
	Depth   int
	Body    collision.Body
	Pins    []PinID
	Cleared bool
}

// Layer groups shapes that share a depth index. Lower depth is closer to the player.
type Layer struct {
	ID      LayerID
	Depth   int
	Visible bool
	Shapes  []ShapeID
}
