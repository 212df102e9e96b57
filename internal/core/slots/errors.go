package slots

import "errors"

var (
	ErrUnknownContainer    = errors.New("container not found")
	ErrUnknownHolding      = errors.New("holding slot not found")
	ErrNoFreeHole          = errors.New("no free hole in container")
	ErrHoleOutOfRange      = errors.New("hole index out of range")
	ErrReservationMismatch = errors.New("hole is not reserved for this pin")
	ErrPinAlreadyPlaced    = errors.New("pin already occupies a slot")
	ErrHoldingOccupied     = errors.New("holding slot already occupied")
	ErrHoldingEmpty        = errors.New("holding slot is empty")
	ErrNoActiveColors      = errors.New("no active colors to choose from")
	ErrInvalidSnapshot     = errors.New("invalid slot snapshot")
	ErrInvariant           = errors.New("slot invariant violated")
)
