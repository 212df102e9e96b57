package game

import "errors"

var (
	ErrPinNotSelectable = errors.New("pin is not selectable")
	ErrPinBlocked       = errors.New("pin is covered")
	ErrNoDestination    = errors.New("no container or holding slot available")
	ErrSessionOver      = errors.New("session is over")
	ErrNoBoard          = errors.New("no level loaded")
	ErrFlightsActive    = errors.New("flights in progress")
	ErrBoardInProgress  = errors.New("board already has settled pins")
)
