package board

import "errors"

var (
	ErrUnknownColor = errors.New("unknown color")
	ErrUnknownPin   = errors.New("pin not found")
	ErrUnknownShape = errors.New("shape not found")
	ErrUnknownLayer = errors.New("layer not found")
	ErrShapeCleared = errors.New("shape already cleared")
	ErrPinRemoved   = errors.New("pin already removed from its shape")
)
