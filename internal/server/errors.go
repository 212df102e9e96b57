package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed      = errors.New("server is closed")
	ErrMaxClientsReached = errors.New("maximum clients reached")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrNoStore           = errors.New("no snapshot store configured")
	ErrNoLevel           = errors.New("no level configured")
)
