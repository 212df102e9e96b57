package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
)

const (
	CmdPointerDown        = "pointer_down"
	CmdAnimationCompleted = "animation_completed"
	CmdAnimationAborted   = "animation_aborted"
	CmdReset              = "reset"
	CmdResume             = "resume"
	CmdRestart            = "restart"
	CmdSave               = "save"
	CmdLoad               = "load"
)

const defaultSaveKey = "autosave"

// Command is a client request. Only the fields its type needs are read.
type Command struct {
	Type   string       `json:"type"`
	Point  geometry.Vec `json:"point"`
	Radius float64      `json:"radius,omitempty"`
	Pin    board.PinID  `json:"pin,omitempty"`
	Launch uuid.UUID    `json:"launch"`
	Key    string       `json:"key,omitempty"`
}

func (c Command) saveKey() string {
	if c.Key == "" {
		return defaultSaveKey
	}
	return c.Key
}

// apply runs on the session goroutine.
func (s *Server) apply(ctx context.Context, cmd Command) error {
	s.logger.Debug("Command", log.String("type", cmd.Type), log.Uint32("pin", uint32(cmd.Pin)))
	switch cmd.Type {
	case CmdPointerDown:
		return s.session.PointerDown(cmd.Point, cmd.Radius)
	case CmdAnimationCompleted:
		return s.session.AnimationCompleted(cmd.Pin, cmd.Launch)
	case CmdAnimationAborted:
		return s.session.AnimationAborted(cmd.Pin, cmd.Launch)
	case CmdReset:
		return s.session.Reset()
	case CmdResume:
		s.session.Resume()
		return nil
	case CmdRestart:
		return s.restart()
	case CmdSave:
		if s.store == nil {
			return ErrNoStore
		}
		snap, err := s.session.Snapshot()
		if err != nil {
			return err
		}
		return s.store.Write(ctx, cmd.saveKey(), snap)
	case CmdLoad:
		if s.store == nil {
			return ErrNoStore
		}
		snap, err := s.store.Read(ctx, cmd.saveKey())
		if err != nil {
			return err
		}
		if err := s.restart(); err != nil {
			return err
		}
		return s.session.Restore(snap)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}
