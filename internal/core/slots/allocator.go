// Package slots allocates destinations for extracted pins: colour-matched containers with
// a reservation layer, and single-pin holding slots with a loss countdown.
//
// The allocator is single-threaded. Every mutation happens inside one synchronous call
// from the routing layer, a scheduler callback or a bus handler.
package slots

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/events"
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/scheduler"
)

const source = "slots"

type Config struct {
	Containers       int           `json:"containers" yaml:"containers"`
	Capacity         int           `json:"capacity" yaml:"capacity"`
	HoleSpacing      float64       `json:"hole_spacing" yaml:"hole_spacing"`
	ContainerOrigin  geometry.Vec  `json:"container_origin" yaml:"container_origin"`
	ContainerSpacing float64       `json:"container_spacing" yaml:"container_spacing"`
	HoldingSlots     int           `json:"holding_slots" yaml:"holding_slots"`
	HoldingOrigin    geometry.Vec  `json:"holding_origin" yaml:"holding_origin"`
	HoldingSpacing   float64       `json:"holding_spacing" yaml:"holding_spacing"`
	FadeDuration     time.Duration `json:"fade_duration" yaml:"fade_duration"`
	HoldingCountdown time.Duration `json:"holding_countdown" yaml:"holding_countdown"`
	Seed             int64         `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Containers:       4,
		Capacity:         3,
		HoleSpacing:      28,
		ContainerOrigin:  geometry.V(160, 60),
		ContainerSpacing: 140,
		HoldingSlots:     5,
		HoldingOrigin:    geometry.V(240, 140),
		HoldingSpacing:   60,
		FadeDuration:     500 * time.Millisecond,
		HoldingCountdown: 5 * time.Second,
		Seed:             1,
	}
}

// Population is the allocator's view of the pins still in play.
type Population interface {
	// ExtractableColors lists colours of pins that could be picked right now.
	ExtractableColors() []board.Color
	// Outstanding counts pins still on the board and not in flight.
	Outstanding() int
}

// Holding is a single-pin buffer slot.
type Holding struct {
	ID       board.HoldingID
	Position geometry.Vec
	Occupant board.PinID
	Color    board.Color
}

func (h Holding) Empty() bool { return h.Occupant == board.NoPin }

type Allocator struct {
	cfg    Config
	bus    bus.EventBus
	sched  *scheduler.Scheduler
	logger log.Log
	rng    *rand.Rand
	pop    Population

	containers []*Container
	holdings   []Holding
	nextID     board.ContainerID

	countdown      scheduler.TaskID
	countdownArmed bool
	// quiet suppresses timer arming while a reset unwinds flights.
	quiet bool
	// stalled holds containers whose replacement failed, in failure order.
	stalled []board.ContainerID
}

func NewAllocator(cfg Config, b bus.EventBus, sched *scheduler.Scheduler, logger log.Log) *Allocator {
	return &Allocator{
		cfg:    cfg,
		bus:    b,
		sched:  sched,
		logger: logger.With(log.String("component", "slots")),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Init discards every slot and lays out fresh containers in the given colours, plus the
// configured number of empty holding slots. Colours beyond the configured container
// count are ignored.
func (a *Allocator) Init(pop Population, colors []board.Color) error {
	a.Clear()
	a.pop = pop
	if len(colors) > a.cfg.Containers {
		colors = colors[:a.cfg.Containers]
	}
	for i, c := range colors {
		if !c.Valid() {
			return fmt.Errorf("init container %d: %w: %d", i, board.ErrUnknownColor, uint8(c))
		}
		pos := geometry.V(a.cfg.ContainerOrigin.X+float64(i)*a.cfg.ContainerSpacing, a.cfg.ContainerOrigin.Y)
		a.containers = append(a.containers, a.newContainer(c, pos))
	}
	a.holdings = make([]Holding, a.cfg.HoldingSlots)
	for i := range a.holdings {
		a.holdings[i] = Holding{
			ID:       board.HoldingID(i),
			Position: geometry.V(a.cfg.HoldingOrigin.X+float64(i)*a.cfg.HoldingSpacing, a.cfg.HoldingOrigin.Y),
		}
	}
	a.logger.Info("Slots initialised",
		log.Int("containers", len(a.containers)),
		log.Int("holding_slots", len(a.holdings)),
	)
	return nil
}

// InitialColors picks up to the configured number of starting colours from active,
// preferring distinct ones.
func (a *Allocator) InitialColors(active []board.Color) []board.Color {
	var out []board.Color
	for range a.cfg.Containers {
		c, err := a.ChooseColor(active, out)
		if err != nil {
			break
		}
		out = append(out, c)
	}
	return out
}

// Clear drops every slot and cancels the allocator's timers.
func (a *Allocator) Clear() {
	for _, c := range a.containers {
		a.cancelRemoval(c)
	}
	a.sched.Cancel(a.countdown)
	a.countdownArmed = false
	a.containers = nil
	a.holdings = nil
	a.stalled = nil
}

func (a *Allocator) newContainer(color board.Color, pos geometry.Vec) *Container {
	a.nextID++
	return newContainer(a.nextID, color, pos, a.cfg.Capacity, a.cfg.HoleSpacing)
}

// Containers returns the live containers in layout order.
func (a *Allocator) Containers() []*Container { return slices.Clone(a.containers) }

func (a *Allocator) Container(id board.ContainerID) (*Container, bool) {
	i := a.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return a.containers[i], true
}

func (a *Allocator) indexOf(id board.ContainerID) int {
	return slices.IndexFunc(a.containers, func(c *Container) bool { return c.ID == id })
}

// FindAvailable returns the first live container of the colour with a free hole.
func (a *Allocator) FindAvailable(color board.Color) (board.ContainerID, bool) {
	for _, c := range a.containers {
		if c.Color == color && !c.pendingRemoval && c.Free() > 0 {
			return c.ID, true
		}
	}
	return 0, false
}

// Reserve claims a hole for pin. Availability is re-derived here, so a stale
// FindAvailable result surfaces as ErrNoFreeHole rather than a double booking.
func (a *Allocator) Reserve(id board.ContainerID, pin board.PinID) (int, error) {
	c, ok := a.Container(id)
	if !ok {
		return -1, fmt.Errorf("reserve: %w: %d", ErrUnknownContainer, id)
	}
	if where, placed := a.Locate(pin); placed {
		return -1, fmt.Errorf("reserve: %w: pin %d at %s", ErrPinAlreadyPlaced, pin, where.Kind)
	}
	hole, err := c.Reserve(pin)
	if err != nil {
		return -1, err
	}
	a.logger.Debug("Hole reserved",
		log.Uint32("container", uint32(id)),
		log.Int("hole", hole),
		log.Uint32("pin", uint32(pin)),
	)
	return hole, nil
}

// Commit settles a reserved pin. Filling the last hole marks the container full and
// schedules its removal.
func (a *Allocator) Commit(id board.ContainerID, hole int, pin board.PinID) error {
	c, ok := a.Container(id)
	if !ok {
		return fmt.Errorf("commit: %w: %d", ErrUnknownContainer, id)
	}
	filled, err := c.Commit(hole, pin)
	if err != nil {
		return err
	}
	if filled {
		a.logger.Info("Container filled", log.Uint32("container", uint32(id)), log.String("color", c.Color.String()))
		a.publish(events.ContainerFilled{Container: id, Color: c.Color})
		if a.quiet {
			return nil
		}
		return a.ScheduleRemoval(id)
	}
	return nil
}

// Rollback releases a reservation made by Reserve.
func (a *Allocator) Rollback(id board.ContainerID, hole int, pin board.PinID) error {
	c, ok := a.Container(id)
	if !ok {
		return fmt.Errorf("rollback: %w: %d", ErrUnknownContainer, id)
	}
	if err := c.Rollback(hole, pin); err != nil {
		return err
	}
	a.logger.Debug("Reservation rolled back",
		log.Uint32("container", uint32(id)),
		log.Int("hole", hole),
		log.Uint32("pin", uint32(pin)),
	)
	return nil
}

// ScheduleRemoval starts the fade timer of a container. Calling it again while the timer
// runs has no effect.
func (a *Allocator) ScheduleRemoval(id board.ContainerID) error {
	c, ok := a.Container(id)
	if !ok {
		return fmt.Errorf("schedule removal: %w: %d", ErrUnknownContainer, id)
	}
	if c.pendingRemoval && a.sched.Pending(c.removalTask) {
		return nil
	}
	c.pendingRemoval = true
	c.removalTask = a.sched.After(a.cfg.FadeDuration, "container-removal", func() {
		a.replace(id)
	})
	return nil
}

func (a *Allocator) cancelRemoval(c *Container) {
	if c.pendingRemoval {
		a.sched.Cancel(c.removalTask)
		c.pendingRemoval = false
	}
}

// ChooseColor picks a colour for a new container. Active colours not listed in exclude
// are preferred; when every active colour is excluded any active colour may be reused.
func (a *Allocator) ChooseColor(active, exclude []board.Color) (board.Color, error) {
	var uniq []board.Color
	for _, c := range active {
		if c.Valid() && !slices.Contains(uniq, c) {
			uniq = append(uniq, c)
		}
	}
	if len(uniq) == 0 {
		return 0, ErrNoActiveColors
	}
	var fresh []board.Color
	for _, c := range uniq {
		if !slices.Contains(exclude, c) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		return fresh[a.rng.Intn(len(fresh))], nil
	}
	return uniq[a.rng.Intn(len(uniq))], nil
}

// ActiveColors are the colours a new container could be satisfied with: extractable
// board pins plus pins sitting in or bound for holding slots.
func (a *Allocator) ActiveColors() []board.Color {
	var out []board.Color
	if a.pop != nil {
		out = append(out, a.pop.ExtractableColors()...)
	}
	for _, c := range board.Palette() {
		if slices.Contains(out, c) {
			continue
		}
		for _, h := range a.holdings {
			if !h.Empty() && h.Color == c {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (a *Allocator) otherColors(id board.ContainerID) []board.Color {
	var out []board.Color
	for _, c := range a.containers {
		if c.ID != id {
			out = append(out, c.Color)
		}
	}
	return out
}

// replace swaps an expired container for a fresh one at the same position. With nothing
// left to collect the container is retired; with pins left but no colour to offer the
// container stays full and the failure is reported.
func (a *Allocator) replace(id board.ContainerID) {
	i := a.indexOf(id)
	if i < 0 {
		return
	}
	old := a.containers[i]
	old.removalTask = scheduler.TaskID{}

	demand := a.OccupiedHoldings()
	if a.pop != nil {
		demand += a.pop.Outstanding()
	}
	if demand == 0 {
		a.containers = slices.Delete(a.containers, i, i+1)
		a.logger.Info("Container retired", log.Uint32("container", uint32(id)))
		a.publish(events.ContainerRetired{Container: id})
		return
	}

	color, err := a.ChooseColor(a.ActiveColors(), a.otherColors(id))
	if err != nil {
		if !slices.Contains(a.stalled, id) {
			a.stalled = append(a.stalled, id)
		}
		a.logger.Error("Container replacement failed",
			log.Uint32("container", uint32(id)),
			log.Int("outstanding", demand),
			log.Error(err),
		)
		a.publish(events.ReplacementFailed{Container: id, Reason: err.Error()})
		return
	}

	fresh := a.newContainer(color, old.Position)
	a.containers[i] = fresh
	a.logger.Info("Container replaced",
		log.Uint32("old", uint32(id)),
		log.Uint32("new", uint32(fresh.ID)),
		log.String("color", color.String()),
	)
	a.publish(events.ContainerReplaced{Old: id, New: fresh.ID, Color: color, Position: fresh.Position})
}

// Stalled lists containers whose replacement is waiting for colours to become active.
func (a *Allocator) Stalled() []board.ContainerID { return slices.Clone(a.stalled) }

// RetryStalled attempts every failed replacement again and returns how many were
// resolved (replaced or retired).
func (a *Allocator) RetryStalled() int {
	pending := a.stalled
	a.stalled = nil
	resolved := 0
	for _, id := range pending {
		a.replace(id)
		if !slices.Contains(a.stalled, id) {
			resolved++
		}
	}
	return resolved
}

// Reset cancels removal timers and the holding countdown without touching occupancy.
// Quiet runs unwind without arming removal timers or the holding countdown, then
// cancels every timer like Reset. Rearm starts what the unwound state calls for.
func (a *Allocator) Quiet(unwind func() error) error {
	a.quiet = true
	err := unwind()
	a.quiet = false
	a.Reset()
	return err
}

func (a *Allocator) Reset() {
	for _, c := range a.containers {
		a.cancelRemoval(c)
	}
	a.stalled = nil
	a.disarmCountdown()
}

// Rearm restarts the timers Reset cancelled: removal of full containers and the
// countdown of a full holding row.
func (a *Allocator) Rearm() {
	for _, c := range a.containers {
		if c.full {
			_ = a.ScheduleRemoval(c.ID)
		}
	}
	a.checkHoldingFull()
}

// Locate finds where a pin is placed, if anywhere.
func (a *Allocator) Locate(pin board.PinID) (board.Destination, bool) {
	if pin == board.NoPin {
		return board.Destination{}, false
	}
	for _, c := range a.containers {
		for i := range c.holes {
			if c.holes[i] == pin || c.reserved[i] == pin {
				return board.ToContainer(c.ID, i), true
			}
		}
	}
	for _, h := range a.holdings {
		if h.Occupant == pin {
			return board.ToHolding(h.ID), true
		}
	}
	return board.Destination{}, false
}

// Validate checks every container's invariants and that no pin appears in two places.
func (a *Allocator) Validate() error {
	seen := make(map[board.PinID]struct{})
	mark := func(pin board.PinID) error {
		if pin == board.NoPin {
			return nil
		}
		if _, dup := seen[pin]; dup {
			return fmt.Errorf("%w: pin %d placed twice", ErrInvariant, pin)
		}
		seen[pin] = struct{}{}
		return nil
	}
	for _, c := range a.containers {
		if err := c.Validate(); err != nil {
			return err
		}
		for i := range c.holes {
			if err := mark(c.holes[i]); err != nil {
				return err
			}
			if err := mark(c.reserved[i]); err != nil {
				return err
			}
		}
	}
	for _, h := range a.holdings {
		if err := mark(h.Occupant); err != nil {
			return err
		}
	}
	return nil
}

func (a *Allocator) publish(msg events.Message) {
	if err := events.Publish(a.bus, source, msg); err != nil {
		a.logger.Warn("Event handler failed", log.String("event", msg.Type()), log.Error(err))
	}
}
