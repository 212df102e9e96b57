package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/collision"
	"github.com/paulrobello/par-shape-2d/internal/core/events"
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/flight"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/route"
	"github.com/paulrobello/par-shape-2d/internal/core/scheduler"
	"github.com/paulrobello/par-shape-2d/internal/core/slots"
)

type fixture struct {
	s     *Session
	bus   bus.EventBus
	sched *scheduler.Scheduler
	rec   *events.Recorder
	board *board.Board
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Board.Workers = 2
	cfg.Slots.Containers = 2
	cfg.Slots.HoldingSlots = 2
	cfg.Slots.FadeDuration = time.Second
	cfg.Slots.HoldingCountdown = 5 * time.Second
	return cfg
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	b := bus.New()
	rec, err := events.Record(b)
	require.NoError(t, err)
	sched := scheduler.New(log.NewNop())
	s, err := NewSession(cfg, b, sched, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{s: s, bus: b, sched: sched, rec: rec}
}

// row builds one shape on a single layer with a pin of each colour, 50 units apart.
// Pin ids follow argument order starting at 1.
func row(t *testing.T, colors ...board.Color) *board.Board {
	t.Helper()
	b := board.New()
	layer := b.AddLayer(1, true)
	shape, err := b.AddShape(layer, collision.Body{Geometry: collision.Rectangle{Width: 1000, Height: 100}})
	require.NoError(t, err)
	for i, c := range colors {
		_, err := b.AddPin(shape, c, geometry.V(float64(i)*50-400, 0))
		require.NoError(t, err)
	}
	return b
}

func (f *fixture) load(t *testing.T, b *board.Board, containers ...board.Color) {
	t.Helper()
	f.board = b
	require.NoError(t, f.s.Load(b, containers))
	f.rec.Reset()
}

func (f *fixture) complete(t *testing.T, pin board.PinID) {
	t.Helper()
	require.NoError(t, f.s.AnimationCompleted(pin, uuid.Nil))
}

func (f *fixture) launch(t *testing.T, pin board.PinID) flight.Launch {
	t.Helper()
	l, ok := f.s.Flights().Get(pin)
	require.True(t, ok, "pin %d is not in flight", pin)
	return l
}

func TestExtractSettlesInMatchingContainer(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t, row(t, board.Red, board.Blue), board.Red, board.Blue)
	assert.Equal(t, route.Extractable, f.s.State(1))

	require.NoError(t, f.s.Extract(1))
	assert.Equal(t, route.InFlight, f.s.State(1))
	begins := events.Of[events.BeginAnimation](f.rec)
	require.Len(t, begins, 1)
	assert.Equal(t, events.AnimExtract, begins[0].Kind)
	assert.Equal(t, board.DestContainer, begins[0].Dest.Kind)
	p, _ := f.board.Pin(1)
	assert.Equal(t, 1, f.board.Outstanding(), "a launched pin is no longer outstanding")
	assert.True(t, p.InFlight)

	f.complete(t, 1)
	assert.Equal(t, route.Settled, f.s.State(1))
	settled := events.Of[events.PinSettled](f.rec)
	require.Len(t, settled, 1)
	c, ok := f.s.Allocator().Container(settled[0].Container)
	require.True(t, ok)
	assert.Equal(t, board.Red, c.Color)
	assert.Equal(t, board.PinID(1), c.Holes()[settled[0].Hole])
	assert.True(t, p.Removed)
	require.NoError(t, f.s.Allocator().Validate())
}

func TestPointerDownPicksFrontMostPin(t *testing.T) {
	f := newFixture(t, testConfig())
	b := row(t, board.Red, board.Blue)
	front := b.AddLayer(0, true)
	cover, err := b.AddShape(front, collision.Body{
		Transform: geometry.Transform{Position: geometry.V(-400, 0)},
		Geometry:  collision.Rectangle{Width: 40, Height: 40},
	})
	require.NoError(t, err)
	top, err := b.AddPin(cover, board.Green, geometry.Vec{})
	require.NoError(t, err)
	f.load(t, b, board.Green, board.Blue)
	assert.Equal(t, route.Blocked, f.s.State(1))

	require.NoError(t, f.s.PointerDown(geometry.V(-400, 0), 4))
	assert.Equal(t, route.InFlight, f.s.State(top))

	err = f.s.PointerDown(geometry.V(2000, 2000), 4)
	assert.ErrorIs(t, err, ErrPinNotSelectable)
	assert.ErrorIs(t, f.s.Extract(1), ErrPinNotSelectable, "covered pin is not selectable")
}

func TestStaleExtractabilityShakes(t *testing.T) {
	f := newFixture(t, testConfig())
	b := row(t, board.Red, board.Blue)
	front := b.AddLayer(0, true)
	cover, err := b.AddShape(front, collision.Body{
		Transform: geometry.Transform{Position: geometry.V(300, 300)},
		Geometry:  collision.Rectangle{Width: 40, Height: 40},
	})
	require.NoError(t, err)
	_, err = b.AddPin(cover, board.Green, geometry.Vec{})
	require.NoError(t, err)
	f.load(t, b, board.Red, board.Blue)
	require.Equal(t, route.Extractable, f.s.State(1))

	// The cover slides over pin 1 without a refresh.
	require.NoError(t, b.UpdateBody(cover, geometry.Transform{Position: geometry.V(-400, 0)}, nil))

	err = f.s.Extract(1)
	assert.ErrorIs(t, err, ErrPinBlocked)
	shakes := events.Of[events.PinShake](f.rec)
	require.Len(t, shakes, 1)
	assert.Equal(t, []board.ShapeID{cover}, shakes[0].Blockers)
	assert.Equal(t, route.Blocked, f.s.State(1))
	assert.Zero(t, f.s.Flights().Len())
	assert.Zero(t, f.rec.Count(events.TypePinReserved))
}

func TestUpdateBodyRefreshesExtractability(t *testing.T) {
	f := newFixture(t, testConfig())
	b := row(t, board.Red, board.Blue)
	front := b.AddLayer(0, true)
	cover, err := b.AddShape(front, collision.Body{
		Transform: geometry.Transform{Position: geometry.V(-400, 0)},
		Geometry:  collision.Circle{Radius: 20},
	})
	require.NoError(t, err)
	_, err = b.AddPin(cover, board.Green, geometry.Vec{})
	require.NoError(t, err)
	f.load(t, b, board.Red, board.Blue)
	require.Equal(t, route.Blocked, f.s.State(1))

	require.NoError(t, f.s.UpdateBody(cover, geometry.Transform{Position: geometry.V(300, 300)}, nil))
	assert.Equal(t, route.Extractable, f.s.State(1))
	assert.Equal(t, 1, f.rec.Count(events.TypePinExtractable))

	require.NoError(t, f.s.SetLayerVisible(front, true))
	require.NoError(t, f.s.UpdateBody(cover, geometry.Transform{Position: geometry.V(-400, 0)}, nil))
	assert.Equal(t, route.Blocked, f.s.State(1))

	// A hidden layer blocks nothing.
	require.NoError(t, f.s.SetLayerVisible(front, false))
	assert.Equal(t, route.Extractable, f.s.State(1))
}

func TestHoldingFallbackAndOverflow(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t, row(t, board.Blue, board.Green, board.Yellow, board.Red), board.Red, board.Pink)

	require.NoError(t, f.s.Extract(1))
	l := f.launch(t, 1)
	assert.Equal(t, board.ToHolding(0), l.Dest)
	assert.Zero(t, f.rec.Count(events.TypeHoldingFull))

	require.NoError(t, f.s.Extract(2))
	assert.Equal(t, 1, f.rec.Count(events.TypeHoldingFull), "full once, at the transition")
	assert.True(t, f.s.Allocator().CountdownArmed())

	err := f.s.Extract(3)
	assert.ErrorIs(t, err, ErrNoDestination)
	rejected := events.Of[events.ExtractRejected](f.rec)
	require.Len(t, rejected, 1)
	assert.Equal(t, board.PinID(3), rejected[0].Pin)
	assert.Equal(t, route.Extractable, f.s.State(3), "a rejected pin stays put")

	f.complete(t, 1)
	assert.Equal(t, route.Held, f.s.State(1))
	assert.Equal(t, 1, f.rec.Count(events.TypePinHeld))
	assert.Equal(t, 1, f.rec.Count(events.TypeHoldingFull))

	f.s.Tick(5 * time.Second)
	assert.Equal(t, 1, f.rec.Count(events.TypeHoldingOverflow))
	assert.True(t, f.s.Lost())
	assert.ErrorIs(t, f.s.Extract(4), ErrSessionOver)
}

func TestReplacementTransfersHeldPin(t *testing.T) {
	cfg := testConfig()
	cfg.Slots.Containers = 1
	f := newFixture(t, cfg)
	f.load(t, row(t, board.Red, board.Red, board.Red, board.Red), board.Red)

	for pin := board.PinID(1); pin <= 4; pin++ {
		require.NoError(t, f.s.Extract(pin))
	}
	assert.Equal(t, board.ToHolding(0), f.launch(t, 4).Dest, "fourth red waits in holding")
	for pin := board.PinID(1); pin <= 4; pin++ {
		f.complete(t, pin)
	}
	assert.Equal(t, 1, f.rec.Count(events.TypeContainerFilled))
	assert.Equal(t, route.Held, f.s.State(4))
	assert.Equal(t, 1, f.rec.Count(events.TypeLevelCleared))
	assert.True(t, f.s.Cleared())

	f.s.Tick(time.Second)
	replaced := events.Of[events.ContainerReplaced](f.rec)
	require.Len(t, replaced, 1)
	assert.Equal(t, board.Red, replaced[0].Color)
	l := f.launch(t, 4)
	assert.Equal(t, events.AnimTransfer, l.Kind)
	assert.Equal(t, replaced[0].New, l.Dest.Container)
	h, _ := f.s.Allocator().Holding(0)
	assert.True(t, h.Empty())

	f.complete(t, 4)
	assert.Equal(t, route.Settled, f.s.State(4))
	assert.Equal(t, 1, f.rec.Count(events.TypePinTransferred))
	require.NoError(t, f.s.Allocator().Validate())
	assert.Equal(t, 1, f.rec.Count(events.TypeLevelCleared), "level cleared is published once")
}

func TestHoldingCountdownCancelledByTransfer(t *testing.T) {
	f := newFixture(t, testConfig())
	b := row(t, board.Blue, board.Green, board.Red, board.Red, board.Red, board.Yellow)
	f.load(t, b, board.Red, board.Yellow)

	require.NoError(t, f.s.Extract(1))
	require.NoError(t, f.s.Extract(2))
	f.complete(t, 1)
	f.complete(t, 2)
	require.Equal(t, 1, f.rec.Count(events.TypeHoldingFull))

	for pin := board.PinID(3); pin <= 5; pin++ {
		require.NoError(t, f.s.Extract(pin))
		f.complete(t, pin)
	}
	f.s.Tick(time.Second)

	replaced := events.Of[events.ContainerReplaced](f.rec)
	require.Len(t, replaced, 1)
	assert.Contains(t, []board.Color{board.Blue, board.Green}, replaced[0].Color)
	assert.Equal(t, 1, f.rec.Count(events.TypeHoldingCountdownCancelled))
	assert.False(t, f.s.Allocator().CountdownArmed())

	f.s.Tick(10 * time.Second)
	assert.Zero(t, f.rec.Count(events.TypeHoldingOverflow))
	assert.False(t, f.s.Lost())
}

func TestResetRollsBackEveryFlight(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t, row(t, board.Red, board.Blue, board.Green), board.Red, board.Yellow)

	require.NoError(t, f.s.Extract(1))
	require.NoError(t, f.s.Extract(2))
	require.NoError(t, f.s.Extract(3))
	stale := f.launch(t, 1)
	require.True(t, f.s.Allocator().CountdownArmed())

	require.NoError(t, f.s.Reset())
	for pin := board.PinID(1); pin <= 3; pin++ {
		assert.Equal(t, route.Extractable, f.s.State(pin))
		p, _ := f.board.Pin(pin)
		assert.False(t, p.InFlight)
		assert.False(t, p.Removed)
	}
	assert.Zero(t, f.s.Flights().Len())
	for _, c := range f.s.Allocator().Containers() {
		assert.Equal(t, c.Capacity(), c.Free(), "container %d keeps no reservation", c.ID)
	}
	assert.Zero(t, f.s.Allocator().OccupiedHoldings())
	assert.False(t, f.s.Allocator().CountdownArmed())
	assert.Equal(t, 3, f.rec.Count(events.TypePinRolledBack))
	resets := events.Of[events.SessionReset](f.rec)
	require.Len(t, resets, 1)
	assert.Equal(t, 3, resets[0].RolledBack)
	require.NoError(t, f.s.Allocator().Validate())

	assert.ErrorIs(t, f.s.AnimationCompleted(1, stale.ID), flight.ErrUnknownLaunch)
	assert.Equal(t, route.Extractable, f.s.State(1))
}

// transferScene fills the only (red) container, holds both greens and lets the fade
// replace the container with a green one, so both held greens are mid-transfer. Two
// yellow pins wait on a hidden layer; showing it makes them extractable.
func transferScene(t *testing.T) (*fixture, board.LayerID, *slots.Container) {
	t.Helper()
	cfg := testConfig()
	cfg.Slots.Containers = 1
	f := newFixture(t, cfg)

	b := row(t, board.Red, board.Red, board.Red, board.Green, board.Green)
	back := b.AddLayer(2, false)
	shape, err := b.AddShape(back, collision.Body{
		Transform: geometry.Transform{Position: geometry.V(0, 500)},
		Geometry:  collision.Circle{Radius: 50},
	})
	require.NoError(t, err)
	for _, x := range []float64{-20, 20} {
		_, err := b.AddPin(shape, board.Yellow, geometry.V(x, 0))
		require.NoError(t, err)
	}
	f.load(t, b, board.Red)

	for pin := board.PinID(1); pin <= 5; pin++ {
		require.NoError(t, f.s.Extract(pin))
		f.complete(t, pin)
	}
	require.Equal(t, route.Held, f.s.State(4))
	require.Equal(t, route.Held, f.s.State(5))

	f.s.Tick(time.Second)
	replaced := events.Of[events.ContainerReplaced](f.rec)
	require.Len(t, replaced, 1)
	require.Equal(t, board.Green, replaced[0].Color)
	require.Equal(t, events.AnimTransfer, f.launch(t, 4).Kind)
	require.Equal(t, events.AnimTransfer, f.launch(t, 5).Kind)
	require.Zero(t, f.s.Allocator().OccupiedHoldings())

	green, ok := f.s.Allocator().Container(replaced[0].New)
	require.True(t, ok)
	return f, back, green
}

func TestResetReturnsTransfersToTheirHolding(t *testing.T) {
	f, _, green := transferScene(t)
	f.rec.Reset()

	require.NoError(t, f.s.Reset())

	for slot, pin := range []board.PinID{4, 5} {
		h, _ := f.s.Allocator().Holding(board.HoldingID(slot))
		assert.Equal(t, pin, h.Occupant)
		assert.Equal(t, board.Green, h.Color)
		assert.Equal(t, route.Held, f.s.State(pin))
		p, _ := f.board.Pin(pin)
		assert.False(t, p.InFlight)
		assert.Equal(t, board.ToHolding(board.HoldingID(slot)), p.Target)
	}
	assert.Equal(t, []board.PinID{0, 0, 0}, green.Reserved())
	assert.Equal(t, green.Capacity(), green.Free())
	assert.Zero(t, f.s.Flights().Len())
	assert.Equal(t, 2, f.rec.Count(events.TypePinRolledBack))
	assert.Zero(t, f.rec.Count(events.TypeHoldingFull), "a reset raises no holding alarm")
	assert.Zero(t, f.rec.Count(events.TypeHoldingCountdownCancelled))
	assert.False(t, f.s.Allocator().CountdownArmed())
	require.NoError(t, f.s.Allocator().Validate())

	f.s.Resume()
	assert.True(t, f.s.Allocator().CountdownArmed())
	assert.Equal(t, 1, f.rec.Count(events.TypeHoldingFull))
}

func TestResetSettlesTransfersWhenHoldingRefilled(t *testing.T) {
	f, back, green := transferScene(t)
	require.NoError(t, f.s.SetLayerVisible(back, true))
	for _, pin := range []board.PinID{6, 7} {
		require.Equal(t, route.Extractable, f.s.State(pin))
		require.NoError(t, f.s.Extract(pin))
		f.complete(t, pin)
		require.Equal(t, route.Held, f.s.State(pin))
	}
	require.True(t, f.s.Allocator().CountdownArmed())
	f.rec.Reset()

	require.NoError(t, f.s.Reset())

	holes := green.Holes()
	for _, pin := range []board.PinID{4, 5} {
		assert.Contains(t, holes, pin, "pin %d settles into its reserved hole", pin)
		assert.Equal(t, route.Settled, f.s.State(pin))
		p, _ := f.board.Pin(pin)
		assert.False(t, p.InFlight)
		where, placed := f.s.Allocator().Locate(pin)
		require.True(t, placed)
		assert.Equal(t, board.DestContainer, where.Kind)
	}
	assert.Equal(t, []board.PinID{0, 0, 0}, green.Reserved())
	for slot, pin := range []board.PinID{6, 7} {
		h, _ := f.s.Allocator().Holding(board.HoldingID(slot))
		assert.Equal(t, pin, h.Occupant)
	}
	assert.Zero(t, f.s.Flights().Len())
	assert.Zero(t, f.rec.Count(events.TypePinRolledBack))
	assert.Equal(t, 2, f.rec.Count(events.TypePinTransferred))
	assert.Zero(t, f.rec.Count(events.TypeHoldingFull))
	assert.Equal(t, 1, f.rec.Count(events.TypeHoldingCountdownCancelled), "the armed countdown is cancelled once")
	require.NoError(t, f.s.Allocator().Validate())
}

func TestAbortRestoresPreLaunchState(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t, row(t, board.Red, board.Blue), board.Red, board.Yellow)

	require.NoError(t, f.s.Extract(2))
	l := f.launch(t, 2)
	require.Equal(t, board.DestHolding, l.Dest.Kind)

	require.NoError(t, f.s.AnimationAborted(2, l.ID))
	assert.Equal(t, route.Extractable, f.s.State(2))
	assert.Zero(t, f.s.Allocator().OccupiedHoldings())
	assert.Equal(t, 1, f.rec.Count(events.TypePinRolledBack))

	assert.ErrorIs(t, f.s.AnimationAborted(2, l.ID), flight.ErrUnknownLaunch)
	assert.ErrorIs(t, f.s.AnimationCompleted(2, l.ID), flight.ErrUnknownLaunch)
	assert.Equal(t, 1, f.rec.Count(events.TypePinRolledBack))
}

func TestDuplicateCompletionIsRejected(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t, row(t, board.Red, board.Red), board.Red, board.Blue)

	require.NoError(t, f.s.Extract(1))
	l := f.launch(t, 1)
	require.NoError(t, f.s.AnimationCompleted(1, l.ID))
	assert.ErrorIs(t, f.s.AnimationCompleted(1, l.ID), flight.ErrUnknownLaunch)
	assert.ErrorIs(t, f.s.AnimationAborted(1, l.ID), flight.ErrUnknownLaunch)
	assert.Equal(t, 1, f.rec.Count(events.TypePinSettled))
	assert.Equal(t, route.Settled, f.s.State(1))
}

func TestBusDrivenSession(t *testing.T) {
	f := newFixture(t, testConfig())
	tw := flight.NewTweener(flight.Config{Speed: 1000, MinDuration: 100 * time.Millisecond}, f.bus, f.sched, log.NewNop())
	require.NoError(t, tw.Start())
	t.Cleanup(func() { _ = tw.Stop() })
	f.load(t, row(t, board.Red, board.Blue), board.Red, board.Blue)

	require.NoError(t, events.Publish(f.bus, "input", events.PointerDown{Point: geometry.V(-400, 0), Radius: 2}))
	assert.Equal(t, route.InFlight, f.s.State(1))

	f.s.Tick(5 * time.Second)
	assert.Equal(t, route.Settled, f.s.State(1))
	assert.Equal(t, 1, f.rec.Count(events.TypeAnimationCompleted))
	assert.Equal(t, 1, f.rec.Count(events.TypePinSettled))
}

func TestOperationsNeedABoard(t *testing.T) {
	f := newFixture(t, testConfig())
	assert.ErrorIs(t, f.s.Extract(1), ErrNoBoard)
	assert.ErrorIs(t, f.s.PointerDown(geometry.Vec{}, 1), ErrNoBoard)
	_, err := f.s.Snapshot()
	assert.ErrorIs(t, err, ErrNoBoard)
	assert.NoError(t, f.s.Reset())
}

func TestSnapshotRestore(t *testing.T) {
	colors := []board.Color{board.Red, board.Blue, board.Green, board.Red}
	f := newFixture(t, testConfig())
	f.load(t, row(t, colors...), board.Red, board.Yellow)

	require.NoError(t, f.s.Extract(1))
	_, err := f.s.Snapshot()
	assert.ErrorIs(t, err, ErrFlightsActive)
	f.complete(t, 1)
	require.NoError(t, f.s.Extract(2))
	f.complete(t, 2)

	snap, err := f.s.Snapshot()
	require.NoError(t, err)
	assert.ElementsMatch(t, []board.PinID{1, 2}, snap.Pins())
	assert.ErrorIs(t, f.s.Restore(snap), ErrBoardInProgress)

	g := newFixture(t, testConfig())
	g.load(t, row(t, colors...), board.Red, board.Yellow)
	require.NoError(t, g.s.Restore(snap))

	assert.Equal(t, route.Settled, g.s.State(1))
	assert.Equal(t, route.Held, g.s.State(2))
	p, _ := g.board.Pin(2)
	assert.True(t, p.Removed)
	assert.Equal(t, board.ToHolding(0), p.Target)
	assert.Equal(t, route.Extractable, g.s.State(3))
	require.NoError(t, g.s.Allocator().Validate())

	// Another red goes into the same container.
	require.NoError(t, g.s.Extract(4))
	assert.Equal(t, board.DestContainer, g.launch(t, 4).Dest.Kind)
}

func TestRestoreRejectsMismatchedPins(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t, row(t, board.Red, board.Blue), board.Red, board.Yellow)
	require.NoError(t, f.s.Extract(1))
	f.complete(t, 1)
	snap, err := f.s.Snapshot()
	require.NoError(t, err)

	g := newFixture(t, testConfig())
	g.load(t, row(t, board.Blue, board.Red), board.Red, board.Yellow)
	assert.Error(t, g.s.Restore(snap))
	assert.Equal(t, route.Extractable, g.s.State(1))
}
