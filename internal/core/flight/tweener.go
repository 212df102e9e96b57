package flight

import (
	"time"

	"github.com/paulrobello/par-shape-2d/internal/core/events"
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/scheduler"
)

type Config struct {
	// Speed is in world units per second.
	Speed       float64       `json:"speed" yaml:"speed"`
	MinDuration time.Duration `json:"min_duration" yaml:"min_duration"`
}

func DefaultConfig() Config {
	return Config{Speed: 900, MinDuration: 150 * time.Millisecond}
}

// Duration is how long a tween from a to b lasts.
func (c Config) Duration(a, b geometry.Vec) time.Duration {
	d := c.MinDuration
	if c.Speed > 0 {
		travel := time.Duration(geometry.Distance(a, b) / c.Speed * float64(time.Second))
		d = max(d, travel)
	}
	return d
}

// Tweener is a headless renderer: it answers every BeginAnimation with an
// AnimationCompleted once the tween's duration has elapsed on the scheduler clock.
type Tweener struct {
	cfg    Config
	bus    bus.EventBus
	sched  *scheduler.Scheduler
	logger log.Log
	sub    bus.Subscription
}

func NewTweener(cfg Config, b bus.EventBus, sched *scheduler.Scheduler, logger log.Log) *Tweener {
	return &Tweener{
		cfg:    cfg,
		bus:    b,
		sched:  sched,
		logger: logger.With(log.String("component", "tweener")),
	}
}

func (t *Tweener) Start() error {
	sub, err := events.On(t.bus, func(m events.BeginAnimation) error {
		d := t.cfg.Duration(m.From, m.To)
		t.sched.After(d, "tween", func() {
			err := events.Publish(t.bus, "tweener", events.AnimationCompleted{Pin: m.Pin, Launch: m.Launch})
			if err != nil {
				t.logger.Debug("Completion rejected", log.Uint32("pin", uint32(m.Pin)), log.Error(err))
			}
		})
		return nil
	})
	if err != nil {
		return err
	}
	t.sub = sub
	return nil
}

func (t *Tweener) Stop() error {
	if t.sub == nil {
		return nil
	}
	return t.sub.Cancel()
}
