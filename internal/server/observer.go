package server

import (
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
)

// slowDelivery is the delivery time, in microseconds, above which a message is logged.
const slowDelivery = 2000

// busObserver logs failed and slow deliveries. Registering it also turns on the bus
// counters reported by /healthz.
type busObserver struct {
	logger log.Log
}

func (o busObserver) OnPublish(string, bus.Event) {}

func (o busObserver) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	if err != nil {
		o.logger.Warn("Message handlers failed",
			log.String("type", eventType),
			log.Int("handlers", handlers),
			log.Error(err),
		)
		return
	}
	if durationMicros > slowDelivery {
		o.logger.Debug("Slow message delivery",
			log.String("type", eventType),
			log.Int("handlers", handlers),
			log.Int64("micros", durationMicros),
		)
	}
}
