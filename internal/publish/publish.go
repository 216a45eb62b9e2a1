// Package publish gives rotation fan-out a concrete, minimal home: it fans completed
// rotations out to any number of independent subscribers without knowing
// anything about what they do with them (message construction, angle
// clamping, topic publication are each a subscriber's own concern).
package publish

import (
	"context"

	"github.com/cskr/pubsub"
	"github.com/sirupsen/logrus"

	"github.com/dividat/lidar-driver/internal/lidar"
)

const rotationsTopic = "rotations"

// Bus fans completed rotations out to subscribers.
type Bus struct {
	broker *pubsub.PubSub
	log    *logrus.Entry
}

// NewBus returns a Bus ready to accept subscribers. capacity bounds how
// many pending rotations each subscriber channel buffers before Publish
// starts dropping for that subscriber (mirrors senso.DeviceBackend's
// broker, sized per-subscriber rather than globally).
func NewBus(ctx context.Context, log *logrus.Entry, capacity int) *Bus {
	b := &Bus{
		broker: pubsub.New(capacity),
		log:    log,
	}

	go func() {
		<-ctx.Done()
		b.broker.Shutdown()
	}()

	return b
}

// Subscribe returns a channel of completed rotations. Call Unsubscribe
// with the same channel when the consumer is done.
func (b *Bus) Subscribe() chan interface{} {
	return b.broker.Sub(rotationsTopic)
}

// Unsubscribe stops delivering to ch and closes it.
func (b *Bus) Unsubscribe(ch chan interface{}) {
	b.broker.Unsub(ch)
}

// Publish hands one completed rotation to every current subscriber. It
// never blocks: subscribers that aren't keeping up miss rotations rather
// than stalling the acquisition pump, consistent with the driver's
// "most recent complete rotation" freshness contract.
func (b *Bus) Publish(nodes []lidar.Node) {
	b.log.WithField("samples", len(nodes)).Debug("publishing rotation")
	b.broker.TryPub(nodes, rotationsTopic)
}
