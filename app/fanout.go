package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/cache"
	"options-flow-tracker/store"
)

type readModelSource interface {
	Subscribe() (<-chan *store.ReadModel, func())
}

type readModelBroadcaster interface {
	Broadcast(event string, payload interface{})
}

type readModelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// fanout forwards every published read model to the SSE broker and, when configured,
// the Redis channel
type fanout struct {
	source    readModelSource
	broker    readModelBroadcaster
	publisher readModelPublisher
	log       *logrus.Entry
}

func newFanout(source readModelSource, broker readModelBroadcaster, publisher readModelPublisher, logger *logrus.Logger) *fanout {
	return &fanout{
		source:    source,
		broker:    broker,
		publisher: publisher,
		log:       logger.WithField("component", "fanout"),
	}
}

// Run forwards until ctx is done or the source closes the subscription
func (f *fanout) Run(ctx context.Context) {
	updates, cancel := f.source.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case rm, ok := <-updates:
			if !ok {
				return
			}
			if rm == nil {
				continue
			}
			f.broker.Broadcast("state", rm)
			if f.publisher != nil {
				if err := f.publisher.Publish(ctx, cache.ReadModelChannel, rm); err != nil {
					f.log.WithError(err).Debug("Failed to publish read model")
				}
			}
		}
	}
}
