// Package watch delivers record store snapshots to subscribers whenever the
// underlying table changes.
package watch

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"local-cache/internal/entity"
	"local-cache/internal/logs"
	"local-cache/internal/metrics"
	"local-cache/internal/store"
)

const topicPrefix = "cache.changed."

func topic(kind entity.Kind) string {
	return topicPrefix + string(kind)
}

// Hub fans change notices out to subscribers, one topic per entity kind.
type Hub struct {
	pubsub  *gochannel.GoChannel
	logger  *logs.Logger
	metrics *metrics.Registry
}

// NewHub creates an in-process hub.
func NewHub(logger *logs.Logger, reg *metrics.Registry) *Hub {
	return &Hub{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 16},
			watermill.NopLogger{},
		),
		logger:  logger,
		metrics: reg,
	}
}

// Notify announces that the table of kind changed through op.
// Notices published while nobody subscribes are dropped.
func (h *Hub) Notify(kind entity.Kind, op string) {
	msg := message.NewMessage(uuid.NewString(), nil)
	msg.Metadata.Set("kind", string(kind))
	msg.Metadata.Set("op", op)

	if err := h.pubsub.Publish(topic(kind), msg); err != nil {
		h.logger.Warn("watch notify failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// Close stops every subscription.
func (h *Hub) Close() error {
	return h.pubsub.Close()
}

// Subscription is a live snapshot feed. It stays active until Cancel.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops deliveries and waits for the feed goroutine to exit.
// It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe delivers the current snapshot of table immediately and a fresh
// one after every change notice for kind. Deliveries happen on a single
// goroutine, in order.
func Subscribe[K comparable, R any](
	h *Hub,
	kind entity.Kind,
	table store.Table[K, R],
	deliver func([]store.Cached[R]),
) (*Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := h.pubsub.Subscribe(ctx, topic(kind))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	push := func() {
		snapshot, err := table.GetAll(ctx)
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Failure("watch snapshot failed", err, zap.String("kind", string(kind)))
			}
			return
		}
		h.metrics.Inc(metrics.WatchDeliveryTotal)
		deliver(snapshot)
	}

	go func() {
		defer close(sub.done)

		push()
		for msg := range msgs {
			msg.Ack()
			push()
		}
	}()

	return sub, nil
}
