package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/config"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/mq"
	"github.com/CesarCrz/cEatsv2-sub000/internal/domain"
)

// Feed opens branch-scoped subscriptions to the order change feed.
type Feed interface {
	Subscribe(ctx context.Context, branchIDs []string) (Subscription, error)
}

// Subscription is one live feed channel. Events arrive in broker delivery
// order on a single channel; Status reports transport health transitions.
type Subscription interface {
	Events() <-chan domain.FeedEvent
	Status() <-chan Status
	Close() error
}

// RabbitFeed dials a dedicated connection per subscription so that closing
// one dashboard session can never disturb another's consumer.
type RabbitFeed struct {
	cfg config.MQ
	lg  *logger.Logger
}

func NewRabbitFeed(cfg config.MQ) *RabbitFeed {
	return &RabbitFeed{cfg: cfg, lg: logger.New("order-feed")}
}

func (f *RabbitFeed) Subscribe(ctx context.Context, branchIDs []string) (Subscription, error) {
	sub := &rabbitSubscription{
		events: make(chan domain.FeedEvent, 64),
		status: make(chan Status, 8),
		lg:     f.lg,
	}
	sub.pushStatus(StatusConnecting)

	client, err := mq.Dial(f.cfg)
	if err != nil {
		sub.pushStatus(StatusDisconnected)
		close(sub.events)
		return nil, err
	}
	sub.client = client

	if err := client.DeclareAll(); err != nil {
		client.Close()
		sub.pushStatus(StatusDisconnected)
		close(sub.events)
		return nil, err
	}

	keys := make([]string, len(branchIDs))
	for i, id := range branchIDs {
		keys[i] = routingKey(id)
	}
	deliveries, err := client.SubscribeKeys(mq.OrdersExchange, keys, "dashboard-"+uuid.NewString())
	if err != nil {
		client.Close()
		sub.pushStatus(StatusDisconnected)
		close(sub.events)
		return nil, err
	}

	// The consume call returned with a broker ack; only now are we live.
	sub.pushStatus(StatusConnected)
	go sub.watchClose(client.NotifyClose())

	go func() {
		defer close(sub.events)
		defer sub.pushStatus(StatusDisconnected)
		for d := range deliveries {
			var ev domain.FeedEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				f.lg.Error("feed_event_decode_failed", err, map[string]any{"bytes": len(d.Body)})
				continue
			}
			if ev.Row() == nil {
				f.lg.Warn("feed_event_without_record", map[string]any{"kind": ev.Kind})
				continue
			}
			select {
			case sub.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

type rabbitSubscription struct {
	client *mq.Client
	events chan domain.FeedEvent
	status chan Status
	lg     *logger.Logger

	closeOnce sync.Once
}

func (s *rabbitSubscription) Events() <-chan domain.FeedEvent { return s.events }
func (s *rabbitSubscription) Status() <-chan Status           { return s.status }

// Close cancels the consumer; the broker deletes the exclusive queue. The
// delivery channel closing winds down the decode goroutine.
func (s *rabbitSubscription) Close() error {
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.client.Close()
		}
	})
	return nil
}

// watchClose surfaces a broker-side channel error as a disconnect right
// away, without waiting for the delivery channel to drain. A graceful
// client-side close delivers no error and pushes nothing.
func (s *rabbitSubscription) watchClose(closed <-chan *amqp.Error) {
	if amqpErr, ok := <-closed; ok && amqpErr != nil {
		s.lg.Error("feed_channel_closed", amqpErr, nil)
		s.pushStatus(StatusDisconnected)
	}
}

// pushStatus never blocks: a slow reader only loses intermediate
// transitions, not the terminal one.
func (s *rabbitSubscription) pushStatus(st Status) {
	select {
	case s.status <- st:
	default:
	}
}
