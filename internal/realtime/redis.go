package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const channelPrefix = "realtime:"

// RedisBroker shares the change feed between instances. Publish sends the
// event to Redis only; Run feeds every event seen on Redis, including this
// instance's own, into the local hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger
}

func NewRedisBroker(client *redis.Client, hub *Hub, log *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, log: log}
}

func (b *RedisBroker) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("encode realtime event", zap.Error(err))
		return
	}
	ctx := context.Background()
	if err := b.client.Publish(ctx, channelPrefix+ev.Table, payload).Err(); err != nil {
		// Redis is down: local screens still get the event.
		b.log.Error("publish realtime event", zap.String("table", ev.Table), zap.Error(err))
		b.hub.Publish(ev)
	}
}

// Run blocks until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("bad realtime payload", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if ev.Table == "" {
				ev.Table = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			b.hub.Publish(ev)
		}
	}
}
