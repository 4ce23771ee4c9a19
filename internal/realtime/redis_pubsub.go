package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "session:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Kind SignalKind      `json:"kind"`
	Data json.RawMessage `json:"data"`
	At   int64           `json:"at"`
}

// RedisPubSub bridges session signals over Redis pub/sub so every instance
// delivers them to its local subscribers. Delivery is at-least-once and
// nothing is retained: subscribers joining later never see earlier signals.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for session signals.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishSessionSignal publishes a signal to the session's Redis channel.
func (r *RedisPubSub) PublishSessionSignal(sessionID uuid.UUID, kind SignalKind, payload []byte) error {
	channel := channelPrefix + sessionID.String()
	body, err := json.Marshal(redisPayload{Kind: kind, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channel, body).Err()
}

// SubscribeSession subscribes to a session's Redis channel and calls handler
// for each signal. Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeSession(sessionID uuid.UUID, handler func(kind SignalKind, payload []byte)) (cancel func(), err error) {
	channel := channelPrefix + sessionID.String()
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	_, err = pubsub.Receive(ctx)
	if err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					continue
				}
				handler(p.Kind, p.Data)
			}
		}
	}()
	cancel = func() { cancelCtx() }
	return cancel, nil
}
