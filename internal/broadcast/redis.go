package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a Channel over redis PUB/SUB, shared by every process connected to
// the same server.
type Redis struct {
	client  *redis.Client
	channel string
	id      string
	logger  *zap.Logger
}

func OpenRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	id := uuid.NewString()

	return &Redis{
		client:  client,
		channel: ChannelName,
		id:      id,
		logger:  logger.With(zap.String("endpoint", id)),
	}
}

func (r *Redis) ID() string {
	return r.id
}

func (r *Redis) Publish(ctx context.Context, m Message) error {
	m.Origin = r.id

	payload, err := Encode(m)
	if err != nil {
		return err
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

func (r *Redis) Subscribe(ctx context.Context) (<-chan Message, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Message, subscriberBuffer)

	go func() {
		defer close(out)
		defer func() {
			if err := pubsub.Close(); err != nil {
				r.logger.Debug("Closing redis subscription", zap.Error(err))
			}
		}()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}

				m, err := Decode([]byte(msg.Payload))
				if err != nil {
					r.logger.Warn("Ignoring sync message", zap.Error(err))
					continue
				}
				if r.skip(m) {
					continue
				}

				select {
				case out <- m:
				default:
					r.logger.Warn("Dropping sync message for slow subscriber")
				}
			}
		}
	}()

	return out, nil
}

func (r *Redis) skip(m Message) bool {
	return m.Origin == r.id || !m.IsSyncUpdate()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
