// Package redisnotify fans dispatcher wake-ups out across processes with
// Redis pub/sub. Messages carry no task data; subscribers only wake up and
// poll their store.
package redisnotify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/meetrec/internal/task"
	"github.com/redis/go-redis/v9"
)

const wakeMessage = "wake"

// Notifier implements task.Notifier over a Redis channel.
type Notifier struct {
	client  redis.UniversalClient
	channel string
	local   *task.LocalNotifier
	ready   chan struct{}
	logger  *slog.Logger
}

var _ task.Notifier = (*Notifier)(nil)

// New creates a Notifier on an existing client.
func New(client redis.UniversalClient, channel string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client:  client,
		channel: channel,
		local:   task.NewLocalNotifier(),
		ready:   make(chan struct{}),
		logger:  logger.With("component", "redis_notifier", "channel", channel),
	}
}

// Dial connects to the Redis server at rawURL and creates a Notifier.
func Dial(ctx context.Context, rawURL, channel string, logger *slog.Logger) (*Notifier, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client, channel, logger), nil
}

// Notify wakes local workers and publishes a wake-up for other processes.
// Local workers are woken even when publishing fails.
func (n *Notifier) Notify(ctx context.Context) error {
	_ = n.local.Notify(ctx)
	if err := n.client.Publish(ctx, n.channel, wakeMessage).Err(); err != nil {
		return fmt.Errorf("failed to publish wake-up: %w", err)
	}
	return nil
}

// Wake implements task.Notifier.
func (n *Notifier) Wake() <-chan struct{} {
	return n.local.Wake()
}

// Ready is closed once Run has subscribed to the channel.
func (n *Notifier) Ready() <-chan struct{} {
	return n.ready
}

// Run subscribes to the channel and turns every message into a local wake-up
// until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}
	close(n.ready)
	n.logger.Info("subscribed to wake-up channel")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			n.logger.Debug("wake-up received", "payload", msg.Payload)
			_ = n.local.Notify(ctx)
		}
	}
}

// Ping checks the connection to Redis.
func (n *Notifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (n *Notifier) Close() error {
	return n.client.Close()
}
