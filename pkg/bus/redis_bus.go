package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mikobot/pkg/logger"
)

// RedisBus publishes messages over Redis pub/sub so producers and the
// channel adapters can run in separate processes. Each platform channel
// maps to one topic under the configured prefix.
type RedisBus struct {
	log    *logger.Logger
	client *redis.Client
	prefix string

	handlers map[string][]Handler
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pubsub *redis.PubSub

	sent      atomic.Uint64
	delivered atomic.Uint64
	errors    atomic.Uint64
}

// RedisBusConfig configures the Redis bus.
type RedisBusConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBus creates a new Redis-based message bus.
func NewRedisBus(log *logger.Logger, cfg *RedisBusConfig) (*RedisBus, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "mikobot:bus:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &RedisBus{
		log:      log,
		client:   client,
		prefix:   cfg.Prefix,
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}

	log.Info("Redis bus initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", cfg.Prefix))

	return b, nil
}

// Start subscribes to the bus topics and starts the receive loop.
func (b *RedisBus) Start() error {
	b.log.Info("Starting Redis message bus")

	b.pubsub = b.client.PSubscribe(b.ctx, b.prefix+"*")

	b.wg.Add(1)
	go b.receive()

	return nil
}

// Stop stops the Redis bus.
func (b *RedisBus) Stop() error {
	b.log.Info("Stopping Redis message bus")

	b.cancel()

	if b.pubsub != nil {
		b.pubsub.Close()
	}

	b.wg.Wait()

	b.client.Close()

	b.log.Info("Redis message bus stopped")
	return nil
}

// RegisterHandler registers a delivery handler for a channel.
func (b *RedisBus) RegisterHandler(channelID string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[channelID] = append(b.handlers[channelID], handler)
	b.log.Info("Registered handler", zap.String("channel", channelID))
}

// UnregisterHandlers removes all handlers for a channel.
func (b *RedisBus) UnregisterHandlers(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, channelID)
	b.log.Info("Unregistered handlers", zap.String("channel", channelID))
}

// Send publishes a message on its channel's topic.
func (b *RedisBus) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.prefix+msg.ChannelID, data).Err(); err != nil {
		return fmt.Errorf("publishing to Redis: %w", err)
	}

	b.sent.Add(1)
	return nil
}

// Metrics reports sent, delivered and error counts.
func (b *RedisBus) Metrics() map[string]uint64 {
	return map[string]uint64{
		"sent":      b.sent.Load(),
		"delivered": b.delivered.Load(),
		"errors":    b.errors.Load(),
	}
}

// receive drains the pub/sub subscription.
func (b *RedisBus) receive() {
	defer b.wg.Done()

	ch := b.pubsub.Channel()

	for {
		select {
		case redisMsg, ok := <-ch:
			if !ok {
				return
			}

			b.deliver(redisMsg)

		case <-b.ctx.Done():
			return
		}
	}
}

// deliver decodes a pub/sub payload and fans it out to the handlers of
// its channel. Messages for channels this instance does not run are
// expected; another instance owns them.
func (b *RedisBus) deliver(redisMsg *redis.Message) {
	if !strings.HasPrefix(redisMsg.Channel, b.prefix) {
		b.log.Warn("Unknown topic", zap.String("topic", redisMsg.Channel))
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
		b.errors.Add(1)
		b.log.Error("Failed to unmarshal message", zap.Error(err))
		return
	}

	b.mu.RLock()
	handlers := b.handlers[msg.ChannelID]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("No handlers registered for channel",
			zap.String("channel", msg.ChannelID),
			zap.String("message_id", msg.ID))
		return
	}

	for _, handler := range handlers {
		if err := handler(b.ctx, &msg); err != nil {
			b.errors.Add(1)
			b.log.Error("Delivery failed",
				zap.String("channel", msg.ChannelID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		b.delivered.Add(1)
	}
}
