package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mikobot/pkg/logger"
)

// sendTimeout bounds Send when the queue stays full.
const sendTimeout = 5 * time.Second

// LocalBus is the in-process bus backend. One dispatch goroutine drains
// the queue and fans each message out to the handlers of its channel.
type LocalBus struct {
	log      *logger.Logger
	handlers map[string][]Handler
	mu       sync.RWMutex

	queue chan *Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sent      atomic.Uint64
	delivered atomic.Uint64
	errors    atomic.Uint64
}

// NewLocalBus creates a local bus with the given queue size.
func NewLocalBus(log *logger.Logger, bufferSize int) *LocalBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &LocalBus{
		log:      log,
		handlers: make(map[string][]Handler),
		queue:    make(chan *Message, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the dispatch loop.
func (b *LocalBus) Start() error {
	b.log.Info("Starting message bus")

	b.wg.Add(1)
	go b.dispatch()

	return nil
}

// Stop stops the bus and waits for the dispatch loop to exit.
func (b *LocalBus) Stop() error {
	b.log.Info("Stopping message bus")

	b.cancel()
	close(b.queue)
	b.wg.Wait()

	b.log.Info("Message bus stopped")
	return nil
}

// RegisterHandler registers a delivery handler for a channel.
// Multiple handlers can be registered for the same channel.
func (b *LocalBus) RegisterHandler(channelID string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[channelID] = append(b.handlers[channelID], handler)
	b.log.Info("Registered handler", zap.String("channel", channelID))
}

// UnregisterHandlers removes all handlers for a channel.
func (b *LocalBus) UnregisterHandlers(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, channelID)
	b.log.Info("Unregistered handlers", zap.String("channel", channelID))
}

// Send queues a message for delivery. It fails instead of blocking
// when the bus is shutting down or the queue stays full.
func (b *LocalBus) Send(msg *Message) error {
	select {
	case b.queue <- msg:
		b.sent.Add(1)
		return nil
	case <-b.ctx.Done():
		return fmt.Errorf("bus is shutting down")
	case <-time.After(sendTimeout):
		return fmt.Errorf("timeout queueing message %s", msg.ID)
	}
}

func (b *LocalBus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case msg, ok := <-b.queue:
			if !ok {
				return
			}

			b.deliver(msg)

		case <-b.ctx.Done():
			return
		}
	}
}

// deliver fans a message out to the handlers of its channel.
func (b *LocalBus) deliver(msg *Message) {
	b.mu.RLock()
	handlers := b.handlers[msg.ChannelID]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Warn("No handlers registered for channel",
			zap.String("channel", msg.ChannelID),
			zap.String("message_id", msg.ID))
		return
	}

	for _, handler := range handlers {
		if err := handler(b.ctx, msg); err != nil {
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

// Metrics reports sent, delivered and error counts.
func (b *LocalBus) Metrics() map[string]uint64 {
	return map[string]uint64{
		"sent":      b.sent.Load(),
		"delivered": b.delivered.Load(),
		"errors":    b.errors.Load(),
	}
}
