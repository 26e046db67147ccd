package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"mikobot/pkg/logger"
)

func newTestBus(t *testing.T, bufferSize int) *LocalBus {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	b := NewLocalBus(log, bufferSize)
	if err := b.Start(); err != nil {
		t.Fatalf("Failed to start bus: %v", err)
	}
	t.Cleanup(func() { b.Stop() })

	return b
}

func TestLocalBusDelivers(t *testing.T) {
	b := newTestBus(t, 10)

	received := make(chan *Message, 1)
	b.RegisterHandler("telegram", func(ctx context.Context, msg *Message) error {
		received <- msg
		return nil
	})

	testMsg := &Message{
		ID:        "m1",
		ChannelID: "telegram",
		ChatID:    "chat-1",
		UserID:    "user-1",
		Username:  "alice",
		Type:      MessageTypeReminder,
		Content:   "drink water",
		Timestamp: time.Now(),
	}
	if err := b.Send(testMsg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.ID != testMsg.ID || msg.Content != testMsg.Content {
			t.Errorf("Unexpected message: %+v", msg)
		}
		if msg.Type != MessageTypeReminder {
			t.Errorf("Expected reminder type, got %s", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for delivery")
	}
}

func TestBusMultipleHandlers(t *testing.T) {
	b := newTestBus(t, 10)

	calls := make(chan struct{}, 2)
	b.RegisterHandler("discord", func(ctx context.Context, msg *Message) error {
		calls <- struct{}{}
		return nil
	})
	b.RegisterHandler("discord", func(ctx context.Context, msg *Message) error {
		calls <- struct{}{}
		return nil
	})

	if err := b.Send(&Message{ID: "m1", ChannelID: "discord", Content: "hello"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout waiting for handler call %d", i+1)
		}
	}
}

func TestBusMetrics(t *testing.T) {
	b := newTestBus(t, 10)

	b.RegisterHandler("slack", func(ctx context.Context, msg *Message) error {
		if msg.ID == "bad" {
			return errors.New("delivery refused")
		}
		return nil
	})

	if err := b.Send(&Message{ID: "ok", ChannelID: "slack"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := b.Send(&Message{ID: "bad", ChannelID: "slack"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// Counters update after the handlers return; poll until settled.
	deadline := time.Now().Add(2 * time.Second)
	for {
		m := b.Metrics()
		if m["sent"] == 2 && m["delivered"] == 1 && m["errors"] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Unexpected metrics: %v", m)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBusSendAfterStop(t *testing.T) {
	log, _ := logger.New(&logger.Config{Level: logger.LevelError})
	b := NewLocalBus(log, 1)
	b.Start()
	b.Stop()

	// Context is cancelled, the send must fail instead of blocking
	msg := &Message{ID: "late", ChannelID: "telegram"}
	defer func() {
		if r := recover(); r != nil {
			// Sending on a closed channel can also panic; either way the
			// caller must not hang.
		}
	}()
	b.Send(msg)
}

func BenchmarkBusThroughput(b *testing.B) {
	log, _ := logger.New(&logger.Config{Level: logger.LevelError})
	bus := NewLocalBus(log, 1000)
	bus.Start()
	defer bus.Stop()

	bus.RegisterHandler("bench", func(ctx context.Context, msg *Message) error {
		return nil
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			msg := &Message{
				ID:        time.Now().Format("20060102150405.000000"),
				ChannelID: "bench",
				Content:   "Benchmark message",
				Timestamp: time.Now(),
			}
			bus.Send(msg)
		}
	})
}
