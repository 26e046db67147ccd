// Package scheduler provides one-shot reminders and recurring cron
// tasks. Reminders are persisted in the state store and delivered as
// outbound bus messages when they fire.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mikobot/pkg/bus"
	"mikobot/pkg/logger"
	"mikobot/pkg/state"
)

const reminderKeyPrefix = "reminder:"

// Reminder is a message delivered back to the chat it was created
// from. One-shots carry a due time; recurring reminders carry a cron
// schedule instead and stay stored until cancelled.
type Reminder struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"` // Platform adapter name
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	DueAt     time.Time `json:"due_at,omitempty"`
	Cron      string    `json:"cron,omitempty"` // Recurring schedule; empty for one-shot
	CreatedAt time.Time `json:"created_at"`
}

// Scheduler manages reminders and cron tasks.
type Scheduler struct {
	log *logger.Logger
	bus bus.Bus
	kv  state.KV

	cron    *cron.Cron
	timers  map[string]*time.Timer  // Reminder ID -> armed timer
	entries map[string]cron.EntryID // Reminder ID -> cron entry
	mu      sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler.
func New(log *logger.Logger, b bus.Bus, kv state.KV) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		log:     log,
		bus:     b,
		kv:      kv,
		cron:    cron.New(),
		timers:  make(map[string]*time.Timer),
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start loads persisted reminders, arms their timers and starts the
// cron scheduler. Reminders that came due while the bot was down fire
// immediately.
func (s *Scheduler) Start() error {
	s.log.Info("Starting scheduler")

	reminders, err := s.loadReminders()
	if err != nil {
		s.log.Warn("Failed to load reminders", zap.Error(err))
	}

	for _, r := range reminders {
		if r.Cron != "" {
			if err := s.armCron(r); err != nil {
				s.log.Warn("Skipping reminder with bad schedule",
					zap.String("reminder_id", r.ID), zap.Error(err))
			}
			continue
		}
		s.armTimer(r)
	}

	s.cron.Start()

	s.log.Info("Scheduler started", zap.Int("reminders", len(reminders)))
	return nil
}

// Stop stops the scheduler. Pending reminders stay in the state store
// and are re-armed on the next start.
func (s *Scheduler) Stop() error {
	s.log.Info("Stopping scheduler")

	s.cancel()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for id := range s.entries {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	s.log.Info("Scheduler stopped")
	return nil
}

// AddReminder persists a reminder and arms its delivery timer.
func (s *Scheduler) AddReminder(ctx context.Context, r *Reminder) (*Reminder, error) {
	if r.Text == "" {
		return nil, fmt.Errorf("reminder text cannot be empty")
	}
	if r.DueAt.IsZero() {
		return nil, fmt.Errorf("reminder due time cannot be zero")
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	if err := s.saveReminder(ctx, r); err != nil {
		return nil, err
	}

	s.armTimer(r)

	s.log.Info("Added reminder",
		zap.String("reminder_id", r.ID),
		zap.String("user", r.UserID),
		zap.Time("due_at", r.DueAt))

	return r, nil
}

// AddRecurring persists a recurring reminder and registers its cron
// entry. The schedule uses cron syntax, including @every descriptors.
func (s *Scheduler) AddRecurring(ctx context.Context, r *Reminder) (*Reminder, error) {
	if r.Text == "" {
		return nil, fmt.Errorf("reminder text cannot be empty")
	}
	if r.Cron == "" {
		return nil, fmt.Errorf("reminder schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(r.Cron); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", r.Cron, err)
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	if err := s.saveReminder(ctx, r); err != nil {
		return nil, err
	}
	if err := s.armCron(r); err != nil {
		s.kv.Delete(ctx, reminderKeyPrefix+r.ID)
		return nil, err
	}

	s.log.Info("Added recurring reminder",
		zap.String("reminder_id", r.ID),
		zap.String("user", r.UserID),
		zap.String("schedule", r.Cron))

	return r, nil
}

// CancelReminder removes an armed reminder. Only the reminder's owner
// may cancel it.
func (s *Scheduler) CancelReminder(ctx context.Context, id, userID string) error {
	r, err := s.getReminder(ctx, id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("reminder not found: %s", id)
	}
	if r.UserID != userID {
		return fmt.Errorf("reminder %s does not belong to you", id)
	}

	s.mu.Lock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	if entryID, ok := s.entries[id]; ok {
		s.RemoveCron(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, reminderKeyPrefix+id); err != nil {
		return fmt.Errorf("deleting reminder: %w", err)
	}

	s.log.Info("Cancelled reminder", zap.String("reminder_id", id))
	return nil
}

// ListReminders returns the pending reminders of a user, ordered by
// due time. Recurring reminders have no due time and sort first.
func (s *Scheduler) ListReminders(ctx context.Context, userID string) ([]*Reminder, error) {
	all, err := s.loadReminders()
	if err != nil {
		return nil, err
	}

	var out []*Reminder
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

// AddCron registers a recurring task with a standard cron expression.
func (s *Scheduler) AddCron(name, spec string, fn func()) (cron.EntryID, error) {
	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return 0, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	s.log.Info("Registered cron task",
		zap.String("name", name),
		zap.String("schedule", spec))

	return entryID, nil
}

// RemoveCron removes a recurring task.
func (s *Scheduler) RemoveCron(entryID cron.EntryID) {
	s.cron.Remove(entryID)
}

// armCron registers the cron entry delivering a recurring reminder.
func (s *Scheduler) armCron(r *Reminder) error {
	id := r.ID

	entryID, err := s.AddCron("reminder:"+id, r.Cron, func() {
		s.fireRecurring(id)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[id] = entryID
	s.mu.Unlock()
	return nil
}

// armTimer arms the delivery timer for a reminder. Past-due reminders
// fire immediately.
func (s *Scheduler) armTimer(r *Reminder) {
	delay := time.Until(r.DueAt)
	if delay < 0 {
		delay = 0
	}

	id := r.ID

	s.mu.Lock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id)
	})
	s.mu.Unlock()
}

// fire delivers a one-shot reminder and removes it from the store.
func (s *Scheduler) fire(id string) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	r, err := s.getReminder(s.ctx, id)
	if err != nil || r == nil {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		return
	}

	if err := s.deliver(r); err != nil {
		return
	}

	if err := s.kv.Delete(s.ctx, reminderKeyPrefix+id); err != nil {
		s.log.Error("Failed to delete delivered reminder",
			zap.String("reminder_id", id),
			zap.Error(err))
	}

	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
}

// fireRecurring delivers one occurrence of a recurring reminder. The
// stored reminder stays in place for the next occurrence.
func (s *Scheduler) fireRecurring(id string) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	r, err := s.getReminder(s.ctx, id)
	if err != nil || r == nil {
		// Cancelled or unreadable; drop the cron entry.
		s.mu.Lock()
		if entryID, ok := s.entries[id]; ok {
			s.RemoveCron(entryID)
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return
	}

	s.deliver(r)
}

// deliver sends a reminder to its channel over the bus.
func (s *Scheduler) deliver(r *Reminder) error {
	msg := &bus.Message{
		ID:        uuid.NewString(),
		ChannelID: r.ChannelID,
		ChatID:    r.ChatID,
		UserID:    r.UserID,
		Username:  r.Username,
		Type:      bus.MessageTypeReminder,
		Content:   r.Text,
		Timestamp: time.Now(),
	}

	if err := s.bus.Send(msg); err != nil {
		s.log.Error("Failed to deliver reminder",
			zap.String("reminder_id", r.ID),
			zap.Error(err))
		return err
	}

	s.log.Info("Delivered reminder",
		zap.String("reminder_id", r.ID),
		zap.String("user", r.UserID))
	return nil
}

func (s *Scheduler) saveReminder(ctx context.Context, r *Reminder) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling reminder: %w", err)
	}

	if err := s.kv.Set(ctx, reminderKeyPrefix+r.ID, string(data)); err != nil {
		return fmt.Errorf("saving reminder: %w", err)
	}

	return nil
}

func (s *Scheduler) getReminder(ctx context.Context, id string) (*Reminder, error) {
	raw, ok, err := s.kv.GetString(ctx, reminderKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("loading reminder: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var r Reminder
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("unmarshaling reminder: %w", err)
	}

	return &r, nil
}

func (s *Scheduler) loadReminders() ([]*Reminder, error) {
	keys, err := s.kv.Keys(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("listing state keys: %w", err)
	}

	var out []*Reminder
	for _, key := range keys {
		if !strings.HasPrefix(key, reminderKeyPrefix) {
			continue
		}

		r, err := s.getReminder(s.ctx, strings.TrimPrefix(key, reminderKeyPrefix))
		if err != nil {
			s.log.Warn("Skipping unreadable reminder", zap.String("key", key), zap.Error(err))
			continue
		}
		if r != nil {
			out = append(out, r)
		}
	}

	return out, nil
}
