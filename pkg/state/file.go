package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"mikobot/pkg/logger"
)

// FileStore is a JSON-file backed key-value store. Writes are batched
// by an auto-save ticker; the file is replaced atomically via a temp
// file and rename.
type FileStore struct {
	log      *logger.Logger
	filePath string

	mu      sync.RWMutex
	data    map[string]any
	pending bool

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewFileStore creates a file-backed store at filePath, loading any
// existing data. autoSaveSecs <= 0 defaults to 5 seconds.
func NewFileStore(log *logger.Logger, filePath string, autoSaveSecs int) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		filePath = filepath.Join(home, ".mikobot", "state.json")
	}
	if autoSaveSecs <= 0 {
		autoSaveSecs = 5
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	s := &FileStore{
		log:      log,
		filePath: filePath,
		data:     make(map[string]any),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	s.ticker = time.NewTicker(time.Duration(autoSaveSecs) * time.Second)
	go s.autoSave()

	return s, nil
}

// Get retrieves a value from the store.
func (s *FileStore) Get(ctx context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	return value, exists, nil
}

// GetString retrieves a string value.
func (s *FileStore) GetString(ctx context.Context, key string) (string, bool, error) {
	value, exists, err := s.Get(ctx, key)
	if err != nil || !exists {
		return "", false, err
	}
	str, ok := value.(string)
	return str, ok, nil
}

// GetInt64 retrieves an integer value.
func (s *FileStore) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	value, exists, err := s.Get(ctx, key)
	if err != nil || !exists {
		return 0, false, err
	}
	return coerceInt64(value)
}

// GetBool retrieves a boolean value.
func (s *FileStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	value, exists, err := s.Get(ctx, key)
	if err != nil || !exists {
		return false, false, err
	}
	b, ok := value.(bool)
	return b, ok, nil
}

// Set stores a value.
func (s *FileStore) Set(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	s.data[key] = value
	s.pending = true
	s.mu.Unlock()
	return nil
}

// Delete removes a value.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.pending = true
	s.mu.Unlock()
	return nil
}

// UpdateFunc atomically updates a value using a function. The function
// runs under the store lock, so it must not call back into the store.
func (s *FileStore) UpdateFunc(ctx context.Context, key string, updateFn func(current any) any) error {
	s.mu.Lock()
	s.data[key] = updateFn(s.data[key])
	s.pending = true
	s.mu.Unlock()
	return nil
}

// Keys returns all keys in the store.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close stops auto-save and performs a final save.
func (s *FileStore) Close() error {
	s.ticker.Stop()
	close(s.stop)
	<-s.done
	return s.save()
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.Unmarshal(data, &s.data); err != nil {
		return fmt.Errorf("unmarshaling state: %w", err)
	}

	s.log.Info("Loaded state",
		zap.String("file", s.filePath),
		zap.Int("keys", len(s.data)))
	return nil
}

func (s *FileStore) save() error {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.pending = err != nil // retry next tick on marshal failure
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	// Temp file plus rename keeps the on-disk file consistent even if
	// the process dies mid-write.
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("renaming temp state file: %w", err)
	}

	return nil
}

func (s *FileStore) autoSave() {
	defer close(s.done)
	for {
		select {
		case <-s.ticker.C:
			if err := s.save(); err != nil {
				s.log.Error("State auto-save failed", zap.Error(err))
			}
		case <-s.stop:
			return
		}
	}
}

// coerceInt64 handles the numeric types JSON decoding can produce.
func coerceInt64(value any) (int64, bool, error) {
	switch v := value.(type) {
	case int64:
		return v, true, nil
	case int:
		return int64(v), true, nil
	case float64:
		return int64(v), true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	default:
		return 0, false, nil
	}
}
