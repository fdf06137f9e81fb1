package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"termsense/internal/config"
)

// DefaultEventFileMaxSize is used when no size limit is configured.
const DefaultEventFileMaxSize = 10 * 1024 * 1024

// EventFileNotifier appends events to a JSONL file for external consumers.
type EventFileNotifier struct {
	path    string
	maxSize int64
	mu      sync.Mutex
	file    *os.File
	now     func() time.Time
}

// NewEventFileNotifier creates an event file notifier.
// An empty path means ~/.termsense/events.jsonl; a zero maxSize means 10MB.
func NewEventFileNotifier(path string, maxSize int64) (*EventFileNotifier, error) {
	if path == "" {
		dir := config.DefaultConfigDir()
		if dir == "" {
			return nil, fmt.Errorf("failed to get home directory for event file")
		}
		path = filepath.Join(dir, "events.jsonl")
	}
	if maxSize <= 0 {
		maxSize = DefaultEventFileMaxSize
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return &EventFileNotifier{
		path:    path,
		maxSize: maxSize,
		now:     time.Now,
	}, nil
}

// Name returns the notifier type.
func (e *EventFileNotifier) Name() string {
	return "eventfile"
}

// Path returns the event file path.
func (e *EventFileNotifier) Path() string {
	return e.path
}

// Send appends the event as one JSON line.
func (e *EventFileNotifier) Send(ctx context.Context, event *Event) error {
	data, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.maybeRotate(); err != nil {
		return fmt.Errorf("failed to rotate event file: %w", err)
	}

	if e.file == nil {
		f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open event file: %w", err)
		}
		e.file = f
	}

	if _, err := e.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// maybeRotate renames the file aside once it reaches maxSize.
// Must be called with e.mu held.
func (e *EventFileNotifier) maybeRotate() error {
	info, err := os.Stat(e.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < e.maxSize {
		return nil
	}

	if e.file != nil {
		e.file.Close()
		e.file = nil
	}

	rotated := e.path + "." + e.now().Format("2006-01-02-150405.000")
	if err := os.Rename(e.path, rotated); err != nil {
		return fmt.Errorf("failed to rotate file: %w", err)
	}
	return nil
}

// Close closes the event file.
func (e *EventFileNotifier) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file != nil {
		err := e.file.Close()
		e.file = nil
		return err
	}
	return nil
}
