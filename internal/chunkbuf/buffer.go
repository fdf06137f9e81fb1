// Package chunkbuf assembles fragmented terminal output per session and hands the
// accumulated text to a flush callback once output pauses.
package chunkbuf

import (
	"sync"
	"time"
	"unicode/utf8"

	"termsense/internal/util"
)

const (
	// DefaultMaxSize bounds the accumulated text per session, in characters.
	DefaultMaxSize = util.DefaultBufferSize

	// DefaultDebounce is the quiet period after the last append before a flush.
	DefaultDebounce = 150 * time.Millisecond
)

// FlushFunc receives a session's accumulated text after the debounce period.
// It is called without the buffer lock held.
type FlushFunc func(sessionID, text string)

// Timer and AfterFunc let tests replace time.AfterFunc.
type (
	Timer     = util.Timer
	AfterFunc = util.AfterFunc
)

// Option configures a Buffer.
type Option func(*Buffer)

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxSize = n
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.debounce = d
		}
	}
}

// WithAfterFunc replaces the timer scheduler (used by tests).
func WithAfterFunc(fn AfterFunc) Option {
	return func(b *Buffer) {
		if fn != nil {
			b.afterFunc = fn
		}
	}
}

// Buffer holds one pending text accumulator per session.
type Buffer struct {
	mu        sync.Mutex
	entries   map[string]*entry
	maxSize   int
	debounce  time.Duration
	flush     FlushFunc
	afterFunc AfterFunc
	closed    bool
}

type entry struct {
	text  string
	timer Timer
	gen   uint64 // Bumped on every (re)arm; a firing timer with an old gen is stale
}

// New creates a Buffer that calls flush when a session's output goes quiet.
func New(flush FlushFunc, opts ...Option) *Buffer {
	b := &Buffer{
		entries:   make(map[string]*entry),
		maxSize:   DefaultMaxSize,
		debounce:  DefaultDebounce,
		flush:     flush,
		afterFunc: util.RealAfterFunc,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append adds text to the session's buffer and restarts its debounce timer.
// Text beyond the size cap is dropped from the front.
func (b *Buffer) Append(sessionID, text string) {
	if text == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	e, ok := b.entries[sessionID]
	if !ok {
		e = &entry{}
		b.entries[sessionID] = e
	}

	e.text = trimFront(e.text+text, b.maxSize)

	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = b.afterFunc(b.debounce, func() { b.fire(sessionID, gen) })
}

// fire runs on the timer goroutine.
func (b *Buffer) fire(sessionID string, gen uint64) {
	b.mu.Lock()
	e, ok := b.entries[sessionID]
	if !ok || e.gen != gen {
		b.mu.Unlock()
		return
	}
	text := e.text
	e.text = ""
	e.timer = nil
	b.mu.Unlock()

	if text != "" && b.flush != nil {
		b.flush(sessionID, text)
	}
}

// Remove cancels the session's pending timer and discards its text.
func (b *Buffer) Remove(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[sessionID]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(b.entries, sessionID)
	}
}

// Pending returns the text accumulated for a session and not yet flushed.
func (b *Buffer) Pending(sessionID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[sessionID]; ok {
		return e.text
	}
	return ""
}

// HasTimer reports whether a flush is scheduled for the session.
func (b *Buffer) HasTimer(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[sessionID]
	return ok && e.timer != nil
}

// Configure updates size cap and debounce for subsequent appends.
func (b *Buffer) Configure(maxSize int, debounce time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if maxSize > 0 {
		b.maxSize = maxSize
	}
	if debounce > 0 {
		b.debounce = debounce
	}
}

// Close cancels all timers. Later appends are dropped.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, e := range b.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(b.entries, id)
	}
}

// trimFront keeps the last max characters of s.
func trimFront(s string, max int) string {
	if len(s) <= max {
		return s
	}
	extra := utf8.RuneCountInString(s) - max
	if extra <= 0 {
		return s
	}
	for i := range s {
		if extra == 0 {
			return s[i:]
		}
		extra--
	}
	return ""
}
