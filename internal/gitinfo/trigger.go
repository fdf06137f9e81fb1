package gitinfo

import (
	"context"
	"sync"
	"time"

	"termsense/internal/util"
)

// DefaultDebounce is the quiet period after a working-directory change before git is queried.
const DefaultDebounce = 300 * time.Millisecond

// DeliverFunc receives the outcome of a debounced query. On failure info is the neutral
// zero value and err describes the failure.
type DeliverFunc func(sessionID, path string, info Info, err error)

// Trigger debounces git queries per session. A request replaces any pending request for the
// same session, so at most one query runs per debounce window.
type Trigger struct {
	mu        sync.Mutex
	query     Query
	deliver   DeliverFunc
	debounce  time.Duration
	timeout   time.Duration
	afterFunc util.AfterFunc
	pending   map[string]*request
	closed    bool
}

type request struct {
	timer util.Timer
	gen   uint64
}

// TriggerOption configures a Trigger.
type TriggerOption func(*Trigger)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) TriggerOption {
	return func(t *Trigger) {
		if d > 0 {
			t.debounce = d
		}
	}
}

// WithTimeout overrides DefaultTimeout for each query.
func WithTimeout(d time.Duration) TriggerOption {
	return func(t *Trigger) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithAfterFunc replaces the timer scheduler (used by tests).
func WithAfterFunc(fn util.AfterFunc) TriggerOption {
	return func(t *Trigger) {
		if fn != nil {
			t.afterFunc = fn
		}
	}
}

// NewTrigger creates a trigger. A nil query selects Status.
func NewTrigger(query Query, deliver DeliverFunc, opts ...TriggerOption) *Trigger {
	if query == nil {
		query = Status
	}
	t := &Trigger{
		query:     query,
		deliver:   deliver,
		debounce:  DefaultDebounce,
		timeout:   DefaultTimeout,
		afterFunc: util.RealAfterFunc,
		pending:   make(map[string]*request),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Request schedules a query of path for the session after the debounce period.
func (t *Trigger) Request(sessionID, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	r, ok := t.pending[sessionID]
	if !ok {
		r = &request{}
		t.pending[sessionID] = r
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timer = t.afterFunc(t.debounce, func() { t.fire(sessionID, path, gen) })
}

// SetDebounce changes the debounce for subsequent requests.
func (t *Trigger) SetDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.debounce = d
	t.mu.Unlock()
}

func (t *Trigger) fire(sessionID, path string, gen uint64) {
	t.mu.Lock()
	r, ok := t.pending[sessionID]
	if !ok || r.gen != gen || t.closed {
		t.mu.Unlock()
		return
	}
	delete(t.pending, sessionID)
	timeout := t.timeout
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	info, err := t.query(ctx, path)
	if err != nil {
		info = Info{}
	}
	if t.deliver != nil {
		t.deliver(sessionID, path, info, err)
	}
}

// Cancel drops the session's pending query.
func (t *Trigger) Cancel(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.pending[sessionID]; ok {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(t.pending, sessionID)
	}
}

// Pending reports whether a query is scheduled for the session.
func (t *Trigger) Pending(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[sessionID]
	return ok
}

// Close cancels all pending queries and rejects new ones.
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for id, r := range t.pending {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(t.pending, id)
	}
}
