// Package monitor owns the per-session records and runs the classification pipeline:
// chunks go to the prompt buffer (for the working directory), the activity classifier and
// the assistant state machine, and a periodic sweep ages everything that depends on time.
package monitor

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"termsense/internal/activity"
	"termsense/internal/chunkbuf"
	"termsense/internal/cwd"
	"termsense/internal/detect"
	"termsense/internal/gitinfo"
	"termsense/internal/logging"
	"termsense/internal/notify"
	"termsense/internal/util"
)

// Publisher receives engine events. Publish must not block.
type Publisher interface {
	Publish(e *notify.Event) bool
}

// CwdLookup resolves the working directory of a process.
type CwdLookup func(pid int) (string, error)

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where events go. Without one, events are discarded.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithGitQuery replaces gitinfo.Status as the git collaborator.
func WithGitQuery(q gitinfo.Query) Option {
	return func(e *Engine) {
		e.gitQuery = q
	}
}

// WithCwdLookup enables process working-directory polling through fn.
func WithCwdLookup(fn CwdLookup) Option {
	return func(e *Engine) {
		e.cwdLookup = fn
	}
}

// WithClock sets the time source used for callbacks that are not handed a timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAfterFunc replaces time.AfterFunc for the buffer and git timers.
func WithAfterFunc(fn util.AfterFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.afterFunc = fn
		}
	}
}

// Engine classifies terminal output for a set of sessions.
// Every entry point and timer callback serializes on one mutex.
type Engine struct {
	mu       sync.Mutex
	settings Settings
	store    *Store
	closed   bool

	buffer     *chunkbuf.Buffer
	extractor  *cwd.Extractor
	classifier *activity.Classifier
	machine    *detect.Machine
	git        *gitinfo.Trigger

	gitQuery  gitinfo.Query
	cwdLookup CwdLookup
	publisher Publisher
	now       func() time.Time
	afterFunc util.AfterFunc

	lookups sync.WaitGroup
	log     *logrus.Entry
}

// New creates an engine. Unset registries and durations in s take their defaults.
func New(s Settings, opts ...Option) *Engine {
	e := &Engine{
		store:     NewStore(),
		now:       time.Now,
		afterFunc: util.RealAfterFunc,
		log:       logging.NewLogger("monitor"),
	}
	for _, opt := range opts {
		opt(e)
	}

	s = s.withDefaults()
	e.settings = s
	e.classifier = activity.NewClassifier(s.Activity, s.OutputRules)
	e.machine = detect.NewMachine(s.Assistants)
	e.extractor = cwd.NewExtractor(s.CWDPatterns)
	e.buffer = chunkbuf.New(e.onFlush,
		chunkbuf.WithMaxSize(s.BufferMaxSize),
		chunkbuf.WithDebounce(s.BufferDebounce),
		chunkbuf.WithAfterFunc(e.afterFunc),
	)
	e.git = gitinfo.NewTrigger(e.gitQuery, e.onGitInfo,
		gitinfo.WithDebounce(s.GitDebounce),
		gitinfo.WithTimeout(s.GitTimeout),
		gitinfo.WithAfterFunc(e.afterFunc),
	)
	return e
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Settings returns the active settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Assistants returns the active assistant registry.
func (e *Engine) Assistants() *detect.Registry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Registry()
}

// OnSessionStart registers a session. Starting an existing session only refreshes its
// metadata.
func (e *Engine) OnSessionStart(id string, meta Meta) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	now := e.now()
	if s, ok := e.store.Get(id); ok {
		s.PID = meta.PID
		if meta.Shell != "" {
			s.Shell = meta.Shell
		}
		if meta.Title != "" {
			s.Title = meta.Title
		}
		e.log.WithField("session", id).Debug("session restarted")
		return
	}

	s := newSession(id, meta, now)
	e.store.Add(s)
	e.log.WithFields(logrus.Fields{"session": id, "pid": meta.PID, "shell": meta.Shell}).Debug("session started")

	e.publish(notify.NewEvent(notify.EventSessionStart).At(now).WithSession(id).
		WithTitle(meta.Title).WithMetadata("pid", meta.PID).WithMetadata("shell", meta.Shell))

	if s.Cwd != "" && e.settings.GitEnabled {
		e.git.Request(id, s.Cwd)
	}
}

// OnSessionEnd drops the session and cancels its pending buffer and git timers.
func (e *Engine) OnSessionEnd(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buffer.Remove(id)
	e.git.Cancel(id)
	if !e.store.Remove(id) {
		return
	}
	e.log.WithField("session", id).Debug("session ended")
	e.publish(notify.NewEvent(notify.EventSessionEnd).At(e.now()).WithSession(id))
}

// OnChunk processes one chunk of raw output received at now. Chunks for unknown sessions
// are ignored.
func (e *Engine) OnChunk(id, text string, now time.Time) {
	if text == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	s, ok := e.store.Get(id)
	if !ok {
		e.log.WithField("session", id).Debug("chunk for unknown session")
		return
	}
	e.guard(id, "chunk", func() {
		e.processChunk(s, text, now)
	})
}

func (e *Engine) processChunk(s *Session, text string, now time.Time) {
	s.recordOutput(text)
	if titles := detect.Titles(text); len(titles) > 0 {
		s.Title = titles[len(titles)-1]
	}

	e.buffer.Append(s.ID, text)
	e.classifier.Classify(&s.Activity, text, now, s.Foreground)

	res := e.machine.ProcessChunk(&s.Assistant, text, now)
	e.handleAssistant(s, res, now)
}

// OnTick ages every session to now: activity decay, unseen and output-type expiry,
// assistant timeouts, and process working-directory polling.
func (e *Engine) OnTick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	for _, s := range e.store.All() {
		e.guard(s.ID, "tick", func() {
			e.classifier.Decay(&s.Activity, now)
			res := e.machine.Tick(&s.Assistant, now)
			e.handleAssistant(s, res, now)
			e.pollCwd(s, now)
		})
	}
}

// SetForeground marks id as the visible session and clears its unseen flag. Every other
// session moves to the background. An empty id backgrounds all sessions.
func (e *Engine) SetForeground(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.store.All() {
		s.Foreground = s.ID == id
		if s.Foreground {
			s.Activity.ClearUnseen()
		}
	}
}

// Sessions returns the IDs of all sessions in sorted order.
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.IDs()
}

// Snapshot returns a copy of the session record.
func (e *Engine) Snapshot(id string) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.store.Get(id)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ApplySettings swaps in new tuning. Session state is kept; sessions bound to an assistant
// that is no longer registered stop changing state.
func (e *Engine) ApplySettings(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s = s.withDefaults()
	e.settings = s
	e.classifier = activity.NewClassifier(s.Activity, s.OutputRules)
	e.machine = detect.NewMachine(s.Assistants)
	e.extractor = cwd.NewExtractor(s.CWDPatterns)
	e.buffer.Configure(s.BufferMaxSize, s.BufferDebounce)
	e.git.SetDebounce(s.GitDebounce)
	if !s.GitEnabled {
		for _, id := range e.store.IDs() {
			e.git.Cancel(id)
		}
	}
	e.log.WithField("assistants", len(s.Assistants.IDs())).Info("settings applied")
}

// Close stops all timers and waits for in-flight process lookups. Later calls are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.buffer.Close()
	e.git.Close()
	e.mu.Unlock()

	e.lookups.Wait()
}

// onFlush receives the buffered prompt text once output has settled.
func (e *Engine) onFlush(id, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.store.Get(id)
	if !ok {
		return
	}
	e.guard(id, "flush", func() {
		c, ok := e.extractor.Extract(text)
		if !ok {
			return
		}
		e.setCwd(s, c.Path, c.Pattern, e.now())
	})
}

// setCwd records a new working directory and schedules a git query.
// An unchanged directory is a no-op.
func (e *Engine) setCwd(s *Session, path, source string, now time.Time) {
	if path == "" || path == s.Cwd {
		return
	}
	prev := s.Cwd
	s.Cwd = path
	e.log.WithFields(logrus.Fields{"session": s.ID, "cwd": path, "source": source}).Debug("working directory changed")

	e.publish(notify.NewEvent(notify.EventCwdChanged).At(now).WithSession(s.ID).
		WithAssistant(s.Assistant.AssistantID).WithMessage(path).
		WithMetadata("previous", prev).WithMetadata("source", source))

	if e.settings.GitEnabled {
		e.git.Request(s.ID, path)
	}
}

// onGitInfo applies a git result if the session still sits in the queried directory.
func (e *Engine) onGitInfo(id, path string, info gitinfo.Info, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.store.Get(id)
	if !ok || s.Cwd != path {
		return
	}
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"session": id, "cwd": path}).Debug("git query failed")
	}
	if s.gitPath == path && s.Git == info {
		return
	}
	s.Git = info
	s.gitPath = path

	e.publish(notify.NewEvent(notify.EventGitInfo).At(e.now()).WithSession(id).
		WithTitle(info.Branch).WithMessage(path).
		WithMetadata("branch", info.Branch).WithMetadata("dirty", info.Dirty))
}

// pollCwd starts a process lookup when one is due.
func (e *Engine) pollCwd(s *Session, now time.Time) {
	if e.cwdLookup == nil || !e.settings.CwdLookup || s.PID <= 0 || s.lookupBusy {
		return
	}
	if !s.lastCwdLookup.IsZero() && now.Sub(s.lastCwdLookup) < e.settings.CwdLookupInterval {
		return
	}
	s.lastCwdLookup = now
	s.lookupBusy = true

	id, pid, prev := s.ID, s.PID, s.Cwd
	e.lookups.Add(1)
	go func() {
		defer e.lookups.Done()
		path, err := e.cwdLookup(pid)
		e.applyLookup(id, prev, path, err)
	}()
}

func (e *Engine) applyLookup(id, prev, path string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.store.Get(id)
	if !ok {
		return
	}
	s.lookupBusy = false
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"session": id, "pid": s.PID}).Debug("process cwd lookup failed")
		return
	}
	if s.Cwd != prev || e.closed {
		return
	}
	e.setCwd(s, path, "process", e.now())
}

func (e *Engine) handleAssistant(s *Session, res detect.Result, now time.Time) {
	if m := res.Detected; m != nil {
		name := m.Assistant
		if def, ok := e.machine.Registry().Get(m.Assistant); ok {
			name = def.Name
		}
		e.log.WithFields(logrus.Fields{"session": s.ID, "assistant": m.Assistant, "signal": m.Kind.String()}).Info("assistant detected")
		e.publish(notify.NewEvent(notify.EventAssistantDetected).At(now).WithSession(s.ID).
			WithAssistant(m.Assistant).WithTitle(name).WithMessage(m.Reason).
			WithMetadata("signal", m.Kind.String()))
	}

	switch {
	case res.Changed:
		e.log.WithFields(logrus.Fields{
			"session": s.ID,
			"from":    res.From,
			"to":      res.To,
			"cause":   string(res.Cause),
		}).Debug("assistant state changed")

		label := res.To
		if _, st, ok := e.machine.Style(s.Assistant); ok {
			label = st.Label
		}
		e.publish(notify.NewEvent(notify.EventAssistantState).At(now).WithSession(s.ID).
			WithAssistant(s.Assistant.AssistantID).WithTitle(label).
			WithMessage(res.From+" -> "+res.To).
			WithMetadata("from", res.From).WithMetadata("to", res.To).
			WithMetadata("cause", string(res.Cause)))
	case res.Suppressed:
		e.log.WithFields(logrus.Fields{"session": s.ID, "from": res.From, "to": res.To}).Debug("state change debounced")
	}
}

func (e *Engine) publish(ev *notify.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ev)
}

// guard runs fn, recovering a panic so one session cannot take the engine down.
func (e *Engine) guard(id, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"session": id,
				"stage":   stage,
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			}).Error("recovered panic while processing session")
		}
	}()
	fn()
}
