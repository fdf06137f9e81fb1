package detect

import (
	"time"

	"github.com/charmbracelet/x/ansi"
)

// Session is the assistant sub-state of one terminal session.
type Session struct {
	AssistantID         string // Empty until detected; never reassigned
	State               string
	SpinnerPhase        int // -1 when no spinner has been seen
	LastActivityTime    time.Time
	LastStateChangeTime time.Time
}

// NewSession returns an unbound session.
func NewSession() Session {
	return Session{SpinnerPhase: -1}
}

// Bound reports whether an assistant has been detected for the session.
func (s Session) Bound() bool {
	return s.AssistantID != ""
}

// Cause explains why a state change was computed.
type Cause string

const (
	CauseSpinner     Cause = "spinner"
	CausePattern     Cause = "pattern"
	CauseSpinnerIdle Cause = "spinner_idle_timeout"
	CauseIdle        Cause = "idle_timeout"
)

// Result reports what one ProcessChunk or Tick call did.
type Result struct {
	Detected   *Match // Set when this call bound the session to an assistant
	Changed    bool   // An accepted state change
	Suppressed bool   // A change was computed but dropped by the debounce
	From, To   string
	Cause      Cause
}

// Machine drives per-session assistant detection and state transitions.
// It holds no per-session data; callers serialize access to each Session.
type Machine struct {
	registry *Registry
}

// NewMachine creates a state machine over r.
func NewMachine(r *Registry) *Machine {
	return &Machine{registry: r}
}

// Registry returns the machine's assistant registry.
func (m *Machine) Registry() *Registry {
	return m.registry
}

// ProcessChunk feeds one raw chunk received at now. Empty chunks are ignored.
func (m *Machine) ProcessChunk(s *Session, raw string, now time.Time) Result {
	var res Result
	if raw == "" {
		return res
	}
	c := Chunk{Plain: ansi.Strip(raw), Titles: Titles(raw)}

	if !s.Bound() {
		def, match := m.registry.Detect(c)
		if def == nil {
			return res
		}
		// Binding is not a state change and does not arm the debounce.
		s.AssistantID = def.ID
		s.State = StateIdle
		s.SpinnerPhase = -1
		res.Detected = match
	}

	def, ok := m.registry.Get(s.AssistantID)
	if !ok {
		// Assistant was disabled after the session bound to it.
		s.LastActivityTime = now
		return res
	}

	prevActivity := s.LastActivityTime
	s.LastActivityTime = now

	var (
		next  string
		cause Cause
	)
	if phase, ok := def.SpinnerPhase(c.Plain); ok {
		s.SpinnerPhase = phase
		next, cause = StateWorking, CauseSpinner
	} else if name, ok := def.MatchState(c.Plain); ok {
		next, cause = name, CausePattern
	} else if !prevActivity.IsZero() {
		next, cause = timeoutState(s.State, now.Sub(prevActivity), def.Timing)
	}
	if next == "" {
		return res
	}

	m.apply(s, def, next, cause, now, &res)
	return res
}

// Tick applies timeout transitions for a session that may have received no chunks.
func (m *Machine) Tick(s *Session, now time.Time) Result {
	var res Result
	if !s.Bound() || s.LastActivityTime.IsZero() {
		return res
	}
	def, ok := m.registry.Get(s.AssistantID)
	if !ok {
		return res
	}
	next, cause := timeoutState(s.State, now.Sub(s.LastActivityTime), def.Timing)
	if next == "" {
		return res
	}
	m.apply(s, def, next, cause, now, &res)
	return res
}

// timeoutState returns the state silence forces from current, or "" for none.
func timeoutState(current string, silence time.Duration, t Timing) (string, Cause) {
	if current == StateWorking && silence > t.SpinnerIdleTimeout {
		return StateWaiting, CauseSpinnerIdle
	}
	if current != StateIdle && silence > t.IdleTimeout {
		return StateIdle, CauseIdle
	}
	return "", ""
}

func (m *Machine) apply(s *Session, def *Definition, next string, cause Cause, now time.Time, res *Result) {
	if next == s.State {
		return
	}
	res.From, res.To, res.Cause = s.State, next, cause
	if !s.LastStateChangeTime.IsZero() && now.Sub(s.LastStateChangeTime) < def.Timing.StateDebounce {
		res.Suppressed = true
		return
	}
	s.State = next
	s.LastStateChangeTime = now
	if next != StateWorking {
		s.SpinnerPhase = -1
	}
	res.Changed = true
}

// Style returns the display metadata for the session's current state.
// ok is false when the session is not bound to a registered assistant.
func (m *Machine) Style(s Session) (def *Definition, state StateDef, ok bool) {
	if !s.Bound() {
		return nil, StateDef{}, false
	}
	def, ok = m.registry.Get(s.AssistantID)
	if !ok {
		return nil, StateDef{}, false
	}
	return def, def.State(s.State), true
}
