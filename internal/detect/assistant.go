package detect

import (
	"fmt"
	"regexp"
	"time"
)

// Core state names every assistant must define.
const (
	StateIdle     = "idle"
	StateWorking  = "working"
	StateThinking = "thinking"
	StateWaiting  = "waiting"
)

var requiredStates = []string{StateIdle, StateWorking, StateThinking, StateWaiting}

// Timing holds per-assistant state machine thresholds. Zero fields inherit DefaultTiming.
type Timing struct {
	SpinnerIdleTimeout time.Duration // Silence after which working becomes waiting
	IdleTimeout        time.Duration // Silence after which any state becomes idle
	StateDebounce      time.Duration // Minimum gap between accepted state changes
}

// DefaultTiming returns the standard thresholds.
func DefaultTiming() Timing {
	return Timing{
		SpinnerIdleTimeout: 5 * time.Second,
		IdleTimeout:        30 * time.Second,
		StateDebounce:      500 * time.Millisecond,
	}
}

// Merge fills zero fields of t from base.
func (t Timing) Merge(base Timing) Timing {
	if t.SpinnerIdleTimeout <= 0 {
		t.SpinnerIdleTimeout = base.SpinnerIdleTimeout
	}
	if t.IdleTimeout <= 0 {
		t.IdleTimeout = base.IdleTimeout
	}
	if t.StateDebounce <= 0 {
		t.StateDebounce = base.StateDebounce
	}
	return t
}

// StateDef is a named assistant state with the patterns that select it.
type StateDef struct {
	Name     string
	Patterns []*regexp.Regexp
	Label    string
	Color    string
	Icon     string
}

// Matches reports whether any of the state's patterns match text.
func (s StateDef) Matches(text string) bool {
	for _, re := range s.Patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Definition describes one assistant: how to recognize it and which states it has.
type Definition struct {
	ID    string
	Name  string
	Icon  string
	Color string

	Spinners      []string // Ordered; the index is the spinner phase
	TextPatterns  []*regexp.Regexp
	TitlePatterns []*regexp.Regexp
	UIPatterns    []*regexp.Regexp
	ToolPatterns  []*regexp.Regexp

	States []StateDef // Declared order decides which state pattern wins
	Timing Timing

	detector Matcher
}

// Validate checks that the definition is usable.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("assistant definition: empty id")
	}
	for _, name := range requiredStates {
		if _, ok := d.findState(name); !ok {
			return fmt.Errorf("assistant %q: missing state %q", d.ID, name)
		}
	}
	seen := make(map[string]bool, len(d.States))
	for _, s := range d.States {
		if seen[s.Name] {
			return fmt.Errorf("assistant %q: duplicate state %q", d.ID, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Detector returns the combined matcher over spinners and every detection pattern set.
func (d *Definition) Detector() Matcher {
	if d.detector == nil {
		d.detector = d.buildDetector()
	}
	return d.detector
}

func (d *Definition) buildDetector() Matcher {
	var ms []Matcher
	if len(d.Spinners) > 0 {
		ms = append(ms, NewSpinnerMatcher(d.ID, d.Spinners))
	}
	add := func(kind MatchKind, res []*regexp.Regexp) {
		for _, re := range res {
			ms = append(ms, NewRegexMatcher(d.ID, kind, re))
		}
	}
	add(MatchText, d.TextPatterns)
	add(MatchTitle, d.TitlePatterns)
	add(MatchUI, d.UIPatterns)
	add(MatchTool, d.ToolPatterns)
	return NewComboMatcher(ms...)
}

// SpinnerPhase returns the index of the spinner glyph seen latest in text.
func (d *Definition) SpinnerPhase(text string) (int, bool) {
	i, _, ok := lastGlyph(text, d.Spinners)
	return i, ok
}

// MatchState returns the first non-idle state, in declared order, whose patterns match text.
func (d *Definition) MatchState(text string) (string, bool) {
	for _, s := range d.States {
		if s.Name == StateIdle {
			continue
		}
		if s.Matches(text) {
			return s.Name, true
		}
	}
	return "", false
}

// State returns the display definition for name. Unknown names fall back to idle.
func (d *Definition) State(name string) StateDef {
	if s, ok := d.findState(name); ok {
		return s
	}
	if s, ok := d.findState(StateIdle); ok {
		return s
	}
	return StateDef{Name: StateIdle, Label: "Idle"}
}

func (d *Definition) findState(name string) (StateDef, bool) {
	for _, s := range d.States {
		if s.Name == name {
			return s, true
		}
	}
	return StateDef{}, false
}

// withTiming returns a shallow copy of d using t.
func (d *Definition) withTiming(t Timing) *Definition {
	c := *d
	c.Timing = t
	c.detector = nil
	return &c
}

// Registry is the ordered set of known assistants, keyed by ID.
// It is built once and not modified afterwards.
type Registry struct {
	ordered []*Definition
	byID    map[string]*Definition
}

// NewRegistry builds a registry from defs in detection order.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("assistant %q registered twice", d.ID)
		}
		d.Timing = d.Timing.Merge(DefaultTiming())
		d.Detector()
		r.ordered = append(r.ordered, d)
		r.byID[d.ID] = d
	}
	return r, nil
}

// Get returns the assistant with the given ID.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// All returns the assistants in detection order.
func (r *Registry) All() []*Definition {
	return r.ordered
}

// IDs returns the assistant IDs in detection order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		ids[i] = d.ID
	}
	return ids
}

// Detect returns the first assistant, in registry order, with any signal in c.
func (r *Registry) Detect(c Chunk) (*Definition, *Match) {
	for _, d := range r.ordered {
		if m := d.Detector().Match(c); m != nil {
			return d, m
		}
	}
	return nil, nil
}

// Configure returns a new registry with timing applied and disabled assistants removed.
// defaults replaces DefaultTiming as the base; overrides are keyed by assistant ID.
func (r *Registry) Configure(defaults Timing, overrides map[string]Timing, disabled []string) (*Registry, error) {
	off := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		off[id] = true
	}
	base := defaults.Merge(DefaultTiming())

	var defs []*Definition
	for _, d := range r.ordered {
		if off[d.ID] {
			continue
		}
		t := base
		if o, ok := overrides[d.ID]; ok {
			t = o.Merge(base)
		}
		defs = append(defs, d.withTiming(t))
	}
	for id := range overrides {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("timing override for unknown assistant %q", id)
		}
	}
	return NewRegistry(defs...)
}
