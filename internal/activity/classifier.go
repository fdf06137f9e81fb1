// Package activity derives an activity signal and an output-type label from the timing and
// content of terminal output chunks.
package activity

import (
	"time"
	"unicode/utf8"

	"termsense/internal/patterns"
)

// Type is the coarse activity of a session.
type Type string

const (
	Idle    Type = "idle"
	Typing  Type = "typing"
	Output  Type = "output"
	Command Type = "command"
)

// MaxIntensity bounds State.Intensity.
const MaxIntensity = 100

// Settings tunes the classifier and the decay pass.
type Settings struct {
	BurstThreshold time.Duration // Chunks closer than this count as one burst
	OutputWindow   time.Duration // Chunks closer than this continue an output stream
	BurstGain      int           // Intensity per burst step
	MaxBurst       int
	Baseline       int // Intensity of a fresh burst after a pause
	PlateauStep    int
	Plateau        int
	TypingMaxLen   int // Chunks of 1..TypingMaxLen runes are keystroke echo
	TypingFactor   float64
	TypingFloor    int

	DecayAfter      time.Duration // Silence before decay starts
	IntensityFactor float64
	BurstFactor     float64
	SnapThreshold   int // Intensity below this snaps to zero and idle
	OutputTypeTTL   time.Duration
	UnseenTimeout   time.Duration
}

// DefaultSettings returns the standard tuning.
func DefaultSettings() Settings {
	return Settings{
		BurstThreshold:  250 * time.Millisecond,
		OutputWindow:    time.Second,
		BurstGain:       4,
		MaxBurst:        100,
		Baseline:        35,
		PlateauStep:     10,
		Plateau:         50,
		TypingMaxLen:    5,
		TypingFactor:    0.95,
		TypingFloor:     10,
		DecayAfter:      1500 * time.Millisecond,
		IntensityFactor: 0.85,
		BurstFactor:     0.8,
		SnapThreshold:   3,
		OutputTypeTTL:   3 * time.Second,
		UnseenTimeout:   10 * time.Second,
	}
}

// State is the activity sub-state of one session.
type State struct {
	Type           Type
	Intensity      int
	BurstCount     int
	LastOutputTime time.Time // Zero until the first chunk

	OutputType     patterns.OutputType
	OutputTypeTime time.Time

	Unseen     bool
	UnseenTime time.Time
}

// NewState returns an idle state.
func NewState() State {
	return State{Type: Idle}
}

// ClearUnseen drops the unseen-activity flag.
func (s *State) ClearUnseen() {
	s.Unseen = false
	s.UnseenTime = time.Time{}
}

// Classifier applies Settings and output rules to session state.
// It holds no per-session data and is safe to share.
type Classifier struct {
	settings Settings
	rules    []patterns.OutputRule
}

// NewClassifier creates a classifier. A nil rules slice selects patterns.DefaultOutputRules.
func NewClassifier(s Settings, rules []patterns.OutputRule) *Classifier {
	if rules == nil {
		rules = patterns.DefaultOutputRules()
	}
	return &Classifier{settings: s, rules: rules}
}

// Settings returns the classifier's tuning.
func (c *Classifier) Settings() Settings {
	return c.settings
}

// Rules returns the output-type rules in evaluation order.
func (c *Classifier) Rules() []patterns.OutputRule {
	return c.rules
}

// Classify updates st for one chunk received at now. Empty chunks are ignored.
// foreground reports whether the session is currently visible; output on a background
// session raises the unseen flag.
func (c *Classifier) Classify(st *State, chunk string, now time.Time, foreground bool) {
	n := utf8.RuneCountInString(chunk)
	if n == 0 {
		return
	}
	cfg := c.settings

	if n > cfg.TypingMaxLen {
		elapsed, seen := sinceLast(st.LastOutputTime, now)
		switch {
		case seen && elapsed < cfg.BurstThreshold:
			st.BurstCount = min(st.BurstCount+1, cfg.MaxBurst)
			st.Type = Command
			st.Intensity = min(st.BurstCount*cfg.BurstGain, MaxIntensity)
		case seen && elapsed < cfg.OutputWindow:
			st.BurstCount = max(st.BurstCount-1, 0)
			st.Type = Output
			st.Intensity = min(st.Intensity+cfg.PlateauStep, cfg.Plateau)
		default:
			st.BurstCount = 1
			st.Type = Output
			st.Intensity = cfg.Baseline
		}

		if t := c.ClassifyOutput(chunk); t != patterns.OutputNone {
			st.OutputType = t
			st.OutputTypeTime = now
		}
	} else {
		st.Type = Typing
		st.Intensity = max(int(float64(st.Intensity)*cfg.TypingFactor), cfg.TypingFloor)
	}

	st.LastOutputTime = now
	if !foreground {
		st.Unseen = true
		st.UnseenTime = now
	}
}

// ClassifyOutput returns the first output type whose rule matches chunk.
func (c *Classifier) ClassifyOutput(chunk string) patterns.OutputType {
	for _, r := range c.rules {
		if r.Matches(chunk) {
			return r.Type
		}
	}
	return patterns.OutputNone
}

// Decay ages st to now: it expires the unseen flag and the output type and decays intensity
// after a period of silence. It reports whether anything changed.
func (c *Classifier) Decay(st *State, now time.Time) bool {
	cfg := c.settings
	changed := false

	if st.Unseen && cfg.UnseenTimeout > 0 && now.Sub(st.UnseenTime) >= cfg.UnseenTimeout {
		st.ClearUnseen()
		changed = true
	}

	if st.OutputType != patterns.OutputNone && now.Sub(st.OutputTypeTime) >= cfg.OutputTypeTTL {
		st.OutputType = patterns.OutputNone
		st.OutputTypeTime = time.Time{}
		changed = true
	}

	if st.LastOutputTime.IsZero() || now.Sub(st.LastOutputTime) <= cfg.DecayAfter {
		return changed
	}
	if st.Intensity == 0 && st.BurstCount == 0 && st.Type == Idle {
		return changed
	}

	st.Intensity = int(float64(st.Intensity) * cfg.IntensityFactor)
	st.BurstCount = int(float64(st.BurstCount) * cfg.BurstFactor)
	if st.Intensity < cfg.SnapThreshold {
		st.Intensity = 0
		st.BurstCount = 0
		st.Type = Idle
	}
	return true
}

func sinceLast(last, now time.Time) (time.Duration, bool) {
	if last.IsZero() {
		return 0, false
	}
	return now.Sub(last), true
}

// Display metadata per activity type.
var typeStyles = map[Type]struct{ label, color string }{
	Idle:    {"Idle", "#6e7681"},
	Typing:  {"Typing", "#3b8eea"},
	Output:  {"Output", "#23d18b"},
	Command: {"Running", "#e5c07b"},
}

// Style returns the label and color for t. Unknown types render as idle.
func Style(t Type) (label, color string) {
	s, ok := typeStyles[t]
	if !ok {
		s = typeStyles[Idle]
	}
	return s.label, s.color
}
