// Package detect recognizes AI coding assistants in terminal output and tracks their
// interaction state.
package detect

import (
	"regexp"
	"strings"
)

// MatchKind indicates which detection signal fired.
type MatchKind int

const (
	MatchSpinner MatchKind = iota // Spinner glyph
	MatchText                     // Banner or other plain text
	MatchTitle                    // Terminal title (OSC 0/2)
	MatchUI                       // UI chrome such as key hints
	MatchTool                     // Tool-usage line
)

func (k MatchKind) String() string {
	switch k {
	case MatchSpinner:
		return "spinner"
	case MatchText:
		return "text"
	case MatchTitle:
		return "title"
	case MatchUI:
		return "ui"
	case MatchTool:
		return "tool"
	default:
		return "unknown"
	}
}

// Match represents a detected assistant signal.
type Match struct {
	Assistant string    // Assistant ID (e.g., "claude", "codex")
	Kind      MatchKind // Signal that fired
	Reason    string    // The pattern or glyph that matched
}

// Matcher is the interface for detecting an assistant in a chunk.
// Chunk holds the ANSI-stripped text plus any terminal titles found in the raw output.
type Matcher interface {
	// Match returns nil if the chunk does not match.
	Match(c Chunk) *Match
}

// Chunk is one unit of output prepared for matching.
type Chunk struct {
	Plain  string   // Text with escape sequences removed
	Titles []string // Terminal titles set in the raw text
}

// RegexMatcher matches a chunk's plain text (or its titles) using a regular expression.
type RegexMatcher struct {
	pattern   *regexp.Regexp
	assistant string
	kind      MatchKind
}

// NewRegexMatcher creates a new regex-based matcher.
func NewRegexMatcher(assistant string, kind MatchKind, pattern *regexp.Regexp) *RegexMatcher {
	return &RegexMatcher{pattern: pattern, assistant: assistant, kind: kind}
}

// Match implements Matcher for RegexMatcher.
func (m *RegexMatcher) Match(c Chunk) *Match {
	if m.kind == MatchTitle {
		for _, title := range c.Titles {
			if m.pattern.MatchString(title) {
				return m.match()
			}
		}
		return nil
	}
	if m.pattern.MatchString(c.Plain) {
		return m.match()
	}
	return nil
}

func (m *RegexMatcher) match() *Match {
	return &Match{Assistant: m.assistant, Kind: m.kind, Reason: m.pattern.String()}
}

// SpinnerMatcher matches when any spinner glyph appears in the plain text.
type SpinnerMatcher struct {
	glyphs    []string
	assistant string
}

// NewSpinnerMatcher creates a matcher over the given glyphs.
func NewSpinnerMatcher(assistant string, glyphs []string) *SpinnerMatcher {
	return &SpinnerMatcher{glyphs: glyphs, assistant: assistant}
}

// Match implements Matcher for SpinnerMatcher.
func (m *SpinnerMatcher) Match(c Chunk) *Match {
	if _, glyph, ok := lastGlyph(c.Plain, m.glyphs); ok {
		return &Match{Assistant: m.assistant, Kind: MatchSpinner, Reason: glyph}
	}
	return nil
}

// lastGlyph returns the index of the glyph whose last occurrence in text is latest.
func lastGlyph(text string, glyphs []string) (int, string, bool) {
	best, bestPos := -1, -1
	for i, g := range glyphs {
		if g == "" {
			continue
		}
		if pos := strings.LastIndex(text, g); pos > bestPos {
			best, bestPos = i, pos
		}
	}
	if best < 0 {
		return -1, "", false
	}
	return best, glyphs[best], true
}

// ComboMatcher combines multiple matchers, returning the first match.
type ComboMatcher struct {
	matchers []Matcher
}

// NewComboMatcher creates a matcher that tries multiple patterns.
func NewComboMatcher(matchers ...Matcher) *ComboMatcher {
	return &ComboMatcher{matchers: matchers}
}

// Match implements Matcher for ComboMatcher.
func (m *ComboMatcher) Match(c Chunk) *Match {
	for _, matcher := range m.matchers {
		if match := matcher.Match(c); match != nil {
			return match
		}
	}
	return nil
}

// titleSeq captures the payload of OSC 0 and OSC 2 (set window title) sequences.
var titleSeq = regexp.MustCompile(`\x1b\][02];([^\x07\x1b]*)(?:\x07|\x1b\\)`)

// Titles returns every terminal title set in raw, in order of appearance.
func Titles(raw string) []string {
	var titles []string
	for _, m := range titleSeq.FindAllStringSubmatch(raw, -1) {
		titles = append(titles, m[1])
	}
	return titles
}
