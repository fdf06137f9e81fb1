package monitor

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"termsense/internal/activity"
	"termsense/internal/patterns"
)

// DefaultPathWidth is the display width ShortCwd is limited to.
const DefaultPathWidth = 40

// View is a read-only snapshot of one session with display metadata resolved.
type View struct {
	ID    string
	Title string
	Shell string

	Activity      activity.Type
	ActivityLabel string
	ActivityColor string
	Intensity     int

	OutputType  patterns.OutputType
	OutputLabel string
	OutputColor string

	Assistant      string // Assistant ID; empty when none detected
	AssistantName  string
	AssistantColor string
	AssistantIcon  string
	State          string
	StateLabel     string
	StateColor     string
	StateIcon      string
	SpinnerPhase   int

	Cwd       string
	ShortCwd  string
	GitBranch string
	GitDirty  int

	Unseen     bool
	Foreground bool
}

// SessionView renders the session's current state for a host UI.
func (e *Engine) SessionView(id string) (View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.store.Get(id)
	if !ok {
		return View{}, false
	}

	v := View{
		ID:           s.ID,
		Title:        s.Title,
		Shell:        s.Shell,
		Activity:     s.Activity.Type,
		Intensity:    s.Activity.Intensity,
		OutputType:   s.Activity.OutputType,
		SpinnerPhase: s.Assistant.SpinnerPhase,
		Cwd:          s.Cwd,
		ShortCwd:     ShortenPath(s.Cwd, e.settings.Home, DefaultPathWidth),
		Unseen:       s.Activity.Unseen,
		Foreground:   s.Foreground,
	}
	v.ActivityLabel, v.ActivityColor = activity.Style(s.Activity.Type)

	if s.Activity.OutputType != patterns.OutputNone {
		if r, ok := patterns.OutputRuleFor(e.classifier.Rules(), s.Activity.OutputType); ok {
			v.OutputLabel, v.OutputColor = r.Label, r.Color
		}
	}

	if def, st, ok := e.machine.Style(s.Assistant); ok {
		v.Assistant = def.ID
		v.AssistantName = def.Name
		v.AssistantColor = def.Color
		v.AssistantIcon = def.Icon
		v.State = st.Name
		v.StateLabel = st.Label
		v.StateColor = st.Color
		v.StateIcon = st.Icon
	} else if s.Assistant.Bound() {
		v.Assistant = s.Assistant.AssistantID
		v.AssistantName = s.Assistant.AssistantID
		v.State = s.Assistant.State
		v.StateLabel = s.Assistant.State
	}

	if s.GitKnown() {
		v.GitBranch = s.Git.Branch
		v.GitDirty = s.Git.Dirty
	}
	return v, true
}

// ShortenPath replaces a leading home directory with "~" and, when the result is wider than
// maxWidth display cells, keeps as many trailing segments as fit behind "…". A maxWidth
// of zero or less disables the width limit.
func ShortenPath(path, home string, maxWidth int) string {
	if path == "" {
		return ""
	}
	sep := "/"
	if strings.Contains(path, `\`) && !strings.Contains(path, "/") {
		sep = `\`
	}

	if home != "" && home != sep {
		switch {
		case path == home:
			path = "~"
		case strings.HasPrefix(path, strings.TrimSuffix(home, sep)+sep):
			path = "~" + sep + path[len(strings.TrimSuffix(home, sep))+1:]
		}
	}
	if maxWidth <= 0 || runewidth.StringWidth(path) <= maxWidth {
		return path
	}

	const ellipsis = "…"
	segs := strings.Split(strings.TrimSuffix(path, sep), sep)
	last := segs[len(segs)-1]
	out := last
	if runewidth.StringWidth(ellipsis+sep+out) > maxWidth {
		return runewidth.Truncate(last, maxWidth, ellipsis)
	}
	for i := len(segs) - 2; i > 0; i-- {
		next := segs[i] + sep + out
		if runewidth.StringWidth(ellipsis+sep+next) > maxWidth {
			break
		}
		out = next
	}
	return ellipsis + sep + out
}
