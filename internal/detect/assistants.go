package detect

import "regexp"

// Spinner glyph sets.
var (
	brailleSpinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	claudeSpinner  = []string{"✢", "✳", "✶", "✻", "✽"}
)

// Display metadata shared by the core states.
const (
	colorIdle     = "#6e7681"
	colorWorking  = "#3b8eea"
	colorThinking = "#c678dd"
	colorWaiting  = "#e5c07b"
)

// DefaultRegistry returns the built-in assistants in detection order.
// Assistants with distinctive glyphs come first so a generic braille spinner from an
// unrelated tool cannot claim a session before a more specific signal does.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		claude(),
		codex(),
		copilot(),
		aider(),
		gemini(),
	)
	if err != nil {
		panic(err) // Built-in definitions are static
	}
	return r
}

func claude() *Definition {
	return &Definition{
		ID:       "claude",
		Name:     "Claude Code",
		Icon:     "✻",
		Color:    "#d97757",
		Spinners: claudeSpinner,
		TextPatterns: compile(
			`(?i)\bclaude code\b`,
			`Welcome to Claude`,
		),
		TitlePatterns: compile(`(?i)\bclaude\b`),
		UIPatterns: compile(
			`\? for shortcuts`,
			`⏵⏵ accept edits`,
		),
		ToolPatterns: compile(
			`⏺ (?:Bash|Read|Write|Edit|Update|Grep|Glob|Task|WebFetch|WebSearch|TodoWrite)\(`,
		),
		States: coreStates(
			compile(
				`(?i)do you want to (?:proceed|make this edit|create|allow)`,
				`❯ 1\. Yes`,
			),
			compile(`(?i)\b(?:thinking|pondering|cogitating|ruminating)(?:…|\.\.\.)`),
			compile(`(?i)esc to interrupt`),
		),
	}
}

func codex() *Definition {
	return &Definition{
		ID:    "codex",
		Name:  "Codex",
		Icon:  "◆",
		Color: "#10a37f",
		TextPatterns: compile(
			`(?i)\bOpenAI Codex\b`,
		),
		TitlePatterns: compile(`(?i)\bcodex\b`),
		UIPatterns: compile(
			`(?i)⏎ send`,
			`(?i)ctrl \+ j newline`,
		),
		ToolPatterns: compile(
			`(?m)^\s*• (?:Ran|Explored|Edited|Updated Plan)\b`,
		),
		States: coreStates(
			compile(
				`(?i)allow command\?`,
				`(?i)approve this (?:command|change)`,
			),
			compile(`(?i)\bthinking\b`),
			compile(`(?i)\bworking \(\d+s`, `(?i)esc to interrupt`),
		),
	}
}

func copilot() *Definition {
	return &Definition{
		ID:            "copilot",
		Name:          "GitHub Copilot",
		Icon:          "⬢",
		Color:         "#8957e5",
		TextPatterns:  compile(`(?i)\bgithub copilot\b`, `(?i)\bcopilot cli\b`),
		TitlePatterns: compile(`(?i)\bcopilot\b`),
		ToolPatterns:  compile(`(?m)^\s*[✓✗] (?:Run|Read|Edit|Create) `),
		States: coreStates(
			compile(`(?i)do you want to (?:run|allow) this`),
			compile(`(?i)\bthinking\b`),
			compile(`(?i)esc to cancel`),
		),
	}
}

func aider() *Definition {
	return &Definition{
		ID:    "aider",
		Name:  "Aider",
		Icon:  "▲",
		Color: "#14b014",
		TextPatterns: compile(
			`(?m)^Aider v\d+\.\d+`,
		),
		UIPatterns: compile(
			`(?m)^Main model: `,
			`(?m)^Repo-map: `,
		),
		States: coreStates(
			compile(`\(Y\)es/\(N\)o`),
			compile(`(?i)waiting for .+ response`),
			compile(`(?m)^Tokens: .+ sent`, `(?m)^Applied edit to `),
		),
	}
}

func gemini() *Definition {
	return &Definition{
		ID:       "gemini",
		Name:     "Gemini CLI",
		Icon:     "✦",
		Color:    "#4285f4",
		Spinners: brailleSpinner,
		TextPatterns: compile(
			`(?i)\bgemini cli\b`,
			`(?i)using:? \d+ GEMINI\.md`,
		),
		TitlePatterns: compile(`(?i)\bgemini\b`),
		UIPatterns:    compile(`(?i)type your message or @path`),
		ToolPatterns:  compile(`✔ (?:ReadFile|WriteFile|ReadFolder|Shell|Edit|SearchText|FindFiles)\b`),
		States: coreStates(
			compile(`(?i)allow execution\?`, `(?i)waiting for user confirmation`),
			compile(`(?i)\bthinking\b`),
			compile(`(?i)esc to cancel`),
		),
	}
}

// coreStates builds the four required states. Order is waiting, thinking, working, so a
// permission prompt outranks progress text on the same screen.
func coreStates(waiting, thinking, working []*regexp.Regexp) []StateDef {
	return []StateDef{
		{Name: StateIdle, Label: "Idle", Color: colorIdle, Icon: "○"},
		{Name: StateWaiting, Patterns: waiting, Label: "Waiting", Color: colorWaiting, Icon: "◐"},
		{Name: StateThinking, Patterns: thinking, Label: "Thinking", Color: colorThinking, Icon: "◑"},
		{Name: StateWorking, Patterns: working, Label: "Working", Color: colorWorking, Icon: "●"},
	}
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}
