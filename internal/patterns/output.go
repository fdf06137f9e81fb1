package patterns

import "regexp"

// OutputType labels the kind of content a chunk carries.
type OutputType string

const (
	OutputNone     OutputType = ""
	OutputError    OutputType = "error"
	OutputWarning  OutputType = "warning"
	OutputSuccess  OutputType = "success"
	OutputProgress OutputType = "progress"
)

// OutputRule maps a set of regexes to an output type. Any regex matching selects the rule.
type OutputRule struct {
	Type     OutputType
	Label    string
	Color    string
	Patterns []*regexp.Regexp
}

// Matches reports whether any of the rule's patterns match text.
func (r OutputRule) Matches(text string) bool {
	for _, re := range r.Patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// SGR foreground color sequences, with or without leading attributes (ESC[1;31m).
const (
	sgrRed    = `\x1b\[(?:\d+;)*(?:31|91)m`
	sgrYellow = `\x1b\[(?:\d+;)*(?:33|93)m`
	sgrGreen  = `\x1b\[(?:\d+;)*(?:32|92)m`
)

// DefaultOutputRules returns the output-type categories in evaluation order.
// The first matching rule wins.
func DefaultOutputRules() []OutputRule {
	return []OutputRule{
		{
			Type:  OutputError,
			Label: "Error",
			Color: "#f14c4c",
			Patterns: compileAll(
				`(?i)\b(?:error|fatal|panic|exception)\b`,
				`(?i)\bfailed\b`,
				`(?i)\bcommand not found\b`,
				`[✗✘]`,
				sgrRed,
			),
		},
		{
			Type:  OutputWarning,
			Label: "Warning",
			Color: "#cca700",
			Patterns: compileAll(
				`(?i)\bwarn(?:ing)?\b`,
				`(?i)\bdeprecat(?:ed|ion)\b`,
				sgrYellow,
			),
		},
		{
			Type:  OutputSuccess,
			Label: "Success",
			Color: "#23d18b",
			Patterns: compileAll(
				`(?i)\b(?:success(?:ful|fully)?|passed|succeeded|completed?|done)\b`,
				`[✓✔]`,
				sgrGreen,
			),
		},
		{
			Type:  OutputProgress,
			Label: "Progress",
			Color: "#3b8eea",
			Patterns: compileAll(
				`\b\d{1,3}(?:\.\d+)?%`,
				`\[\d+/\d+\]`,
				`(?i)\b(?:downloading|installing|compiling|building|fetching|resolving)\b`,
				`[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`,
			),
		},
	}
}

// OutputRuleFor returns the rule describing t from rules, if present.
func OutputRuleFor(rules []OutputRule, t OutputType) (OutputRule, bool) {
	for _, r := range rules {
		if r.Type == t {
			return r, true
		}
	}
	return OutputRule{}, false
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}
