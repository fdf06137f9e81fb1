// Package patterns provides the static pattern tables used to classify terminal output:
// working-directory prompts and output-type categories.
package patterns

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// CWDPattern extracts a candidate working directory from prompt text.
// Regex must contain exactly one capture group holding the candidate path.
type CWDPattern struct {
	Name      string              // Stable identifier (e.g., "powershell")
	Regex     *regexp.Regexp      // Applied to the full buffered text
	Transform func(string) string // Optional: candidate -> normalized path
	Skip      func(string) bool   // Optional: normalized path -> discard match
	Priority  int                 // Higher wins when several patterns match
}

// Default priorities. Kept unique so selection never depends on registry order.
const (
	PriorityOSC7       = 100
	PriorityPowerShell = 90
	PriorityCmd        = 80
	PriorityMSYS       = 70
	PriorityPOSIX      = 60
	PriorityTitle      = 50
)

// DefaultCWDPatterns returns the built-in CWD patterns.
// home is substituted for a leading "~"; if empty, "~" is left untouched.
func DefaultCWDPatterns(home string) []CWDPattern {
	homeFn := func(p string) string { return ExpandHome(p, home) }

	return []CWDPattern{
		{
			// OSC 7 working-directory report: ESC ] 7 ; file://host/path BEL
			Name:      "osc7",
			Regex:     regexp.MustCompile(`\x1b\]7;file://[^/\x07\x1b]*(/[^\x07\x1b]*)(?:\x07|\x1b\\)`),
			Transform: func(p string) string { return MSYSToWindows(decodeFileURLPath(p)) },
			Priority:  PriorityOSC7,
		},
		{
			// PowerShell prompt: PS C:\Users\alex>
			Name:      "powershell",
			Regex:     regexp.MustCompile(`PS ([A-Za-z]:\\[^>\r\n]*)>`),
			Transform: TrimTrailingSeparator,
			Priority:  PriorityPowerShell,
		},
		{
			// cmd.exe prompt at line start: C:\Users\alex>
			Name:      "cmd",
			Regex:     regexp.MustCompile(`(?m)^([A-Za-z]:\\[^>\r\n]*)>`),
			Transform: TrimTrailingSeparator,
			Priority:  PriorityCmd,
		},
		{
			// Git Bash / MSYS2 header line: user@host MINGW64 /c/Users/alex
			Name:      "msys",
			Regex:     regexp.MustCompile(`(?m)(?:MINGW|MSYS|UCRT|CLANG|CLANGARM)(?:64|32)? +((?:~|/)[^\r\n]*?)[ \t]*\r?$`),
			Transform: func(p string) string { return MSYSToWindows(homeFn(p)) },
			Skip:      IsShellInstallDir,
			Priority:  PriorityMSYS,
		},
		{
			// POSIX prompt: user@host:~/src$
			Name:      "posix",
			Regex:     regexp.MustCompile(`[\w.-]+@[\w.-]+:((?:~|/)[^\r\n$#]*?)[$#](?:\s|$)`),
			Transform: func(p string) string { return TrimTrailingSeparator(homeFn(p)) },
			Priority:  PriorityPOSIX,
		},
		{
			// Terminal title set by the shell: ESC ] 0 ; user@host: ~/src BEL
			Name:      "title",
			Regex:     regexp.MustCompile(`\x1b\][02];[^\x07\x1b]*?[\w.-]+@[\w.-]+: *((?:~|/)[^\x07\x1b]*)(?:\x07|\x1b\\)`),
			Transform: func(p string) string { return TrimTrailingSeparator(homeFn(strings.TrimSpace(p))) },
			Priority:  PriorityTitle,
		},
	}
}

// CustomCWDPattern describes a user-supplied pattern, typically loaded from config.
type CustomCWDPattern struct {
	Name         string
	Regex        string
	Priority     int
	Transforms   []string // Any of: "home", "msys", "trim"
	SkipPrefixes []string
}

// CompileCustom builds a CWDPattern from its config description.
func CompileCustom(c CustomCWDPattern, home string) (CWDPattern, error) {
	re, err := regexp.Compile(c.Regex)
	if err != nil {
		return CWDPattern{}, fmt.Errorf("pattern %q: %w", c.Name, err)
	}
	if re.NumSubexp() != 1 {
		return CWDPattern{}, fmt.Errorf("pattern %q: want exactly one capture group, got %d", c.Name, re.NumSubexp())
	}

	var steps []func(string) string
	for _, t := range c.Transforms {
		switch t {
		case "home":
			steps = append(steps, func(p string) string { return ExpandHome(p, home) })
		case "msys":
			steps = append(steps, MSYSToWindows)
		case "trim":
			steps = append(steps, TrimTrailingSeparator)
		default:
			return CWDPattern{}, fmt.Errorf("pattern %q: unknown transform %q", c.Name, t)
		}
	}

	p := CWDPattern{Name: c.Name, Regex: re, Priority: c.Priority}
	if len(steps) > 0 {
		p.Transform = func(s string) string {
			for _, step := range steps {
				s = step(s)
			}
			return s
		}
	}
	if len(c.SkipPrefixes) > 0 {
		prefixes := append([]string(nil), c.SkipPrefixes...)
		p.Skip = func(s string) bool {
			for _, prefix := range prefixes {
				if hasPathPrefix(s, prefix) {
					return true
				}
			}
			return false
		}
	}
	return p, nil
}

func decodeFileURLPath(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		return decoded
	}
	return p
}
