// Package cwd resolves a shell's working directory from buffered prompt text.
package cwd

import (
	"regexp"
	"sort"
	"strings"

	"termsense/internal/patterns"
)

// Candidate is a resolved working directory and the pattern that produced it.
type Candidate struct {
	Path     string // Final path after transform
	Pattern  string // Name of the matching pattern
	Priority int
	Offset   int // Byte offset of the match in the scanned text
}

// Extractor applies a set of CWD patterns to buffered text.
type Extractor struct {
	patterns []patterns.CWDPattern
}

// csiSeq matches CSI escape sequences (colors, cursor movement). OSC sequences are left in
// place because some patterns match on them.
var csiSeq = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// NewExtractor creates an extractor over the given patterns. The slice is copied.
func NewExtractor(ps []patterns.CWDPattern) *Extractor {
	return &Extractor{patterns: append([]patterns.CWDPattern(nil), ps...)}
}

// Extract returns the highest-priority working directory found in text.
// Returns false when text is empty or no pattern produced a usable path.
func (e *Extractor) Extract(text string) (Candidate, bool) {
	all := e.Candidates(text)
	if len(all) == 0 {
		return Candidate{}, false
	}
	return all[0], true
}

// Candidates returns every non-skipped match, best first.
// Ordering: priority descending, then later offset first, then registry order.
func (e *Extractor) Candidates(text string) []Candidate {
	if text == "" {
		return nil
	}
	text = csiSeq.ReplaceAllString(text, "")

	var out []Candidate
	for _, p := range e.patterns {
		if p.Regex == nil {
			continue
		}
		for _, loc := range p.Regex.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			raw := strings.TrimSpace(text[loc[2]:loc[3]])
			if raw == "" {
				continue
			}

			path := raw
			if p.Transform != nil {
				path = p.Transform(path)
			}
			if path == "" {
				continue
			}
			// A skipped match is discarded outright; it does not fall back to anything else.
			if p.Skip != nil && p.Skip(path) {
				continue
			}

			out = append(out, Candidate{
				Path:     path,
				Pattern:  p.Name,
				Priority: p.Priority,
				Offset:   loc[0],
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Offset > out[j].Offset
	})
	return out
}
