package cwd

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termsense/internal/patterns"
)

const testHome = "/home/alex"

func defaultExtractor() *Extractor {
	return NewExtractor(patterns.DefaultCWDPatterns(testHome))
}

func TestExtractExemplars(t *testing.T) {
	// Each exemplar must be claimed by exactly one pattern.
	tests := []struct {
		pattern string
		text    string
		want    string
	}{
		{"osc7", "\x1b]7;file://box/home/alex/my%20src\x07", "/home/alex/my src"},
		{"osc7", "\x1b]7;file://box/C:/Users/alex/proj\x1b\\", `C:\Users\alex\proj`},
		{"powershell", `PS C:\Users\alex\proj> `, `C:\Users\alex\proj`},
		{"cmd", "Microsoft Windows\r\n" + `D:\work\repo>`, `D:\work\repo`},
		{"msys", "\x1b[32malex@box \x1b[35mMINGW64 \x1b[33m/c/Users/alex/proj\x1b[0m\n$ ", `C:\Users\alex\proj`},
		{"msys", "alex@box MINGW64 ~/notes\n$ ", "/home/alex/notes"},
		{"msys", "\x1b[32malex@box \x1b[35mMINGW64 \x1b[33m/c/Users/alex/proj\x1b[0m\r\n$ ", `C:\Users\alex\proj`},
		{"msys", "alex@box MINGW64 ~/notes\r\n$ ", "/home/alex/notes"},
		{"msys", "alex@box UCRT64 /d/work  \r\n$ ", `D:\work`},
		{"posix", "alex@box:~/src/termsense$ ", "/home/alex/src/termsense"},
		{"posix", "root@host:/etc# ", "/etc"},
		{"posix", "alex@box:~/src$\r\n", "/home/alex/src"},
		{"cmd", "\r\n" + `C:\Users\alex>` + "\r\n", `C:\Users\alex`},
		{"title", "\x1b]0;alex@box: ~/docs\x07", "/home/alex/docs"},
	}

	e := defaultExtractor()
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			all := e.Candidates(tt.text)
			require.Len(t, all, 1, "exemplar %q matched %v", tt.text, all)
			assert.Equal(t, tt.pattern, all[0].Pattern)
			assert.Equal(t, tt.want, all[0].Path)
		})
	}
}

func TestExtractPowerShellExample(t *testing.T) {
	got, ok := defaultExtractor().Extract("PS C:\\Users\\alex\\proj>")
	require.True(t, ok)
	assert.Equal(t, "C:\\Users\\alex\\proj", got.Path)
}

func TestExtractPrefersHigherPriority(t *testing.T) {
	osc := "\x1b]7;file://box/home/alex/b\x07"
	prompt := "alex@box:~/a$ "

	for _, text := range []string{osc + prompt, prompt + osc} {
		got, ok := defaultExtractor().Extract(text)
		require.True(t, ok)
		assert.Equal(t, "/home/alex/b", got.Path)
		assert.Equal(t, "osc7", got.Pattern)
	}

	// Registry order must not matter either.
	reversed := patterns.DefaultCWDPatterns(testHome)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	got, ok := NewExtractor(reversed).Extract(prompt + osc)
	require.True(t, ok)
	assert.Equal(t, "osc7", got.Pattern)
}

func TestExtractSkipDiscardsMatch(t *testing.T) {
	t.Run("skipped default match yields nothing", func(t *testing.T) {
		_, ok := defaultExtractor().Extract("alex@box MINGW64 /usr/bin\n$ ")
		assert.False(t, ok)

		_, ok = defaultExtractor().Extract("alex@box MINGW64 /usr/bin\r\n$ ")
		assert.False(t, ok)
	})

	t.Run("skip does not fall back within the same pattern", func(t *testing.T) {
		p := patterns.CWDPattern{
			Name:     "single",
			Regex:    regexp.MustCompile(`DIR=(\S+)`),
			Skip:     func(p string) bool { return p == "/skip/me" },
			Priority: 10,
		}
		e := NewExtractor([]patterns.CWDPattern{p})
		_, ok := e.Extract("DIR=/skip/me")
		assert.False(t, ok)
	})

	t.Run("skip is evaluated on the transformed path", func(t *testing.T) {
		p := patterns.CWDPattern{
			Name:      "t",
			Regex:     regexp.MustCompile(`at (\S+)`),
			Transform: patterns.MSYSToWindows,
			Skip:      func(p string) bool { return p == `C:\tmp` },
			Priority:  10,
		}
		_, ok := NewExtractor([]patterns.CWDPattern{p}).Extract("at /c/tmp")
		assert.False(t, ok)
	})

	t.Run("lower priority match still wins when higher one is skipped", func(t *testing.T) {
		got, ok := defaultExtractor().Extract("alex@box MINGW64 /usr/bin\n$ alex@box:~/a$ ")
		require.True(t, ok)
		assert.Equal(t, "posix", got.Pattern)
	})
}

func TestExtractEqualPriorityIsDeterministic(t *testing.T) {
	a := patterns.CWDPattern{Name: "a", Regex: regexp.MustCompile(`A\[(\S+)\]`), Priority: 5}
	b := patterns.CWDPattern{Name: "b", Regex: regexp.MustCompile(`B\[(\S+)\]`), Priority: 5}
	text := "A[/one] B[/two]"

	e := NewExtractor([]patterns.CWDPattern{a, b})
	first, ok := e.Extract(text)
	require.True(t, ok)

	for i := 0; i < 20; i++ {
		again, ok := e.Extract(text)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, []string{"/one", "/two"}, first.Path)
}

func TestExtractEdgeCases(t *testing.T) {
	e := defaultExtractor()

	_, ok := e.Extract("")
	assert.False(t, ok, "empty text")

	_, ok = e.Extract("just some build output\n")
	assert.False(t, ok, "unmatched text")

	empty := patterns.CWDPattern{Name: "empty", Regex: regexp.MustCompile(`X(\s*)Y`), Priority: 1}
	_, ok = NewExtractor([]patterns.CWDPattern{empty}).Extract("X   Y")
	assert.False(t, ok, "blank capture is a non-match")

	optional := patterns.CWDPattern{Name: "opt", Regex: regexp.MustCompile(`Z(/\S+)?!`), Priority: 1}
	_, ok = NewExtractor([]patterns.CWDPattern{optional}).Extract("Z!")
	assert.False(t, ok, "unset capture is a non-match")
}

func TestExtractLatestPromptWins(t *testing.T) {
	text := "alex@box:~/old$ cd ../new\r\nalex@box:~/new$ "
	got, ok := defaultExtractor().Extract(text)
	require.True(t, ok)
	assert.Equal(t, "/home/alex/new", got.Path)
}
