package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSYSToWindows(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/c/Users/alex", `C:\Users\alex`},
		{"/d/work/repo/", `D:\work\repo`},
		{"/c", `C:\`},
		{"/C:/Users/alex", `C:\Users\alex`},
		{"/usr/bin", "/usr/bin"},
		{"/home/alex", "/home/alex"},
		{"/cygdrive/c", "/cygdrive/c"},
		{"relative/path", "relative/path"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MSYSToWindows(tt.in), "MSYSToWindows(%q)", tt.in)
	}
}

func TestExpandHome(t *testing.T) {
	tests := []struct {
		name string
		path string
		home string
		want string
	}{
		{"posix home", "~/src", "/home/alex", "/home/alex/src"},
		{"bare tilde", "~", "/home/alex", "/home/alex"},
		{"windows home", "~/src/app", `C:\Users\alex`, `C:\Users\alex\src\app`},
		{"no home configured", "~/src", "", "~/src"},
		{"not a home path", "/tmp", "/home/alex", "/tmp"},
		{"other user", "~bob/src", "/home/alex", "~bob/src"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandHome(tt.path, tt.home))
		})
	}
}

func TestTrimTrailingSeparator(t *testing.T) {
	assert.Equal(t, "/", TrimTrailingSeparator("/"))
	assert.Equal(t, `C:\`, TrimTrailingSeparator(`C:\`))
	assert.Equal(t, `C:\Users`, TrimTrailingSeparator(`C:\Users\`))
	assert.Equal(t, "/home/alex", TrimTrailingSeparator("/home/alex/  "))
}

func TestIsShellInstallDir(t *testing.T) {
	assert.True(t, IsShellInstallDir("/usr/bin"))
	assert.True(t, IsShellInstallDir(`c:\program files\git\usr\bin`))
	assert.True(t, IsShellInstallDir(`C:\Program Files\Git`))
	assert.False(t, IsShellInstallDir("/usr/binary"))
	assert.False(t, IsShellInstallDir(`C:\Users\alex`))
}

func TestDefaultCWDPatternsHaveUniquePriorities(t *testing.T) {
	seen := map[int]string{}
	for _, p := range DefaultCWDPatterns("/home/alex") {
		require.Equal(t, 1, p.Regex.NumSubexp(), "pattern %s must have one capture group", p.Name)
		if other, ok := seen[p.Priority]; ok {
			t.Errorf("patterns %s and %s share priority %d", p.Name, other, p.Priority)
		}
		seen[p.Priority] = p.Name
	}
}

func TestCompileCustom(t *testing.T) {
	t.Run("valid pattern with transforms", func(t *testing.T) {
		p, err := CompileCustom(CustomCWDPattern{
			Name:         "fish",
			Regex:        `fish:(\S+)>`,
			Priority:     55,
			Transforms:   []string{"home", "trim"},
			SkipPrefixes: []string{"/opt"},
		}, "/home/alex")
		require.NoError(t, err)

		m := p.Regex.FindStringSubmatch("fish:~/code/>")
		require.Len(t, m, 2)
		assert.Equal(t, "/home/alex/code", p.Transform(m[1]))
		assert.True(t, p.Skip("/opt/tools"))
		assert.False(t, p.Skip("/home/alex"))
	})

	t.Run("rejects bad regex", func(t *testing.T) {
		_, err := CompileCustom(CustomCWDPattern{Name: "bad", Regex: "("}, "")
		assert.Error(t, err)
	})

	t.Run("rejects wrong group count", func(t *testing.T) {
		_, err := CompileCustom(CustomCWDPattern{Name: "none", Regex: `PS .*>`}, "")
		assert.ErrorContains(t, err, "capture group")
	})

	t.Run("rejects unknown transform", func(t *testing.T) {
		_, err := CompileCustom(CustomCWDPattern{Name: "x", Regex: `(x)`, Transforms: []string{"upper"}}, "")
		assert.ErrorContains(t, err, "unknown transform")
	})
}

func TestDefaultOutputRules(t *testing.T) {
	rules := DefaultOutputRules()

	classify := func(text string) OutputType {
		for _, r := range rules {
			if r.Matches(text) {
				return r.Type
			}
		}
		return OutputNone
	}

	tests := []struct {
		text string
		want OutputType
	}{
		{"\x1b[31mError: build failed\x1b[0m", OutputError},
		{"npm WARN deprecated left-pad", OutputWarning},
		{"\x1b[1;33mheads up\x1b[0m", OutputWarning},
		{"All tests passed", OutputSuccess},
		{"✓ compiled", OutputSuccess},
		{"Downloading 45%", OutputProgress},
		{"[3/10] linking", OutputProgress},
		{"just some plain output", OutputNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.text), "classify(%q)", tt.text)
	}

	rule, ok := OutputRuleFor(rules, OutputWarning)
	require.True(t, ok)
	assert.Equal(t, "Warning", rule.Label)
}
