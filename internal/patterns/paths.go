package patterns

import (
	"regexp"
	"strings"
)

// Paths handled here may come from a foreign shell (a Windows prompt seen on a POSIX host or
// vice versa), so none of these helpers use the host's path/filepath rules.

var msysDrive = regexp.MustCompile(`^/([A-Za-z])(?:/|:/|$)`)

// MSYSToWindows converts an MSYS-style drive path ("/c/Users/alex") or a file-URL drive
// path ("/C:/Users/alex") into native form ("C:\Users\alex"). Other paths are returned as is.
func MSYSToWindows(p string) string {
	m := msysDrive.FindStringSubmatch(p)
	if m == nil {
		return p
	}
	rest := strings.TrimPrefix(p[len(m[0]):], "/")
	drive := strings.ToUpper(m[1]) + `:\`
	return drive + strings.ReplaceAll(strings.TrimSuffix(rest, "/"), "/", `\`)
}

// ExpandHome substitutes home for a leading "~" path segment.
// The separator of home decides how the remainder is joined.
func ExpandHome(p, home string) string {
	if home == "" || !strings.HasPrefix(p, "~") {
		return p
	}
	if p == "~" {
		return home
	}
	if p[1] != '/' && p[1] != '\\' {
		// "~user" style; leave it alone.
		return p
	}

	sep := "/"
	if strings.Contains(home, `\`) {
		sep = `\`
	}
	rest := strings.TrimLeft(p[1:], `/\`)
	if sep == `\` {
		rest = strings.ReplaceAll(rest, "/", `\`)
	}
	return strings.TrimRight(home, `/\`) + sep + rest
}

// TrimTrailingSeparator removes a trailing slash or backslash unless the path is a root
// ("/" or "C:\").
func TrimTrailingSeparator(p string) string {
	p = strings.TrimRight(p, " \t")
	for len(p) > 1 && (strings.HasSuffix(p, "/") || strings.HasSuffix(p, `\`)) {
		if len(p) == 3 && p[1] == ':' {
			break
		}
		p = p[:len(p)-1]
	}
	return p
}

// shellInstallDirs are directories a Git Bash / MSYS prompt shows when it was started from
// the shell's own installation rather than from a user's working directory.
var shellInstallDirs = []string{
	"/usr/bin",
	"/bin",
	"/mingw64/bin",
	"/mingw32/bin",
	"/ucrt64/bin",
	`C:\Program Files\Git`,
	`C:\Program Files (x86)\Git`,
	`C:\msys64`,
	`C:\Windows\System32`,
}

// IsShellInstallDir reports whether p looks like a shell installation directory.
func IsShellInstallDir(p string) bool {
	for _, dir := range shellInstallDirs {
		if hasPathPrefix(p, dir) {
			return true
		}
	}
	return false
}

// hasPathPrefix reports whether p equals prefix or lies below it. Windows-style prefixes
// compare case-insensitively.
func hasPathPrefix(p, prefix string) bool {
	if strings.Contains(prefix, `\`) || (len(prefix) > 1 && prefix[1] == ':') {
		p = strings.ToLower(p)
		prefix = strings.ToLower(prefix)
	}
	if p == prefix {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	next := p[len(prefix)]
	return next == '/' || next == '\\'
}
