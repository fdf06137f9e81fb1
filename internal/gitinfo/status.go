// Package gitinfo queries the git status of a working directory and debounces those
// queries per session.
package gitinfo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Info summarizes the git status of a directory. The zero value is the neutral result
// reported for non-repositories and failed queries.
type Info struct {
	Branch    string `json:"branch"`
	Dirty     int    `json:"dirty"` // Staged, modified, unmerged and untracked entries
	Ahead     int    `json:"ahead,omitempty"`
	Behind    int    `json:"behind,omitempty"`
	Staged    int    `json:"staged,omitempty"`
	Modified  int    `json:"modified,omitempty"`
	Untracked int    `json:"untracked,omitempty"`
}

// Query returns git information for path.
type Query func(ctx context.Context, path string) (Info, error)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 3 * time.Second

// Status runs `git status --porcelain=v2 --branch` in path.
func Status(ctx context.Context, path string) (Info, error) {
	if path == "" {
		return Info{}, fmt.Errorf("git status: empty path")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain=v2", "--branch")
	cmd.Dir = path
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not a git repository") {
			return Info{}, fmt.Errorf("not a git repository: %s", path)
		}
		return Info{}, fmt.Errorf("git status in %s: %w: %s", path, err, msg)
	}
	return ParseStatus(string(out)), nil
}

// ParseStatus parses porcelain v2 output produced with --branch.
func ParseStatus(output string) Info {
	var (
		info Info
		oid  string
	)

	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}

		// Header lines
		if strings.HasPrefix(line, "# ") {
			parts := strings.Fields(line)
			if len(parts) < 3 {
				continue
			}
			switch parts[1] {
			case "branch.head":
				info.Branch = parts[2]
			case "branch.oid":
				oid = parts[2]
			case "branch.ab":
				info.Ahead, _ = strconv.Atoi(strings.TrimPrefix(parts[2], "+"))
				if len(parts) > 3 {
					info.Behind, _ = strconv.Atoi(strings.TrimPrefix(parts[3], "-"))
				}
			}
			continue
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "?":
			info.Untracked++
			info.Dirty++
		case "1", "2":
			if len(parts) < 2 || len(parts[1]) < 2 {
				continue
			}
			xy := parts[1]
			if xy[0] != '.' {
				info.Staged++
			}
			if xy[1] != '.' {
				info.Modified++
			}
			info.Dirty++
		case "u":
			info.Staged++
			info.Modified++
			info.Dirty++
		}
	}

	// A detached HEAD is shown by its abbreviated commit.
	if info.Branch == "(detached)" {
		info.Branch = "HEAD"
		if len(oid) >= 7 && oid != "(initial)" {
			info.Branch = oid[:7]
		}
	}
	return info
}
