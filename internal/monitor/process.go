package monitor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessCwd returns the current working directory of pid. It satisfies CwdLookup.
func ProcessCwd(pid int) (string, error) {
	if pid <= 0 {
		return "", fmt.Errorf("invalid pid %d", pid)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	cwd, err := p.Cwd()
	if err != nil {
		return "", fmt.Errorf("failed to read cwd of process %d: %w", pid, err)
	}
	return cwd, nil
}

// ProcessName returns the executable name of pid, or "" when it cannot be read.
func ProcessName(pid int) string {
	if pid <= 0 {
		return ""
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ""
	}
	name, err := p.Name()
	if err != nil {
		return ""
	}
	return name
}
