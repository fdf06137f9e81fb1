package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"termsense/internal/config"
)

const (
	filePrefix  = "termsense-"
	fileSuffix  = ".log"
	currentLink = "termsense.log"
	dateLayout  = "2006-01-02"
)

// DefaultDir returns ~/.termsense/logs.
func DefaultDir() string {
	return filepath.Join(config.DefaultConfigDir(), "logs")
}

// DailyFile is an io.Writer that starts a new file each day. termsense.log in the
// same directory links to the current one.
type DailyFile struct {
	mu          sync.Mutex
	dir         string
	file        *os.File
	currentDate string
	now         func() time.Time
}

// OpenDailyFile creates dir, removes logs older than retentionDays and opens today's file.
func OpenDailyFile(dir string, retentionDays int) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if _, err := CleanupLogs(dir, retentionDays); err != nil {
		return nil, err
	}

	d := &DailyFile{dir: dir, now: time.Now}
	if err := d.rotate(); err != nil {
		return nil, err
	}
	return d, nil
}

// rotate opens the file for the current date if it isn't already open.
func (d *DailyFile) rotate() error {
	today := d.now().Format(dateLayout)
	if d.file != nil && d.currentDate == today {
		return nil
	}
	if d.file != nil {
		d.file.Close()
	}

	path := filepath.Join(d.dir, filePrefix+today+fileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	d.file = f
	d.currentDate = today

	link := filepath.Join(d.dir, currentLink)
	os.Remove(link)
	os.Symlink(filepath.Base(path), link)
	return nil
}

// Write appends p to the current day's file.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotate(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

// Path returns the file currently written to.
func (d *DailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		return d.file.Name()
	}
	return filepath.Join(d.dir, currentLink)
}

// Close closes the current file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// FileInfo describes one daily log file.
type FileInfo struct {
	Name string
	Path string
	Date time.Time
	Size int64
}

// ListLogFiles returns the daily log files in dir, newest first.
func ListLogFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var logs []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := parseLogName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logs = append(logs, FileInfo{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
			Date: date,
			Size: info.Size(),
		})
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].Date.After(logs[j].Date) })
	return logs, nil
}

// CleanupLogs removes daily files older than retentionDays. Zero keeps everything.
func CleanupLogs(dir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	logs, err := ListLogFiles(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, l := range logs {
		if !l.Date.Before(cutoff) {
			continue
		}
		if err := os.Remove(l.Path); err != nil {
			continue
		}
		deleted++
	}
	return deleted, nil
}

// parseLogName extracts the date from termsense-2006-01-02.log.
func parseLogName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
