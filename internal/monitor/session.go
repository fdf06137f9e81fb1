package monitor

import (
	"sort"
	"time"

	"termsense/internal/activity"
	"termsense/internal/detect"
	"termsense/internal/gitinfo"
)

// lastOutputMax caps the diagnostic copy of the most recent chunk.
const lastOutputMax = 512

// Meta describes a session at start.
type Meta struct {
	PID        int    // Shell or program process ID (0 = unknown)
	Shell      string // Program name (e.g., "bash", "pwsh")
	Title      string
	Cwd        string // Initial working directory, if the host knows it
	Foreground bool
}

// Session is the engine's record for one terminal.
// Fields are guarded by the owning Engine's mutex.
type Session struct {
	ID         string
	PID        int
	Shell      string
	Title      string
	Cwd        string // Empty until resolved
	LastOutput string // Tail of the most recent chunk, for diagnostics
	StartedAt  time.Time
	Foreground bool

	Activity  activity.State
	Assistant detect.Session

	Git     gitinfo.Info
	gitPath string // Directory Git describes; empty until the first result

	lastCwdLookup time.Time
	lookupBusy    bool
}

func newSession(id string, meta Meta, now time.Time) *Session {
	return &Session{
		ID:         id,
		PID:        meta.PID,
		Shell:      meta.Shell,
		Title:      meta.Title,
		Cwd:        meta.Cwd,
		StartedAt:  now,
		Foreground: meta.Foreground,
		Activity:   activity.NewState(),
		Assistant:  detect.NewSession(),
	}
}

// GitKnown reports whether Git holds a result for the current working directory.
func (s *Session) GitKnown() bool {
	return s.gitPath != "" && s.gitPath == s.Cwd
}

func (s *Session) recordOutput(text string) {
	if len(text) > lastOutputMax {
		text = text[len(text)-lastOutputMax:]
	}
	s.LastOutput = text
}

// Store holds session records keyed by ID.
// It is not synchronized; the Engine serializes access.
type Store struct {
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Add inserts s, replacing any record with the same ID.
func (st *Store) Add(s *Session) {
	st.sessions[s.ID] = s
}

// Get returns the session with the given ID.
func (st *Store) Get(id string) (*Session, bool) {
	s, ok := st.sessions[id]
	return s, ok
}

// Remove deletes the session and reports whether it existed.
func (st *Store) Remove(id string) bool {
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

// Len returns the number of sessions.
func (st *Store) Len() int {
	return len(st.sessions)
}

// IDs returns session IDs in sorted order.
func (st *Store) IDs() []string {
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns every session ordered by ID.
func (st *Store) All() []*Session {
	ids := st.IDs()
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, st.sessions[id])
	}
	return out
}
