package chunkbuf

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records scheduled callbacks so tests can fire them explicitly.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

type flushRecorder struct {
	mu      sync.Mutex
	flushed map[string][]string
}

func (r *flushRecorder) flush(id, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flushed == nil {
		r.flushed = make(map[string][]string)
	}
	r.flushed[id] = append(r.flushed[id], text)
}

func (r *flushRecorder) get(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushed[id]
}

func TestAppendDebouncesFragments(t *testing.T) {
	sched := &fakeScheduler{}
	rec := &flushRecorder{}
	b := New(rec.flush, WithAfterFunc(sched.AfterFunc))

	b.Append("s1", "\x1b[32malex@box")
	first := sched.last()
	b.Append("s1", ":~/src")
	b.Append("s1", "$ ")

	require.Len(t, sched.timers, 3)
	assert.True(t, first.stopped, "earlier timer should be cancelled on append")
	assert.Equal(t, DefaultDebounce, sched.last().d)
	assert.Empty(t, rec.get("s1"), "nothing flushes before the timer fires")

	// A stale timer firing must not flush.
	first.f()
	assert.Empty(t, rec.get("s1"))

	sched.last().f()
	assert.Equal(t, []string{"\x1b[32malex@box:~/src$ "}, rec.get("s1"))
	assert.Empty(t, b.Pending("s1"), "buffer is cleared after flush")
	assert.False(t, b.HasTimer("s1"))
}

func TestAppendTrimsOldestCharacters(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(nil, WithAfterFunc(sched.AfterFunc), WithMaxSize(8))

	b.Append("s1", "0123456789")
	assert.Equal(t, "23456789", b.Pending("s1"))

	b.Append("s1", "ab")
	assert.Equal(t, "456789ab", b.Pending("s1"))
}

func TestAppendCapCountsCharacters(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(nil, WithAfterFunc(sched.AfterFunc), WithMaxSize(4))

	b.Append("s1", "日本語テキスト")
	assert.Equal(t, "テキスト", b.Pending("s1"))

	b.Append("s1", "é")
	assert.Equal(t, "キストé", b.Pending("s1"))
}

func TestTrimFrontKeepsRunesWhole(t *testing.T) {
	s := "ééé" // 6 bytes, 3 characters
	assert.Equal(t, s, trimFront(s, 3))

	got := trimFront(s, 2)
	assert.Equal(t, "éé", got)
	assert.True(t, strings.HasSuffix(s, got))

	assert.Equal(t, "", trimFront(s, 0))
}

func TestAppendAfterCloseIsDropped(t *testing.T) {
	sched := &fakeScheduler{}
	rec := &flushRecorder{}
	b := New(rec.flush, WithAfterFunc(sched.AfterFunc))

	b.Append("s1", "alex@box:~$ ")
	first := sched.last()
	b.Close()
	assert.True(t, first.stopped)

	b.Append("s1", "alex@box:/tmp$ ")
	assert.Same(t, first, sched.last(), "no timer may be armed after Close")
	assert.Empty(t, b.Pending("s1"))
	assert.False(t, b.HasTimer("s1"))
}

func TestRemoveCancelsTimer(t *testing.T) {
	sched := &fakeScheduler{}
	rec := &flushRecorder{}
	b := New(rec.flush, WithAfterFunc(sched.AfterFunc))

	b.Append("s1", "PS C:\\Users\\alex>")
	timer := sched.last()
	b.Remove("s1")

	assert.True(t, timer.stopped)
	timer.f() // a callback already in flight must be a no-op
	assert.Empty(t, rec.get("s1"))
	assert.Empty(t, b.Pending("s1"))
}

func TestSessionsAreIndependent(t *testing.T) {
	sched := &fakeScheduler{}
	rec := &flushRecorder{}
	b := New(rec.flush, WithAfterFunc(sched.AfterFunc))

	b.Append("a", "one")
	ta := sched.last()
	b.Append("b", "two")
	tb := sched.last()

	assert.False(t, ta.stopped, "appending to b must not cancel a's timer")
	tb.f()
	ta.f()

	assert.Equal(t, []string{"one"}, rec.get("a"))
	assert.Equal(t, []string{"two"}, rec.get("b"))
}

func TestEmptyAppendIsIgnored(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(nil, WithAfterFunc(sched.AfterFunc))

	b.Append("s1", "")
	assert.Empty(t, sched.timers)
	assert.False(t, b.HasTimer("s1"))
}

func TestConfigure(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(nil, WithAfterFunc(sched.AfterFunc))

	b.Configure(4, 50*time.Millisecond)
	b.Append("s1", "abcdef")

	assert.Equal(t, "cdef", b.Pending("s1"))
	assert.Equal(t, 50*time.Millisecond, sched.last().d)
}

func TestRealTimerFlushes(t *testing.T) {
	done := make(chan string, 1)
	b := New(func(id, text string) { done <- text }, WithDebounce(10*time.Millisecond))
	defer b.Close()

	b.Append("s1", "hello")

	select {
	case text := <-done:
		assert.Equal(t, "hello", text)
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not happen")
	}
}
