package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"ConsultChat/internal/session"
	"ConsultChat/internal/transport"
)

// fakeTransport hands out handles whose events the test pushes by hand.
type fakeTransport struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	requests []transport.Request
	sendErr  error
	// keepOpenOnCancel lets a test deliver events after Cancel, like a
	// transport that still has a buffered event in flight.
	keepOpenOnCancel bool
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(_ context.Context, req transport.Request) (transport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	h := &fakeHandle{
		id:        req.TurnID,
		ch:        make(chan transport.Event, 64),
		keepOpen:  f.keepOpenOnCancel,
		cancelled: make(chan struct{}),
	}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeTransport) last() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[len(f.handles)-1]
}

func (f *fakeTransport) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) request(i int) transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

type fakeHandle struct {
	id        string
	ch        chan transport.Event
	seq       uint64
	keepOpen  bool
	once      sync.Once
	closeOnce sync.Once
	cancelled chan struct{}
	cancels   int
	mu        sync.Mutex
}

func (h *fakeHandle) TurnID() string                 { return h.id }
func (h *fakeHandle) Events() <-chan transport.Event { return h.ch }

func (h *fakeHandle) Cancel() {
	h.mu.Lock()
	h.cancels++
	h.mu.Unlock()
	h.once.Do(func() {
		close(h.cancelled)
		if !h.keepOpen {
			h.close()
		}
	})
}

func (h *fakeHandle) wasCancelled() bool {
	select {
	case <-h.cancelled:
		return true
	default:
		return false
	}
}

func (h *fakeHandle) close() {
	h.closeOnce.Do(func() { close(h.ch) })
}

func (h *fakeHandle) push(kind transport.EventKind, delta string, err error) {
	h.seq++
	h.ch <- transport.Event{TurnID: h.id, Seq: h.seq, Kind: kind, Delta: delta, Err: err}
}

func (h *fakeHandle) chunk(delta string) { h.push(transport.EventChunk, delta, nil) }

func (h *fakeHandle) complete() {
	h.push(transport.EventCompleted, "", nil)
	h.close()
}

func (h *fakeHandle) fail(reason string) {
	h.push(transport.EventFailed, "", errors.New(reason))
	h.close()
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	mu       sync.Mutex
	statuses []session.Status
	updates  []session.Message
	failures map[string]error
	clears   int
}

func newRecorder() *recorder {
	return &recorder{failures: map[string]error{}}
}

func (r *recorder) StatusChanged(s session.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) MessageUpdated(m session.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, m)
}

func (r *recorder) TurnFailed(turnID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[turnID] = err
}

func (r *recorder) Cleared() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recorder) statusLog() []session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Status(nil), r.statuses...)
}

func (r *recorder) failure(turnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[turnID]
}

// countingStore wraps a store and counts loads.
type countingStore struct {
	inner interface {
		Load() session.Snapshot
		Save(session.Snapshot)
	}
	mu    sync.Mutex
	loads int
}

func (s *countingStore) Load() session.Snapshot {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.inner.Load()
}

func (s *countingStore) Save(snap session.Snapshot) { s.inner.Save(snap) }

// panicStore fails in the worst way possible.
type panicStore struct{}

func (panicStore) Load() session.Snapshot { panic("disk on fire") }
func (panicStore) Save(session.Snapshot)  { panic("disk on fire") }

// flakyStore rejects the first failures writes and counts every attempt.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	attempts int
	saved    session.Snapshot
}

func (s *flakyStore) Load() session.Snapshot { return session.EmptySnapshot() }

func (s *flakyStore) Save(snap session.Snapshot) { _ = s.TrySave(snap) }

func (s *flakyStore) TrySave(snap session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("database is locked")
	}
	s.saved = snap
	return nil
}

func (s *flakyStore) stats() (int, session.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, s.saved
}
