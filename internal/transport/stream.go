package transport

import (
	"context"
	"errors"
	"sync"
)

const streamBuffer = 16

// Stream is the Handle shared by all transports. A single producer goroutine
// emits into it; Cancel may be called from anywhere.
type Stream struct {
	turnID string
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	once   sync.Once

	mu      sync.Mutex
	stopped bool

	// producer-owned
	seq      uint64
	finished bool
}

// Run starts produce in its own goroutine and returns the handle for it.
// produce returning nil completes the turn; an error fails it, unless the
// turn was cancelled in which case nothing more is emitted.
func Run(ctx context.Context, turnID string, produce func(s *Stream) error) *Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		turnID: turnID,
		ctx:    streamCtx,
		cancel: cancel,
		events: make(chan Event, streamBuffer),
	}
	go func() {
		defer close(s.events)
		defer s.cancel()
		err := produce(s)
		if s.cancelled() {
			return
		}
		if err != nil {
			s.Fail(err)
			return
		}
		s.Complete()
	}()
	return s
}

func (s *Stream) TurnID() string           { return s.turnID }
func (s *Stream) Events() <-chan Event     { return s.events }
func (s *Stream) Context() context.Context { return s.ctx }

// Cancel stops the producer and discards anything still buffered.
func (s *Stream) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		for {
			select {
			case _, ok := <-s.events:
				if !ok {
					return
				}
			default:
				return
			}
		}
	})
}

func (s *Stream) cancelled() bool {
	return s.ctx.Err() != nil
}

// Chunk emits incremental content. It returns false once the stream is
// cancelled or finished, telling the producer to stop.
func (s *Stream) Chunk(delta string) bool {
	if delta == "" {
		return !s.finished && !s.cancelled()
	}
	return s.emit(Event{Kind: EventChunk, Delta: delta})
}

// Complete emits the success terminal event.
func (s *Stream) Complete() {
	if s.emit(Event{Kind: EventCompleted}) {
		s.finished = true
	}
}

// Fail emits the failure terminal event.
func (s *Stream) Fail(err error) {
	if err == nil {
		err = errors.New("stream failed")
	}
	if s.emit(Event{Kind: EventFailed, Err: err}) {
		s.finished = true
	}
}

func (s *Stream) emit(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.finished || s.cancelled() {
		return false
	}
	s.seq++
	ev.TurnID = s.turnID
	ev.Seq = s.seq
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}
