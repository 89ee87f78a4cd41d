package controller

import (
	"log/slog"

	"ConsultChat/internal/cache"
	"ConsultChat/internal/session"
	"ConsultChat/internal/store"
)

// persister writes snapshots on a background goroutine. Its mailbox holds
// only the newest snapshot, so enqueueing never blocks and stale snapshots
// are never written after newer ones.
type persister struct {
	store   store.Store
	logger  *slog.Logger
	last    cache.LastWrite
	mailbox chan session.Snapshot
	flush   chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

func newPersister(s store.Store, logger *slog.Logger) *persister {
	p := &persister{
		store:   s,
		logger:  logger,
		mailbox: make(chan session.Snapshot, 1),
		flush:   make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue replaces any pending snapshot with snap. Callers serialise enqueue.
func (p *persister) enqueue(snap session.Snapshot) {
	for {
		select {
		case p.mailbox <- snap:
			return
		default:
		}
		select {
		case <-p.mailbox:
		default:
		}
	}
}

// remember marks snap as already stored, e.g. right after loading it.
func (p *persister) remember(snap session.Snapshot) {
	p.last.Record(cache.Fingerprint(snap.Prune()))
}

// Flush blocks until every enqueued snapshot has been handed to the store.
func (p *persister) Flush() {
	reply := make(chan struct{})
	select {
	case p.flush <- reply:
		<-reply
	case <-p.done:
	}
}

// Close flushes and stops the writer. It is safe to call more than once.
func (p *persister) Close() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case snap := <-p.mailbox:
			p.write(snap)
		case reply := <-p.flush:
			p.drain()
			close(reply)
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	select {
	case snap := <-p.mailbox:
		p.write(snap)
	default:
	}
}

func (p *persister) write(snap session.Snapshot) {
	snap = snap.Prune()
	key, changed := p.last.Changed(snap)
	if !changed {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("snapshot store panicked", "panic", r)
		}
	}()
	// Only a confirmed write is remembered, so an identical snapshot is retried.
	if checked, ok := p.store.(store.CheckedStore); ok {
		if err := checked.TrySave(snap); err != nil {
			p.logger.Error("failed to persist snapshot", "error", err)
			return
		}
	} else {
		p.store.Save(snap)
	}
	p.last.Record(key)
}
