// Package controller owns a chat session: the message history, the status of
// the active turn, per-turn reply durations, persistence and cancellation.
//
// The controller starts unloaded. Load restores the persisted snapshot exactly
// once and opens the controller for input; until then Submit and Clear fail
// with ErrNotLoaded. At most one turn is active. Every transport event carries
// its turn id and is applied only while that turn is still the active one, so
// events arriving after a cancel or clear never touch the session.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ConsultChat/internal/config"
	"ConsultChat/internal/session"
	"ConsultChat/internal/store"
	"ConsultChat/internal/transport"
)

var (
	ErrNotLoaded      = errors.New("session is still loading")
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrBusy           = errors.New("a reply is already in progress")
	ErrNotActive      = errors.New("no reply in progress")
	ErrClosed         = errors.New("controller is closed")
)

// Observer receives session changes. Calls are made in the order the changes
// happened and never while the controller lock is held, but an Observer must
// not call back into the controller from inside a callback.
type Observer interface {
	StatusChanged(status session.Status)
	MessageUpdated(msg session.Message)
	TurnFailed(turnID string, err error)
	Cleared()
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClock replaces time.Now for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) { c.tracer = tracer }
}

func WithMeter(meter metric.Meter) Option {
	return func(c *Controller) { c.meter = meter }
}

func WithSystemPrompt(prompt string) Option {
	return func(c *Controller) { c.systemPrompt = prompt }
}

func WithMaxMessageChars(n int) Option {
	return func(c *Controller) { c.maxChars = n }
}

type turn struct {
	id     string
	handle transport.Handle
	start  time.Time
	ctx    context.Context
	span   trace.Span
}

// Controller is the session controller. It is safe for concurrent use.
type Controller struct {
	store     store.Store
	transport transport.Transport
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
	meter     metric.Meter
	metrics   turnMetrics
	persister *persister
	maxChars  int

	loadOnce sync.Once
	loaded   chan struct{}

	mu           sync.Mutex
	state        *session.State
	active       *turn
	systemPrompt string
	document     string
	closed       bool

	// notifyMu hands observer delivery over from the state lock so callbacks
	// keep the order of the changes that produced them.
	notifyMu sync.Mutex
	pumps    sync.WaitGroup
}

// New creates an unloaded controller. Call Load before accepting input.
func New(s store.Store, t transport.Transport, opts ...Option) *Controller {
	c := &Controller{
		store:     s,
		transport: t,
		now:       time.Now,
		maxChars:  config.DefaultMaxMessageChars,
		loaded:    make(chan struct{}),
		state:     session.NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("consultchat")
	}
	if c.meter == nil {
		c.meter = otel.GetMeterProvider().Meter("consultchat")
	}
	c.metrics = newTurnMetrics(c.meter, c.logger)
	c.persister = newPersister(s, c.logger)
	return c
}

// Load restores the persisted snapshot. Only the first call does any work.
func (c *Controller) Load() {
	c.loadOnce.Do(func() {
		snap := c.loadSnapshot()

		c.mu.Lock()
		c.state.ReplaceAll(snap.Messages)
		c.state.ReplaceDurations(snap.Durations)
		c.state.SetStatus(session.StatusReady)
		c.persister.remember(c.state.Snapshot())
		count := c.state.Len()
		c.mu.Unlock()

		c.logger.Info("session restored", "message_count", count, "duration_count", len(snap.Durations))
		close(c.loaded)
	})
}

func (c *Controller) loadSnapshot() (snap session.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot store panicked on load", "panic", r)
			snap = session.EmptySnapshot()
		}
	}()
	return c.store.Load()
}

// Loaded is closed once Load has completed.
func (c *Controller) Loaded() <-chan struct{} {
	return c.loaded
}

func (c *Controller) IsLoaded() bool {
	select {
	case <-c.loaded:
		return true
	default:
		return false
	}
}

// Submit appends a user message and starts streaming the reply. It returns
// the turn id, which is also the id the assistant message will carry.
func (c *Controller) Submit(ctx context.Context, text string) (string, error) {
	if !c.IsLoaded() {
		return "", ErrNotLoaded
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > c.maxChars {
		return "", fmt.Errorf("%w: %d characters, limit is %d", ErrMessageTooLong, n, c.maxChars)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.state.Status().Busy() {
		c.mu.Unlock()
		return "", ErrBusy
	}

	now := c.now()
	history := c.state.Messages()
	user := session.NewUserMessage(text, now)
	c.state.Append(user)

	t := &turn{id: session.NewID(), start: now}
	t.ctx, t.span = c.tracer.Start(context.WithoutCancel(ctx), "chat.turn",
		trace.WithAttributes(attribute.String("turn.id", t.id)))

	var notes []func(Observer)
	notes = append(notes, func(o Observer) { o.MessageUpdated(user) })

	handle, err := c.transport.Send(t.ctx, transport.Request{
		TurnID:  t.id,
		Text:    text,
		System:  c.systemTextLocked(),
		History: history,
	})
	if err != nil {
		// Send failing outright ends the turn like a failed stream.
		c.state.SetStatus(session.StatusError)
		c.persister.enqueue(c.state.Snapshot())
		c.endTurn(t, outcomeFailed, 0, err)
		notes = append(notes,
			func(o Observer) { o.StatusChanged(session.StatusError) },
			func(o Observer) { o.TurnFailed(t.id, err) },
		)
		c.logger.Error("failed to start reply", "turn_id", t.id, "error", err)
		c.unlockAndNotify(notes)
		return t.id, nil
	}

	t.handle = handle
	c.active = t
	c.state.SetStatus(session.StatusSubmitted)
	c.persister.enqueue(c.state.Snapshot())
	notes = append(notes, func(o Observer) { o.StatusChanged(session.StatusSubmitted) })
	c.logger.Info("turn submitted", "turn_id", t.id, "transport", c.transport.Name(), "chars", len(text))

	c.pumps.Add(1)
	go c.pump(t)

	c.unlockAndNotify(notes)
	return t.id, nil
}

// Cancel interrupts the active turn. Whatever reply content has arrived is
// kept as-is and no duration is recorded.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.cancelActiveLocked()
	c.state.SetStatus(session.StatusReady)
	c.persister.enqueue(c.state.Snapshot())
	c.unlockAndNotify([]func(Observer){
		func(o Observer) { o.StatusChanged(session.StatusReady) },
	})
	return nil
}

// Clear empties the conversation. An active turn is cancelled first.
func (c *Controller) Clear() error {
	if !c.IsLoaded() {
		return ErrNotLoaded
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.active != nil {
		c.cancelActiveLocked()
	}
	c.state.ReplaceAll(nil)
	c.state.ReplaceDurations(nil)
	c.state.SetStatus(session.StatusReady)
	c.persister.enqueue(c.state.Snapshot())
	c.logger.Info("session cleared")
	c.unlockAndNotify([]func(Observer){
		func(o Observer) { o.Cleared() },
		func(o Observer) { o.StatusChanged(session.StatusReady) },
	})
	return nil
}

// Dismiss acknowledges a failed turn and returns to ready.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	if c.state.Status() != session.StatusError {
		c.mu.Unlock()
		return
	}
	c.state.SetStatus(session.StatusReady)
	c.unlockAndNotify([]func(Observer){
		func(o Observer) { o.StatusChanged(session.StatusReady) },
	})
}

// SetDocumentContext stores text (e.g. a resume summary) that is sent to the
// assistant alongside the system prompt. It is not part of the message history.
func (c *Controller) SetDocumentContext(text string) {
	c.mu.Lock()
	c.document = strings.TrimSpace(text)
	c.mu.Unlock()
}

func (c *Controller) DocumentContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.document
}

func (c *Controller) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status()
}

func (c *Controller) Messages() []session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Messages()
}

func (c *Controller) Durations() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Durations()
}

func (c *Controller) Snapshot() session.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// ActiveTurn returns the id of the outstanding turn, or "".
func (c *Controller) ActiveTurn() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// Flush waits for pending snapshot writes to reach the store.
func (c *Controller) Flush() {
	c.persister.Flush()
}

// Close cancels any active turn, waits for stream goroutines and flushes
// pending writes.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.active != nil {
		c.cancelActiveLocked()
		c.state.SetStatus(session.StatusReady)
		c.persister.enqueue(c.state.Snapshot())
	}
	c.mu.Unlock()

	c.pumps.Wait()
	c.persister.Close()
}

func (c *Controller) pump(t *turn) {
	defer c.pumps.Done()
	for ev := range t.handle.Events() {
		c.apply(t, ev)
	}
	c.orphaned(t)
}

// apply folds one transport event into the session if its turn is still active.
func (c *Controller) apply(t *turn, ev transport.Event) {
	c.mu.Lock()
	if c.active != t || ev.TurnID != t.id {
		c.mu.Unlock()
		c.logger.Debug("dropping stale event", "turn_id", ev.TurnID, "kind", ev.Kind.String(), "seq", ev.Seq)
		return
	}

	var notes []func(Observer)
	switch ev.Kind {
	case transport.EventChunk:
		msg := c.appendDeltaLocked(t, ev.Delta)
		notes = append(notes, func(o Observer) { o.MessageUpdated(msg) })
		if c.state.Status() != session.StatusStreaming {
			c.state.SetStatus(session.StatusStreaming)
			notes = append(notes, func(o Observer) { o.StatusChanged(session.StatusStreaming) })
		}

	case transport.EventCompleted:
		if _, ok := c.state.Message(t.id); !ok {
			// Give the duration a message to belong to even when the reply was empty.
			msg := c.appendDeltaLocked(t, "")
			notes = append(notes, func(o Observer) { o.MessageUpdated(msg) })
		}
		elapsed := c.now().Sub(t.start).Milliseconds()
		c.state.SetDuration(t.id, elapsed)
		c.state.SetStatus(session.StatusReady)
		c.active = nil
		c.endTurn(t, outcomeCompleted, elapsed, nil)
		notes = append(notes, func(o Observer) { o.StatusChanged(session.StatusReady) })
		c.logger.Info("turn completed", "turn_id", t.id, "duration_ms", elapsed)

	case transport.EventFailed:
		err := ev.Err
		if err == nil {
			err = errors.New("reply failed")
		}
		c.state.SetStatus(session.StatusError)
		c.active = nil
		c.endTurn(t, outcomeFailed, 0, err)
		notes = append(notes,
			func(o Observer) { o.StatusChanged(session.StatusError) },
			func(o Observer) { o.TurnFailed(t.id, err) },
		)
		c.logger.Warn("turn failed", "turn_id", t.id, "error", err)
	}

	c.persister.enqueue(c.state.Snapshot())
	c.unlockAndNotify(notes)
}

// orphaned handles a stream that closed without a terminal event, which
// happens when the transport's parent context is cancelled.
func (c *Controller) orphaned(t *turn) {
	c.mu.Lock()
	if c.active != t {
		c.mu.Unlock()
		return
	}
	c.logger.Warn("stream closed without a terminal event", "turn_id", t.id)
	c.active = nil
	c.endTurn(t, outcomeCancelled, 0, nil)
	c.state.SetStatus(session.StatusReady)
	c.persister.enqueue(c.state.Snapshot())
	c.unlockAndNotify([]func(Observer){
		func(o Observer) { o.StatusChanged(session.StatusReady) },
	})
}

func (c *Controller) appendDeltaLocked(t *turn, delta string) session.Message {
	msg, ok := c.state.Message(t.id)
	if !ok {
		msg = session.Message{
			ID:        t.id,
			Role:      session.RoleAssistant,
			Parts:     []session.Part{{Type: session.PartText}},
			CreatedAt: c.now(),
		}
	}
	last := len(msg.Parts) - 1
	if last >= 0 && msg.Parts[last].Type == session.PartText {
		msg.Parts[last].Text += delta
	} else {
		msg.Parts = append(msg.Parts, session.Part{Type: session.PartText, Text: delta})
	}
	c.state.Append(msg)
	return msg
}

func (c *Controller) cancelActiveLocked() {
	t := c.active
	c.active = nil
	t.handle.Cancel()
	c.endTurn(t, outcomeCancelled, 0, nil)
	c.logger.Info("turn cancelled", "turn_id", t.id)
}

func (c *Controller) endTurn(t *turn, outcome string, elapsedMs int64, err error) {
	c.metrics.record(t.ctx, outcome, elapsedMs)
	t.span.SetAttributes(attribute.String("turn.outcome", outcome))
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}
	t.span.End()
}

func (c *Controller) systemTextLocked() string {
	if c.document == "" {
		return c.systemPrompt
	}
	return strings.TrimSpace(c.systemPrompt + "\n\nCandidate document summary:\n" + c.document)
}

// unlockAndNotify releases the state lock and delivers notes in order.
func (c *Controller) unlockAndNotify(notes []func(Observer)) {
	if c.observer == nil || len(notes) == 0 {
		c.mu.Unlock()
		return
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, note := range notes {
		note(c.observer)
	}
}
