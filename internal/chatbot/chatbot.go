package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"ConsultChat/internal/controller"
	"ConsultChat/internal/document"
	"ConsultChat/internal/prompts"
	"ConsultChat/internal/session"
	"ConsultChat/internal/store"
	"ConsultChat/internal/transport"
)

// ChatBot is the terminal front end for a chat session
type ChatBot struct {
	ctrl    *controller.Controller
	docs    *document.Client
	logger  *slog.Logger
	backend string
	view    *renderer

	// loop-owned
	pending string
}

// NewChatBot wires a controller around the store and transport and renders
// its changes to out.
func NewChatBot(st store.Store, tr transport.Transport, docs *document.Client, out io.Writer, logger *slog.Logger, opts ...controller.Option) *ChatBot {
	if logger == nil {
		logger = slog.Default()
	}
	view := &renderer{out: out, turnEnded: make(chan struct{}, 1)}
	opts = append(opts, controller.WithLogger(logger), controller.WithObserver(view))
	return &ChatBot{
		ctrl:    controller.New(st, tr, opts...),
		docs:    docs,
		logger:  logger,
		backend: tr.Name(),
		view:    view,
	}
}

// Run loads the session and reads commands and messages from in until EOF,
// /quit or ctx is done.
func (cb *ChatBot) Run(ctx context.Context, in io.Reader) error {
	defer cb.ctrl.Close()

	cb.view.printf("=== ConsultChat ===\n")
	cb.view.printf("Backend: %s\n", cb.backend)
	cb.view.printf("Loading conversation...\n")

	go cb.ctrl.Load()
	select {
	case <-cb.ctrl.Loaded():
	case <-ctx.Done():
		return ctx.Err()
	}
	cb.renderTranscript()
	cb.view.printf("Type /help for commands, /quit to exit\n\n")

	lines := make(chan string)
	go readLines(in, lines)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	eof := false
	cb.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-sigs:
			if cb.ctrl.ActiveTurn() == "" {
				cb.view.printf("\n")
				return nil
			}
			if err := cb.ctrl.Cancel(); err != nil && !errors.Is(err, controller.ErrNotActive) {
				cb.logger.Error("failed to cancel turn", "error", err)
			}

		case <-cb.view.turnEnded:
			if cb.finishTurn() {
				if eof {
					return nil
				}
				cb.prompt()
			}

		case line, ok := <-lines:
			if !ok {
				eof = true
				lines = nil
				if !cb.ctrl.Status().Busy() {
					cb.finishTurn()
					return nil
				}
				continue
			}
			quit := cb.handleLine(ctx, strings.TrimSpace(line))
			if quit {
				cb.view.printf("Goodbye!\n")
				return nil
			}
			if cb.pending == "" {
				cb.prompt()
			}
		}
	}
}

func readLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func (cb *ChatBot) prompt() {
	cb.view.printf("You: ")
}

func (cb *ChatBot) renderTranscript() {
	messages := cb.ctrl.Messages()
	if len(messages) == 0 {
		return
	}
	durations := cb.ctrl.Durations()
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			cb.view.printf("You: %s\n", msg.Text())
		case session.RoleAssistant:
			cb.view.printf("Assistant: %s", msg.Text())
			if ms, ok := durations[msg.ID]; ok {
				cb.view.printf(" %s", formatElapsed(ms))
			}
			cb.view.printf("\n")
		}
	}
	cb.view.printf("\n")
}

// finishTurn reports the outcome of the pending turn once it has ended.
func (cb *ChatBot) finishTurn() bool {
	if cb.pending == "" {
		return false
	}
	status := cb.ctrl.Status()
	if status.Busy() {
		return false
	}
	cb.view.endLine()
	if ms, ok := cb.ctrl.Durations()[cb.pending]; ok {
		cb.view.printf("%s\n\n", formatElapsed(ms))
	} else if status == session.StatusReady {
		cb.view.printf("[stopped]\n\n")
	} else {
		cb.view.printf("Send a new message to retry, or /dismiss.\n\n")
	}
	cb.pending = ""
	return true
}

func formatElapsed(ms int64) string {
	return fmt.Sprintf("(%.1fs)", float64(ms)/1000)
}

// handleLine dispatches one line of input and reports whether to quit
func (cb *ChatBot) handleLine(ctx context.Context, input string) bool {
	if input == "" {
		return false
	}

	if !strings.HasPrefix(input, "/") {
		if cb.ctrl.Status().Busy() {
			cb.view.printf("A reply is in progress; type /stop to cancel it.\n")
			return false
		}
		cb.submit(ctx, input)
		return false
	}

	quit, err := cb.handleCommand(ctx, input)
	if err != nil {
		cb.view.printf("Error: %v\n", err)
		cb.logger.Error("command error", "command", input, "error", err)
	}
	return quit
}

func (cb *ChatBot) submit(ctx context.Context, text string) {
	turnID, err := cb.ctrl.Submit(ctx, text)
	if err != nil {
		cb.view.printf("Error: %v\n", err)
		cb.logger.Warn("message rejected", "error", err)
		return
	}
	cb.pending = turnID
}

// handleCommand handles slash commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil
	case "/status":
		cb.printStatus()
		return false, nil
	case "/stop":
		if err := cb.ctrl.Cancel(); err != nil {
			if errors.Is(err, controller.ErrNotActive) {
				cb.view.printf("Nothing to stop.\n")
				return false, nil
			}
			return false, err
		}
		return false, nil
	}

	if cb.ctrl.Status().Busy() {
		cb.view.printf("A reply is in progress; type /stop to cancel it.\n")
		return false, nil
	}

	switch parts[0] {
	case "/clear":
		return false, cb.ctrl.Clear()

	case "/dismiss":
		cb.ctrl.Dismiss()
		return false, nil

	case "/modes":
		cb.printModes()
		return false, nil

	case "/mode":
		if len(parts) != 3 {
			return false, fmt.Errorf("usage: /mode <category> <number> (see /modes)")
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return false, fmt.Errorf("invalid preset number: %s", parts[2])
		}
		preset, err := prompts.Find(parts[1], n)
		if err != nil {
			return false, err
		}
		cb.view.printf("%s\n", preset.Prompt)
		cb.submit(ctx, preset.Prompt)
		return false, nil

	case "/upload":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /upload <path to .pdf, .doc or .docx>")
		}
		return false, cb.upload(ctx, strings.TrimSpace(strings.TrimPrefix(cmd, "/upload")))

	case "/help":
		cb.view.printf("Available commands:\n")
		cb.view.printf("  /modes                  - List practice modes\n")
		cb.view.printf("  /mode <category> <n>    - Send a preset prompt (e.g. /mode case-prep 1)\n")
		cb.view.printf("  /upload <path>          - Attach a resume summary as context\n")
		cb.view.printf("  /stop                   - Stop the reply in progress (Ctrl+C also works)\n")
		cb.view.printf("  /dismiss                - Acknowledge a failed reply\n")
		cb.view.printf("  /clear                  - Start a new conversation\n")
		cb.view.printf("  /status                 - Show session status\n")
		cb.view.printf("  /quit, /exit            - Exit\n")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

func (cb *ChatBot) upload(ctx context.Context, path string) error {
	if cb.docs == nil {
		return errors.New("document upload is not configured")
	}
	cb.view.printf("Reading %s...\n", filepath.Base(path))
	summary, err := cb.docs.Summarize(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to process document: %w", err)
	}
	cb.ctrl.SetDocumentContext(summary)
	cb.view.printf("Attached %s (%d characters of context)\n", filepath.Base(path), len(summary))
	return nil
}

func (cb *ChatBot) printStatus() {
	cb.view.printf("Status:   %s\n", cb.ctrl.Status())
	cb.view.printf("Backend:  %s\n", cb.backend)
	cb.view.printf("Messages: %d\n", len(cb.ctrl.Messages()))
	if doc := cb.ctrl.DocumentContext(); doc != "" {
		cb.view.printf("Document: attached (%d characters)\n", len(doc))
	} else {
		cb.view.printf("Document: none\n")
	}
}

func (cb *ChatBot) printModes() {
	for _, c := range prompts.Categories {
		cb.view.printf("\n%s [%s] - %s\n", c.Title, c.ID, c.Description)
		for i, p := range c.Presets {
			cb.view.printf("  %d. %s\n", i+1, p.Label)
		}
	}
	cb.view.printf("\n")
}

// renderer prints controller changes as they happen. Callbacks never block.
type renderer struct {
	mu       sync.Mutex
	out      io.Writer
	streamID string
	printed  int

	turnEnded chan struct{}
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// endLine finishes a partially streamed reply line.
func (r *renderer) endLine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamID != "" {
		fmt.Fprint(r.out, " ")
	}
	r.streamID = ""
	r.printed = 0
}

func (r *renderer) StatusChanged(status session.Status) {
	if status.Busy() {
		return
	}
	select {
	case r.turnEnded <- struct{}{}:
	default:
	}
}

func (r *renderer) MessageUpdated(msg session.Message) {
	if msg.Role != session.RoleAssistant {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID != r.streamID {
		r.streamID = msg.ID
		r.printed = 0
		fmt.Fprint(r.out, "Assistant: ")
	}
	text := msg.Text()
	if len(text) > r.printed {
		fmt.Fprint(r.out, text[r.printed:])
		r.printed = len(text)
	}
}

func (r *renderer) TurnFailed(turnID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamID != "" {
		fmt.Fprint(r.out, "\n")
	}
	r.streamID = ""
	r.printed = 0
	fmt.Fprintf(r.out, "Error: %v\n", err)
}

func (r *renderer) Cleared() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamID = ""
	r.printed = 0
	fmt.Fprint(r.out, "Conversation cleared.\n")
}
