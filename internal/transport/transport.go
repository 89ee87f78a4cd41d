// Package transport streams assistant replies from a remote endpoint. Every
// event carries the turn id it belongs to so consumers can drop stale ones.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"ConsultChat/internal/config"
	"ConsultChat/internal/session"
)

// EventKind classifies a transport event
type EventKind int

const (
	EventChunk EventKind = iota
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one incremental or terminal update for a turn
type Event struct {
	TurnID string
	Seq    uint64
	Kind   EventKind
	Delta  string
	Err    error
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed
}

// Request describes one user turn
type Request struct {
	TurnID  string
	Text    string
	System  string            // system prompt plus any document context
	History []session.Message // prior conversation, oldest first, excluding Text
}

// Handle controls one in-flight reply
type Handle interface {
	TurnID() string
	// Events yields the reply in order and is closed after the terminal
	// event, or after Cancel.
	Events() <-chan Event
	// Cancel is idempotent. Once it returns no further events are sent.
	Cancel()
}

// Transport starts streamed replies
type Transport interface {
	Send(ctx context.Context, req Request) (Handle, error)
	Name() string
}

// New builds the transport for the configured backend
func New(cfg config.Config, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// No client timeout: replies stream for as long as the turn's context allows.
	httpClient := &http.Client{Timeout: 0}

	switch cfg.Backend {
	case config.BackendOllama:
		return NewOllamaTransport(cfg.OllamaHost, cfg.OllamaModel, httpClient, logger), nil
	case config.BackendOpenAI:
		return NewOpenAITransport("openai", OpenAIBaseURL, os.Getenv("OPENAI_API_KEY"), cfg.OpenAIModel, httpClient, logger), nil
	case config.BackendGrok:
		return NewOpenAITransport("grok", GrokBaseURL, os.Getenv("GROK_API_KEY"), cfg.GrokModel, httpClient, logger), nil
	case config.BackendAnthropic:
		return NewAnthropicTransport(AnthropicBaseURL, os.Getenv("ANTHROPIC_API_KEY"), cfg.AnthropicModel, httpClient, logger), nil
	case config.BackendWebSocket:
		return NewWebSocketTransport(cfg.WebSocketURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

type chatTurn struct {
	role    string
	content string
}

// conversation flattens a request into role/content pairs ending with the new user text.
func conversation(req Request, includeSystem bool) []chatTurn {
	out := make([]chatTurn, 0, len(req.History)+2)
	if includeSystem && req.System != "" {
		out = append(out, chatTurn{role: string(session.RoleSystem), content: req.System})
	}
	for _, msg := range req.History {
		text := msg.Text()
		if text == "" {
			continue
		}
		if msg.Role == session.RoleSystem && !includeSystem {
			continue
		}
		out = append(out, chatTurn{role: string(msg.Role), content: text})
	}
	out = append(out, chatTurn{role: string(session.RoleUser), content: req.Text})
	return out
}
