package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"ConsultChat/internal/backend"
	"ConsultChat/internal/session"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	anthropicTokens  = 1024
)

// AnthropicTransport streams replies from the Anthropic messages API.
type AnthropicTransport struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAnthropicTransport(baseURL, apiKey, model string, httpClient *http.Client, logger *slog.Logger) *AnthropicTransport {
	return &AnthropicTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (t *AnthropicTransport) Name() string {
	return fmt.Sprintf("anthropic (%s)", t.model)
}

func (t *AnthropicTransport) Send(ctx context.Context, req Request) (Handle, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	// The messages API takes the system prompt separately and only user/assistant turns.
	turns := conversation(req, false)
	reqMessages := make([]backend.AnthropicMessage, 0, len(turns))
	for _, turn := range turns {
		if turn.role != string(session.RoleUser) && turn.role != string(session.RoleAssistant) {
			continue
		}
		reqMessages = append(reqMessages, backend.AnthropicMessage{Role: turn.role, Content: turn.content})
	}
	jsonData, err := json.Marshal(backend.AnthropicRequest{
		Model:     t.model,
		MaxTokens: anthropicTokens,
		System:    req.System,
		Messages:  reqMessages,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return Run(ctx, req.TurnID, func(s *Stream) error {
		httpReq, err := http.NewRequestWithContext(s.Context(), http.MethodPost, t.baseURL+"/v1/messages", bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("x-api-key", t.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("content-type", "application/json")

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}

		stopped := false
		err = readSSE(resp.Body, func(_ string, data string) error {
			var ev backend.AnthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			switch ev.Type {
			case backend.AnthropicEventContentBlockDelta:
				if ev.Delta != nil && !s.Chunk(ev.Delta.Text) {
					return context.Canceled
				}
			case backend.AnthropicEventPing:
				t.logger.Debug("anthropic keepalive", "turn_id", req.TurnID)
			case backend.AnthropicEventMessageStop:
				stopped = true
				return errStreamDone
			case backend.AnthropicEventError:
				if ev.Error != nil {
					return fmt.Errorf("anthropic %s: %s", ev.Error.Type, ev.Error.Message)
				}
				return errors.New("anthropic stream error")
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamDone) {
			return err
		}
		if !stopped {
			return errors.New("anthropic stream ended before message_stop")
		}
		t.logger.Debug("anthropic stream completed", "turn_id", req.TurnID)
		return nil
	}), nil
}
