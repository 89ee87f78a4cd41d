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
)

const (
	OpenAIBaseURL = "https://api.openai.com"
	GrokBaseURL   = "https://api.x.ai"
)

// OpenAITransport streams chat completions from OpenAI-compatible APIs (OpenAI, Grok).
type OpenAITransport struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenAITransport(name, baseURL, apiKey, model string, httpClient *http.Client, logger *slog.Logger) *OpenAITransport {
	return &OpenAITransport{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (t *OpenAITransport) Name() string {
	return fmt.Sprintf("%s (%s)", t.name, t.model)
}

func (t *OpenAITransport) Send(ctx context.Context, req Request) (Handle, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("%s API key not set", t.name)
	}

	turns := conversation(req, true)
	reqMessages := make([]backend.OpenAIMessage, len(turns))
	for i, turn := range turns {
		reqMessages[i] = backend.OpenAIMessage{Role: turn.role, Content: turn.content}
	}
	jsonData, err := json.Marshal(backend.OpenAIRequest{
		Model:    t.model,
		Messages: reqMessages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return Run(ctx, req.TurnID, func(s *Stream) error {
		httpReq, err := http.NewRequestWithContext(s.Context(), http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
		httpReq.Header.Set("content-type", "application/json")
		httpReq.Header.Set("accept", "text/event-stream")

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}

		finished := false
		err = readSSE(resp.Body, func(_ string, data string) error {
			if strings.TrimSpace(data) == backend.OpenAIStreamDone {
				finished = true
				return errStreamDone
			}
			var chunk backend.OpenAIStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return fmt.Errorf("failed to unmarshal chunk: %w", err)
			}
			if chunk.Error != nil {
				return fmt.Errorf("%s error: %s", t.name, chunk.Error.Message)
			}
			for _, choice := range chunk.Choices {
				if !s.Chunk(choice.Delta.Content) {
					return context.Canceled
				}
				if choice.FinishReason != nil && *choice.FinishReason != "" {
					finished = true
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamDone) {
			return err
		}
		if !finished {
			return fmt.Errorf("%s stream ended before completion", t.name)
		}
		t.logger.Debug("completion stream finished", "backend", t.name, "turn_id", req.TurnID)
		return nil
	}), nil
}
