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

// OllamaTransport streams replies from a local Ollama server via /api/chat.
type OllamaTransport struct {
	host       string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOllamaTransport(host, model string, httpClient *http.Client, logger *slog.Logger) *OllamaTransport {
	return &OllamaTransport{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (t *OllamaTransport) Name() string {
	return fmt.Sprintf("ollama (%s)", t.model)
}

func (t *OllamaTransport) Send(ctx context.Context, req Request) (Handle, error) {
	turns := conversation(req, true)
	reqMessages := make([]backend.OllamaMessage, len(turns))
	for i, turn := range turns {
		reqMessages[i] = backend.OllamaMessage{Role: turn.role, Content: turn.content}
	}

	jsonData, err := json.Marshal(backend.OllamaRequest{
		Model:    t.model,
		Messages: reqMessages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return Run(ctx, req.TurnID, func(s *Stream) error {
		httpReq, err := http.NewRequestWithContext(s.Context(), http.MethodPost, t.host+"/api/chat", bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("content-type", "application/json")

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}

		done := false
		err = readLines(resp.Body, func(line []byte) error {
			var chunk backend.OllamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				return fmt.Errorf("failed to unmarshal chunk: %w", err)
			}
			if chunk.Error != "" {
				return fmt.Errorf("ollama error: %s", chunk.Error)
			}
			if !s.Chunk(chunk.Message.Content) {
				return context.Canceled
			}
			if chunk.Done {
				done = true
				return errStreamDone
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamDone) {
			return err
		}
		if !done {
			return errors.New("ollama stream ended before completion")
		}
		t.logger.Debug("ollama stream completed", "turn_id", req.TurnID, "model", t.model)
		return nil
	}), nil
}
