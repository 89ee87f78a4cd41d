package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ConsultChat/internal/backend"
)

const closeGrace = time.Second

// WebSocketTransport streams replies over one websocket connection per turn.
type WebSocketTransport struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewWebSocketTransport(url string, logger *slog.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

func (t *WebSocketTransport) Name() string {
	return "websocket (" + t.url + ")"
}

func (t *WebSocketTransport) Send(ctx context.Context, req Request) (Handle, error) {
	turns := conversation(req, false)
	history := make([]backend.OpenAIMessage, 0, len(turns))
	for _, turn := range turns[:len(turns)-1] {
		history = append(history, backend.OpenAIMessage{Role: turn.role, Content: turn.content})
	}
	request := backend.TurnRequest{
		TurnID:  req.TurnID,
		Text:    req.Text,
		System:  req.System,
		History: history,
	}

	return Run(ctx, req.TurnID, func(s *Stream) error {
		conn, _, err := t.dialer.DialContext(s.Context(), t.url, nil)
		if err != nil {
			return fmt.Errorf("failed to connect to WebSocket: %w", err)
		}

		// ReadJSON ignores contexts, so closing the connection is what unblocks it on cancel.
		// closeConn may run while WriteJSON is in flight; WriteControl is the only
		// write gorilla allows concurrently with another writer.
		var closeOnce sync.Once
		closeConn := func() {
			closeOnce.Do(func() {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
				conn.Close()
			})
		}
		defer closeConn()
		stop := context.AfterFunc(s.Context(), closeConn)
		defer stop()

		if err := conn.WriteJSON(request); err != nil {
			return fmt.Errorf("failed to write request: %w", err)
		}

		for {
			var frame backend.TurnFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return errors.New("websocket closed before completion")
				}
				return fmt.Errorf("failed to read frame: %w", err)
			}
			if frame.TurnID != "" && frame.TurnID != req.TurnID {
				t.logger.Debug("dropping frame for another turn", "turn_id", req.TurnID, "frame_turn_id", frame.TurnID)
				continue
			}
			switch frame.Type {
			case backend.FrameDelta:
				if !s.Chunk(frame.Text) {
					return context.Canceled
				}
			case backend.FrameDone:
				return nil
			case backend.FrameError:
				if frame.Error == "" {
					frame.Error = "remote error"
				}
				return errors.New(frame.Error)
			default:
				t.logger.Warn("unknown websocket frame", "type", frame.Type)
			}
		}
	}), nil
}
