package backend

// Frame types exchanged with a websocket streaming endpoint
const (
	FrameDelta = "delta"
	FrameDone  = "done"
	FrameError = "error"
)

// TurnRequest opens a streamed reply on a websocket endpoint
type TurnRequest struct {
	TurnID  string          `json:"turn_id"`
	Text    string          `json:"text"`
	System  string          `json:"system,omitempty"`
	History []OpenAIMessage `json:"history,omitempty"`
}

// TurnFrame is one server frame of a streamed reply
type TurnFrame struct {
	Type   string `json:"type"`
	TurnID string `json:"turn_id,omitempty"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}
