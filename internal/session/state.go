package session

// State is the in-memory source of truth for a conversation.
// It performs no validation of status transitions and is not safe for
// concurrent use; its owner serialises access.
type State struct {
	messages  []Message
	index     map[string]int
	durations map[string]int64
	status    Status
}

func NewState() *State {
	return &State{
		messages:  []Message{},
		index:     map[string]int{},
		durations: map[string]int64{},
		status:    StatusReady,
	}
}

// Append adds msg at the end, or replaces the message with the same id in place.
func (s *State) Append(msg Message) {
	msg = msg.Clone()
	if i, ok := s.index[msg.ID]; ok {
		s.messages[i] = msg
		return
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
}

// ReplaceAll swaps the whole message list. Later duplicates of an id win.
func (s *State) ReplaceAll(messages []Message) {
	s.messages = make([]Message, 0, len(messages))
	s.index = make(map[string]int, len(messages))
	for _, m := range messages {
		s.Append(m)
	}
}

// ReplaceDurations swaps the whole duration map.
func (s *State) ReplaceDurations(durations map[string]int64) {
	s.durations = make(map[string]int64, len(durations))
	for k, v := range durations {
		s.durations[k] = v
	}
}

func (s *State) SetDuration(id string, ms int64) {
	s.durations[id] = ms
}

func (s *State) SetStatus(next Status) {
	s.status = next
}

func (s *State) Status() Status {
	return s.status
}

// Message returns a copy of the message with the given id.
func (s *State) Message(id string) (Message, bool) {
	i, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i].Clone(), true
}

// Messages returns a copy of the ordered message list.
func (s *State) Messages() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *State) Durations() map[string]int64 {
	out := make(map[string]int64, len(s.durations))
	for k, v := range s.durations {
		out[k] = v
	}
	return out
}

func (s *State) Len() int {
	return len(s.messages)
}

// Snapshot captures messages and durations for persistence.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Messages:  s.Messages(),
		Durations: s.Durations(),
	}
}
