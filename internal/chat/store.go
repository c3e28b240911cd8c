// Package chat holds the in-memory conversation of a session.
package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/klemjul/cryptochat/internal/llm"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrTurnInProgress = errors.New("wait for the current answer to finish")
)

type TurnState int

const (
	// TurnIdle accepts a new user submission.
	TurnIdle TurnState = iota
	// TurnStreaming is waiting for or receiving the assistant answer.
	TurnStreaming
)

func (s TurnState) String() string {
	switch s {
	case TurnStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

// Store is an ordered list of messages plus the state of the current turn.
// While a turn streams, the trailing assistant entry is the only mutable one.
type Store struct {
	mu       sync.Mutex
	messages []llm.Message
	turn     TurnState
	// open is true once the assistant entry of the streaming turn exists.
	open bool
}

// NewStore returns a store seeded with messages, typically the hidden system
// prompt.
func NewStore(initial ...llm.Message) *Store {
	return &Store{messages: append([]llm.Message(nil), initial...)}
}

// Messages returns a copy of the conversation.
func (s *Store) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.messages...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) Turn() TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Last returns the trailing entry.
func (s *Store) Last() (llm.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return llm.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// LastAssistant returns the most recent assistant answer.
func (s *Store) LastAssistant() (llm.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == llm.Assistant && !s.messages[i].Hidden {
			return s.messages[i], true
		}
	}
	return llm.Message{}, false
}

// HasVisible reports whether any displayable message exists.
func (s *Store) HasVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if !m.Hidden {
			return true
		}
	}
	return false
}

// Submit appends a user message and starts a turn. It returns the history to
// send, including the new message.
func (s *Store) Submit(content string) ([]llm.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn == TurnStreaming {
		return nil, ErrTurnInProgress
	}
	s.messages = append(s.messages, llm.Message{Role: llm.User, Content: content})
	s.turn = TurnStreaming
	s.open = false
	return append([]llm.Message(nil), s.messages...), nil
}

// AppendDelta merges text into the trailing assistant entry, or appends a new
// assistant entry when the trailing entry is not one.
func (s *Store) AppendDelta(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.messages)
	if (s.open || s.turn == TurnIdle) && n > 0 && s.messages[n-1].Role == llm.Assistant {
		s.messages[n-1].Content += text
		return
	}
	s.messages = append(s.messages, llm.Message{Role: llm.Assistant, Content: text})
	s.open = s.turn == TurnStreaming
}

// Complete ends the current turn. The assistant entry is final.
func (s *Store) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn = TurnIdle
	s.open = false
}

// Fail ends the current turn, keeping whatever was received.
func (s *Store) Fail(error) {
	s.Complete()
}

// Reset drops every visible message. Hidden messages stay.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn == TurnStreaming {
		return ErrTurnInProgress
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.Hidden {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}
