// Package transcript holds the ordered message log of one chat session.
// Messages are appended in order; the only in-place change is growing the
// content of a message that has not been finalized yet.
package transcript

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("message not found")
	ErrFrozen   = errors.New("message is final")
	ErrEmptyID  = errors.New("message id is empty")
)

type Store struct {
	mu       sync.RWMutex
	messages []*Message
	byID     map[string]*Message
}

func NewStore(initial ...Message) *Store {
	s := &Store{}
	s.reset(initial)
	return s
}

func (s *Store) Append(msg Message) error {
	if msg.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[msg.ID]; exists {
		return fmt.Errorf("append %s: duplicate id", msg.ID)
	}
	m := msg.clone()
	if m.Final {
		m.Kind = DeriveKind(m.Attachments)
	}
	s.messages = append(s.messages, &m)
	s.byID[m.ID] = &m
	return nil
}

// AppendContent grows the content of a message without moving it.
func (s *Store) AppendContent(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("append content %s: %w", id, ErrNotFound)
	}
	if m.Final {
		return fmt.Errorf("append content %s: %w", id, ErrFrozen)
	}
	var b strings.Builder
	b.Grow(len(m.Content) + len(text))
	b.WriteString(m.Content)
	b.WriteString(text)
	m.Content = b.String()
	return nil
}

// Finalize freezes the message and derives its kind. Finalizing twice is a
// no-op.
func (s *Store) Finalize(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("finalize %s: %w", id, ErrNotFound)
	}
	if m.Final {
		return nil
	}
	m.Final = true
	m.Kind = DeriveKind(m.Attachments)
	return nil
}

func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return m.clone(), true
}

func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1].clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Messages returns a copy in insertion order; callers may keep it across
// later mutations.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.clone())
	}
	return out
}

// Replace swaps the whole log, as a session reset does.
func (s *Store) Replace(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(msgs)
}

func (s *Store) reset(msgs []Message) {
	s.messages = make([]*Message, 0, len(msgs)+8)
	s.byID = make(map[string]*Message, len(msgs)+8)
	for _, msg := range msgs {
		if msg.ID == "" {
			continue
		}
		if _, exists := s.byID[msg.ID]; exists {
			continue
		}
		m := msg.clone()
		s.messages = append(s.messages, &m)
		s.byID[m.ID] = &m
	}
}
