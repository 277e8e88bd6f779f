package mail

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ConsoleSender logs messages instead of delivering them and keeps a copy of
// each one. It is the development default and the test double.
type ConsoleSender struct {
	logger zerolog.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*ConsoleSender)(nil)

func NewConsoleSender(logger zerolog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("to", msg.To.String()).
		Str("subject", msg.Subject).
		Str("template", msg.Template).
		Msg(msg.Text)

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of every message sent so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// Last returns the most recent message to addr, if any.
func (s *ConsoleSender) Last(addr string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].To.Address == addr {
			return s.sent[i], true
		}
	}
	return Message{}, false
}
