package transcribe

import (
	"context"
	"strings"
	"sync"

	"github.com/aquasense/aquavoice/internal/lang"
)

// Session wraps one capture stream, retaining only the newest hypothesis so
// callers observe the recognizer as a single evolving line of text.
type Session struct {
	stream Stream

	mu     sync.Mutex
	latest string
	final  string
	err    error
	done   chan struct{}
	closed bool
}

// Open starts a capture for the profile and begins consuming its events.
// onPartial, when non-nil, is invoked for each partial hypothesis.
func Open(ctx context.Context, provider Provider, profile lang.Profile, onPartial func(text string)) (*Session, error) {
	stream, err := provider.Start(ctx, profile)
	if err != nil {
		return nil, err
	}
	s := &Session{stream: stream, done: make(chan struct{})}
	go s.consume(onPartial)
	return s, nil
}

func (s *Session) consume(onPartial func(text string)) {
	defer close(s.done)
	for ev := range s.stream.Events() {
		switch ev.Type {
		case EventPartial:
			s.mu.Lock()
			s.latest = ev.Text
			s.mu.Unlock()
			if onPartial != nil {
				onPartial(ev.Text)
			}
		case EventFinal:
			s.mu.Lock()
			s.final = ev.Text
			s.mu.Unlock()
		case EventError:
			s.mu.Lock()
			s.err = ev.Err
			s.mu.Unlock()
		}
	}
}

// Latest returns the newest hypothesis seen so far.
func (s *Session) Latest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Close stops the capture and returns the committed transcript. When the
// recognizer never committed a final result, the last partial stands in; a
// whitespace-only transcript comes back empty.
func (s *Session) Close() (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return s.result()
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.stream.Close()
	<-s.done
	return s.result()
}

func (s *Session) result() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	text := s.final
	if strings.TrimSpace(text) == "" {
		text = s.latest
	}
	return strings.TrimSpace(text), nil
}
