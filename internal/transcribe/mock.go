package transcribe

import (
	"context"
	"sync"

	"github.com/aquasense/aquavoice/internal/lang"
)

// MockProvider is an in-memory recognizer for development and tests. Test
// code pushes hypotheses through the returned stream; languages listed in
// Unavailable refuse to start.
type MockProvider struct {
	mu          sync.Mutex
	streams     []*MockStream
	Unavailable map[string]bool
	StartErr    error
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Start(_ context.Context, profile lang.Profile) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	if p.Unavailable[lang.Code(profile.Locale)] {
		return nil, ErrRecognizerUnavailable
	}
	s := &MockStream{events: make(chan Event, 64)}
	p.streams = append(p.streams, s)
	return s, nil
}

// LastStream returns the most recently started stream, or nil.
func (p *MockProvider) LastStream() *MockStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return nil
	}
	return p.streams[len(p.streams)-1]
}

type MockStream struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

// Push emits an event to the session consuming this stream.
func (s *MockStream) Push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

func (s *MockStream) Events() <-chan Event { return s.events }

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
