package speech

import (
	"context"
	"sync"
)

// MockRenderer simulates the platform synthesizer. Utterances stay "playing"
// until the test finishes or stops them, unless AutoFinish is set.
type MockRenderer struct {
	mu         sync.Mutex
	voices     []Voice
	utterances []Utterance
	current    chan Event
	paused     bool

	// AutoFinish completes every utterance immediately.
	AutoFinish bool
	// VoicesErr, when set, is returned from Voices.
	VoicesErr error
}

func NewMockRenderer(voices ...Voice) *MockRenderer {
	return &MockRenderer{voices: voices}
}

func (m *MockRenderer) Voices(context.Context) ([]Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.VoicesErr != nil {
		return nil, m.VoicesErr
	}
	out := make([]Voice, len(m.voices))
	copy(out, m.voices)
	return out, nil
}

func (m *MockRenderer) Speak(_ context.Context, u Utterance) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utterances = append(m.utterances, u)
	ch := make(chan Event, 8)
	ch <- Event{Type: EventStarted}
	if m.AutoFinish {
		ch <- Event{Type: EventFinished}
		close(ch)
		return ch, nil
	}
	m.current = ch
	return ch, nil
}

// Finish completes the in-flight utterance.
func (m *MockRenderer) Finish() {
	m.terminate(Event{Type: EventFinished})
}

func (m *MockRenderer) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	return nil
}

func (m *MockRenderer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	return nil
}

func (m *MockRenderer) Stop() error {
	m.terminate(Event{Type: EventCancelled})
	return nil
}

func (m *MockRenderer) terminate(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.current <- ev
	close(m.current)
	m.current = nil
}

// Utterances returns a copy of everything spoken so far.
func (m *MockRenderer) Utterances() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Utterance, len(m.utterances))
	copy(out, m.utterances)
	return out
}

// Paused reports whether the renderer is currently paused.
func (m *MockRenderer) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}
