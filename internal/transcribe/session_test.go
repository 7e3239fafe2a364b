package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aquasense/aquavoice/internal/lang"
)

func waitForLatest(t *testing.T, s *Session, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Latest() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Latest() = %q, want %q", s.Latest(), want)
}

func TestSessionFinalTranscript(t *testing.T) {
	p := NewMockProvider()
	s, err := Open(context.Background(), p, lang.Profile{Locale: "es-MX"}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream := p.LastStream()
	stream.Push(Event{Type: EventPartial, Text: "cuanto"})
	stream.Push(Event{Type: EventPartial, Text: "cuanto cuesta"})
	stream.Push(Event{Type: EventFinal, Text: "cuanto cuesta el filtro"})
	stream.Close()

	got, err := s.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got != "cuanto cuesta el filtro" {
		t.Fatalf("Close() = %q, want final transcript", got)
	}
}

func TestSessionFallsBackToLastPartial(t *testing.T) {
	p := NewMockProvider()
	s, err := Open(context.Background(), p, lang.Profile{Locale: "en-US"}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream := p.LastStream()
	stream.Push(Event{Type: EventPartial, Text: "show me"})
	stream.Push(Event{Type: EventPartial, Text: "show me the tank"})
	waitForLatest(t, s, "show me the tank")
	stream.Close()

	got, err := s.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got != "show me the tank" {
		t.Fatalf("Close() = %q, want last partial", got)
	}
}

func TestSessionWhitespaceTranscriptIsEmpty(t *testing.T) {
	p := NewMockProvider()
	s, err := Open(context.Background(), p, lang.Profile{Locale: "en-US"}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream := p.LastStream()
	stream.Push(Event{Type: EventFinal, Text: "   "})
	stream.Close()

	got, err := s.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Close() = %q, want empty", got)
	}
}

func TestSessionPartialCallback(t *testing.T) {
	p := NewMockProvider()
	partials := make(chan string, 8)
	s, err := Open(context.Background(), p, lang.Profile{Locale: "en-US"}, func(text string) {
		partials <- text
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream := p.LastStream()
	stream.Push(Event{Type: EventPartial, Text: "any"})
	stream.Push(Event{Type: EventPartial, Text: "any stock"})
	stream.Close()
	if _, err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	close(partials)
	var got []string
	for p := range partials {
		got = append(got, p)
	}
	if len(got) != 2 || got[1] != "any stock" {
		t.Fatalf("partial callbacks = %v, want [any, any stock]", got)
	}
}

func TestSessionStreamError(t *testing.T) {
	p := NewMockProvider()
	s, err := Open(context.Background(), p, lang.Profile{Locale: "en-US"}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream := p.LastStream()
	wantErr := errors.New("audio route lost")
	stream.Push(Event{Type: EventError, Err: wantErr})
	stream.Close()

	if _, err := s.Close(); !errors.Is(err, wantErr) {
		t.Fatalf("Close() error = %v, want %v", err, wantErr)
	}
}

func TestProviderUnavailableLanguage(t *testing.T) {
	p := NewMockProvider()
	p.Unavailable = map[string]bool{"sw": true}

	_, err := Open(context.Background(), p, lang.Profile{Locale: "sw-KE"}, nil)
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("Open() error = %v, want ErrRecognizerUnavailable", err)
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	p := NewMockProvider()
	s, err := Open(context.Background(), p, lang.Profile{Locale: "en-US"}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream := p.LastStream()
	stream.Push(Event{Type: EventFinal, Text: "done"})
	stream.Close()

	first, err := s.Close()
	if err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	second, err := s.Close()
	if err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if first != second || first != "done" {
		t.Fatalf("Close() twice = %q, %q, want both %q", first, second, "done")
	}
}
