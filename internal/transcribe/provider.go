package transcribe

import (
	"context"
	"errors"

	"github.com/aquasense/aquavoice/internal/lang"
)

var (
	// ErrRecognizerUnavailable means no speech recognizer exists for the
	// requested language on this device.
	ErrRecognizerUnavailable = errors.New("speech recognizer unavailable for language")

	// ErrPermissionDenied means the platform refused microphone or speech
	// recognition access.
	ErrPermissionDenied = errors.New("speech capture permission denied")
)

type EventType string

const (
	EventPartial EventType = "partial"
	EventFinal   EventType = "final"
	EventError   EventType = "error"
)

// Event is one recognizer emission. Partial events carry the best hypothesis
// so far; the final event carries the committed transcript for the whole
// capture.
type Event struct {
	Type       EventType
	Text       string
	Confidence float64
	Err        error
}

// Stream is one live capture on the device recognizer.
type Stream interface {
	// Events delivers partial hypotheses and the final transcript. The
	// channel is closed when the capture ends.
	Events() <-chan Event
	// Close stops capture. Safe to call more than once.
	Close() error
}

// Provider abstracts the platform speech recognizer.
type Provider interface {
	// Start begins capturing for the given language profile. It fails
	// with ErrRecognizerUnavailable when the locale has no recognizer.
	Start(ctx context.Context, profile lang.Profile) (Stream, error)
}

// Permissions reports what the platform has granted.
type Permissions struct {
	RecordAudio       bool
	SpeechRecognition bool
}

// PermissionChecker answers whether capture can begin at all. Checked before
// any capture starts so a denial never leaves the conversation mid-flight.
type PermissionChecker interface {
	Check(ctx context.Context) (Permissions, error)
}

// GrantedChecker always reports full permission. Useful for servers and
// tests where no platform permission model exists.
type GrantedChecker struct{}

func (GrantedChecker) Check(context.Context) (Permissions, error) {
	return Permissions{RecordAudio: true, SpeechRecognition: true}, nil
}
