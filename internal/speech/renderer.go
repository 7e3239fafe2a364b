package speech

import (
	"context"
	"errors"
)

// ErrNoVoice means no installed voice can speak the requested language, not
// even the pivot-language fallback.
var ErrNoVoice = errors.New("no voice available for language")

// Mode selects how reply text is prepared before synthesis.
type Mode string

const (
	// ModePlain speaks the reply as written.
	ModePlain Mode = "plain"
	// ModeInformative inserts a locale lead-in and brief pauses around
	// domain terms so sensor readings are easier to follow by ear.
	ModeInformative Mode = "informative"
)

// Voice is one installed synthesis voice.
type Voice struct {
	ID      string
	Name    string
	Locale  string
	Quality string
}

type EventType string

const (
	EventStarted   EventType = "started"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventFinished  EventType = "finished"
	EventCancelled EventType = "cancelled"
	EventError     EventType = "error"
)

// Event reports progress of one utterance. The channel delivering events is
// closed after a terminal event (finished, cancelled or error).
type Event struct {
	Type EventType
	Err  error
}

// Utterance is one prepared piece of text bound to a chosen voice.
type Utterance struct {
	Text  string
	Voice Voice
	Rate  float64
}

// Renderer abstracts the platform speech synthesizer.
type Renderer interface {
	// Voices lists the installed voices.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak begins synthesis and returns the utterance's event channel.
	Speak(ctx context.Context, u Utterance) (<-chan Event, error)
	// Pause suspends playback when the platform supports it.
	Pause() error
	// Resume continues paused playback.
	Resume() error
	// Stop aborts the current utterance. Safe to call with nothing playing.
	Stop() error
}
