package conversation

import (
	"time"

	"github.com/aquasense/aquavoice/internal/catalog"
)

// State is the single conversation lifecycle state. Exactly one state holds
// at any moment; every transition is observable through Subscribe.
type State string

const (
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateTranslating State = "translating"
	StateThinking    State = "thinking"
	StateSpeaking    State = "speaking"
	StateFailed      State = "failed"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one committed conversation entry. Text is in the user's language;
// PivotText is the same content in the pivot language and is what travels
// to the remote assistant as context.
type Turn struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Text      string         `json:"text"`
	PivotText string         `json:"pivot_text,omitempty"`
	Items     []catalog.Item `json:"items,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type EventType string

const (
	EventStateChanged      EventType = "state_changed"
	EventTurnAppended      EventType = "turn_appended"
	EventPartialTranscript EventType = "partial_transcript"
	EventErrored           EventType = "error"
)

// Event is one observable conversation change. State is set on every event;
// Turn accompanies turn_appended, Partial accompanies partial_transcript,
// Code and Detail accompany error events.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state"`
	Turn    *Turn     `json:"turn,omitempty"`
	Partial string    `json:"partial,omitempty"`
	Code    string    `json:"code,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}
