package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client-originated commands.
	TypeStartTurn         MessageType = "start_turn"
	TypeStopTurn          MessageType = "stop_turn"
	TypeCancelTurn        MessageType = "cancel_turn"
	TypeAcknowledge       MessageType = "acknowledge"
	TypeClearConversation MessageType = "clear_conversation"

	// Server-originated events.
	TypeStateChanged      MessageType = "state_changed"
	TypeTurnAppended      MessageType = "turn_appended"
	TypePartialTranscript MessageType = "partial_transcript"
	TypeErrorEvent        MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientCommand covers every command the app can send; all five commands
// share one shape.
type ClientCommand struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type StateChanged struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
}

// TurnPayload is the wire form of one committed turn.
type TurnPayload struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Text      string        `json:"text"`
	PivotText string        `json:"pivot_text,omitempty"`
	Items     []ItemPayload `json:"items,omitempty"`
	CreatedAt int64         `json:"created_at_ms"`
}

// ItemPayload is one resolved catalog product attached to a reply.
type ItemPayload struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Unit         string  `json:"unit,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
}

type TurnAppended struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Turn      TurnPayload `json:"turn"`
}

type PartialTranscript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage validates an inbound frame and returns the typed
// command.
func ParseClientMessage(raw []byte) (ClientCommand, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientCommand{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeStartTurn, TypeStopTurn, TypeCancelTurn, TypeAcknowledge, TypeClearConversation:
		var msg ClientCommand
		if err := json.Unmarshal(raw, &msg); err != nil {
			return ClientCommand{}, err
		}
		if msg.SessionID == "" {
			return ClientCommand{}, fmt.Errorf("invalid %s: missing session_id", env.Type)
		}
		return msg, nil
	default:
		return ClientCommand{}, ErrUnsupportedType
	}
}
