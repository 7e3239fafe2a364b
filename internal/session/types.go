package session

import "time"

// CreateRequest defines the payload for opening a new session. VoiceHint
// optionally names the synthesis voice the device prefers.
type CreateRequest struct {
	Locale    string `json:"locale"`
	VoiceHint string `json:"voice_hint,omitempty"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	Locale          string    `json:"locale"`
	Status          Status    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
