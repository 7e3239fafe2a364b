package lang

import "strings"

// Profile describes the language a conversational turn is spoken in. It is
// selected once when recording starts; the language may change between turns
// but never mid-turn.
type Profile struct {
	// Locale is a BCP 47 tag such as "en-US" or "bn-IN".
	Locale string `json:"locale"`
	// RecognizerAvailable reports whether an on-device speech recognizer
	// exists for this locale.
	RecognizerAvailable bool `json:"recognizer_available"`
	// VoiceHint optionally names a preferred synthesis voice.
	VoiceHint string `json:"voice_hint,omitempty"`
}

// Code returns the bare language subtag of the profile locale: "bn-IN" -> "bn".
func (p Profile) Code() string {
	return Code(p.Locale)
}

// Code extracts the primary language subtag from a BCP 47 locale tag.
func Code(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

// Same reports whether two locale tags share a primary language subtag.
func Same(a, b string) bool {
	return Code(a) != "" && Code(a) == Code(b)
}
