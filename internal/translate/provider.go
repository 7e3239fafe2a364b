package translate

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the engine has no model/language pack installed for
// the requested pair. Callers decide whether that is fatal (outbound leg) or
// degrades to pass-through (inbound leg).
var ErrUnavailable = errors.New("translation unavailable")

// Provider is the underlying machine-translation engine. Locales are primary
// language subtags ("en", "bn").
type Provider interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
