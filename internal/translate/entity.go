package translate

import (
	"context"
	"fmt"
	"strings"
)

// Placeholder tokens survive translation engines untouched because they look
// like opaque identifiers rather than words. The ordinal keeps them unique
// within one call; the map is never reused across calls.
const placeholderFormat = "QQX%dXQQ"

// EntityTranslator wraps a translation engine so that designated literal
// strings (catalog product names) reappear verbatim in the output, no matter
// how the engine would normally render them.
type EntityTranslator struct {
	provider Provider
}

func NewEntityTranslator(p Provider) *EntityTranslator {
	return &EntityTranslator{provider: p}
}

// Translate renders text from sourceLang to targetLang while keeping every
// occurrence of the supplied entity strings unchanged. Entities are matched
// case-insensitively in the order supplied; first match wins per position.
// Entities absent from the input are simply unused.
func (t *EntityTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string, entities []string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	masked, placeholders := maskEntities(text, entities)

	translated, err := t.provider.Translate(ctx, masked, sourceLang, targetLang)
	if err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", sourceLang, targetLang, err)
	}

	return restoreEntities(translated, placeholders), nil
}

type placeholderEntry struct {
	token    string
	original string
}

func maskEntities(text string, entities []string) (string, []placeholderEntry) {
	var placeholders []placeholderEntry
	for _, entity := range entities {
		entity = strings.TrimSpace(entity)
		if entity == "" {
			continue
		}
		token := fmt.Sprintf(placeholderFormat, len(placeholders))
		replaced, hit := replaceFold(text, entity, token)
		if !hit {
			continue
		}
		text = replaced
		placeholders = append(placeholders, placeholderEntry{token: token, original: entity})
	}
	return text, placeholders
}

func restoreEntities(text string, placeholders []placeholderEntry) string {
	for _, p := range placeholders {
		// Engines occasionally case-fold unknown tokens, so restore
		// case-insensitively too.
		text, _ = replaceFold(text, p.token, p.original)
	}
	return text
}

// replaceFold replaces every case-insensitive occurrence of old with new and
// reports whether at least one replacement happened.
func replaceFold(s, old, new string) (string, bool) {
	if old == "" {
		return s, false
	}
	var b strings.Builder
	hit := false
	i := 0
	for i < len(s) {
		j := indexFold(s, old, i)
		if j < 0 {
			break
		}
		b.WriteString(s[i:j])
		b.WriteString(new)
		i = j + len(old)
		hit = true
	}
	if !hit {
		return s, false
	}
	b.WriteString(s[i:])
	return b.String(), true
}

// indexFold finds the first case-insensitive occurrence of sub in s at or
// after position from. Entity names are short phrases, so a linear scan with
// EqualFold windows is plenty.
func indexFold(s, sub string, from int) int {
	n := len(sub)
	for i := from; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}
