package speech

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	fencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern   = regexp.MustCompile("`[^`]*`")
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// prepare turns assistant reply text into something that sounds natural when
// synthesized, then applies the mode-specific shaping for the language.
func prepare(raw string, mode Mode, assets LocaleAssets) string {
	text := sanitize(raw)
	if text == "" {
		return ""
	}
	if mode != ModeInformative {
		return text
	}

	// A comma after a sensor term makes the synthesizer breathe before the
	// value that follows it.
	for _, kw := range assets.PauseKeywords {
		text = insertPauseAfter(text, kw)
	}
	if assets.LeadIn != "" {
		text = assets.LeadIn + " " + text
	}
	return text
}

// sanitize removes markup and symbol noise so replies sound conversational.
func sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = fencedCodePattern.ReplaceAllString(raw, " ")
	raw = inlineCodePattern.ReplaceAllString(raw, " ")
	raw = markdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = urlPattern.ReplaceAllString(raw, " ")

	raw = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"#", " ",
		"~", " ",
		"|", " ",
		"<", " ",
		">", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '‍' || r == '️' || r == '⃣':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sk):
			// Emoji and decorative glyphs sound wrong spoken aloud.
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(spaceSentences(b.String()))
}

// spaceSentences inserts the missing space after sentence punctuation that
// runs straight into the next word. A period needs a letter on both sides
// so decimals like 7.2 stay intact.
func spaceSentences(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	var prev rune
	for i, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			next, _ := utf8.DecodeRuneInString(s[i+1:])
			if unicode.IsLetter(next) && (r != '.' || unicode.IsLetter(prev)) {
				b.WriteByte(' ')
			}
		}
		prev = r
	}
	return b.String()
}

// insertPauseAfter puts a comma after each whole-word occurrence of keyword
// unless punctuation already follows it.
func insertPauseAfter(text, keyword string) string {
	lower := strings.ToLower(text)
	kw := strings.ToLower(keyword)

	var b strings.Builder
	i := 0
	for i < len(text) {
		j := strings.Index(lower[i:], kw)
		if j < 0 {
			break
		}
		j += i
		end := j + len(kw)
		b.WriteString(text[i:end])
		i = end
		if !wordBoundary(lower, j, end) {
			continue
		}
		if end < len(text) && !isPausePunct(rune(text[end])) {
			b.WriteByte(',')
		}
	}
	b.WriteString(text[i:])
	return b.String()
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isPausePunct(r rune) bool {
	switch r {
	case ',', '.', '!', '?', ':', ';':
		return true
	default:
		return false
	}
}
