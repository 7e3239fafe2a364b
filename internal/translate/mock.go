package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider is a deterministic offline engine for development and tests.
// It tags every word so the transformation is visible but reversible by eye,
// and it leaves placeholder tokens alone the way real engines do with opaque
// identifiers.
type MockProvider struct {
	mu    sync.Mutex
	calls []MockCall

	// Fail, when set, is returned from every Translate call.
	Fail error
}

type MockCall struct {
	Text       string
	SourceLang string
	TargetLang string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	fail := m.Fail
	m.mu.Unlock()
	if fail != nil {
		return "", fail
	}
	if sourceLang == targetLang {
		return text, nil
	}

	words := strings.Fields(text)
	for i, w := range words {
		if strings.HasPrefix(w, "QQX") {
			continue
		}
		words[i] = fmt.Sprintf("%s[%s]", w, targetLang)
	}
	return strings.Join(words, " "), nil
}

// Calls returns a copy of every Translate invocation seen so far.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
