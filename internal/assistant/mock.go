package assistant

import (
	"context"
	"strings"
	"sync"
)

// MockClient answers locally with canned domain replies. Used when no
// remote assistant is configured and in tests.
type MockClient struct {
	mu       sync.Mutex
	requests []Request

	// Reply, when set, overrides the canned answer.
	Reply *Reply
	// Err, when set, is returned from every Query call.
	Err error
}

func NewMockClient() *MockClient { return &MockClient{} }

func (m *MockClient) Query(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	reply := m.Reply
	errOut := m.Err
	m.mu.Unlock()

	if errOut != nil {
		return Reply{}, errOut
	}
	if reply != nil {
		return *reply, nil
	}

	q := strings.ToLower(req.Query)
	switch {
	case strings.Contains(q, "stock") || strings.Contains(q, "price") || strings.Contains(q, "buy"):
		return Reply{
			Text:                "We carry Aqua Boost Pro for water conditioning. Check the catalog for current pricing.",
			ReferencedItemNames: []string{"Aqua Boost Pro"},
		}, nil
	case strings.Contains(q, "ammonia") || strings.Contains(q, "water"):
		return Reply{Text: "Water quality looks stable. Keep ammonia below 0.25 ppm and retest tomorrow."}, nil
	default:
		return Reply{Text: "Monitor your tanks daily and keep feed rations consistent."}, nil
	}
}

// Requests returns a copy of every query seen so far.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
