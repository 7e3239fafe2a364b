package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// contextWindow is how many prior turns accompany each query. Older turns
// stay in the conversation log but never travel upstream.
const contextWindow = 6

// ContextTurn is one prior exchange entry, already in the pivot language.
type ContextTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request carries one pivot-language query plus everything the remote
// assistant needs to ground its answer.
type Request struct {
	SessionID string         `json:"session_id"`
	Query     string         `json:"query"`
	Context   []ContextTurn  `json:"context,omitempty"`
	Snapshot  *DomainSnapshot `json:"snapshot,omitempty"`
}

// Reply is the assistant's answer. ReferencedItemNames lists catalog product
// names the answer mentions, for exact-name resolution downstream.
type Reply struct {
	Text                string   `json:"text"`
	ReferencedItemNames []string `json:"referenced_items,omitempty"`
}

// QueryError describes an upstream failure with enough detail to decide
// whether retrying is worthwhile.
type QueryError struct {
	StatusCode int
	Detail     string
}

func (e *QueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("assistant query failed: status %d: %s", e.StatusCode, e.Detail)
	}
	return "assistant query failed: " + e.Detail
}

// Retryable reports whether the failure is transient. Mirrors the usual
// HTTP semantics: timeouts, rate limits and server errors may clear up,
// client errors will not.
func (e *QueryError) Retryable() bool {
	switch e.StatusCode {
	case 0, 408, 429:
		return true
	}
	return e.StatusCode >= 500
}

// Client answers domain queries. Implementations must honor ctx
// cancellation promptly; an abandoned turn should not hold a network slot.
type Client interface {
	Query(ctx context.Context, req Request) (Reply, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	HTTPURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient builds a client for the configured mode. "auto" picks HTTP when
// a URL is configured and otherwise falls back to the mock.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPClient(cfg.HTTPURL, cfg.APIKey, cfg.Timeout), nil
		}
		return NewMockClient(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, fmt.Errorf("assistant HTTP url is required for http mode")
		}
		return NewHTTPClient(cfg.HTTPURL, cfg.APIKey, cfg.Timeout), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported assistant mode %q", cfg.Mode)
	}
}

// WindowContext trims history to the newest contextWindow turns, preserving
// oldest-first order.
func WindowContext(history []ContextTurn) []ContextTurn {
	if len(history) <= contextWindow {
		return history
	}
	return history[len(history)-contextWindow:]
}
