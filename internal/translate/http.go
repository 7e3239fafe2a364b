package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider forwards text to a translation service.
type HTTPProvider struct {
	url    string
	client *http.Client
}

func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type httpRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type httpResponse struct {
	Text string `json:"text"`
}

func (p *HTTPProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	payload, err := json.Marshal(httpRequest{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out httpResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: malformed response: %s", ErrUnavailable, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", fmt.Errorf("%w: empty translation", ErrUnavailable)
	}
	return out.Text, nil
}

// NewProvider builds an engine for the configured mode. "auto" picks HTTP
// when a URL is configured and otherwise falls back to the mock.
func NewProvider(mode, httpURL string) (Provider, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "auto"
	}
	switch mode {
	case "auto":
		if strings.TrimSpace(httpURL) != "" {
			return NewHTTPProvider(httpURL), nil
		}
		return NewMockProvider(), nil
	case "http":
		if strings.TrimSpace(httpURL) == "" {
			return nil, fmt.Errorf("translate HTTP url is required for http mode")
		}
		return NewHTTPProvider(httpURL), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported translate mode %q", mode)
	}
}
