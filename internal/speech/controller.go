package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aquasense/aquavoice/internal/lang"
)

// Controller prepares reply text, picks a voice for the language and drives
// the renderer. At most one utterance plays at a time; starting a new one
// while another plays stops the previous utterance first.
type Controller struct {
	renderer Renderer
	assets   map[string]LocaleAssets
	pivot    string
	rate     float64
	hint     string

	mu     sync.Mutex
	active bool
	done   chan struct{}
}

type ControllerConfig struct {
	// PivotLanguage is the fallback language when the reply language has
	// no voice.
	PivotLanguage string
	// Rate is the synthesis speed multiplier. Zero means the renderer
	// default.
	Rate float64
	// VoiceHint names a preferred voice by ID or name. When installed it
	// wins over the locale ladder.
	VoiceHint string
}

// NewController wires a renderer to the per-language speech assets. Load
// the assets once with LoadAssets and share the map across controllers.
func NewController(r Renderer, assets map[string]LocaleAssets, cfg ControllerConfig) *Controller {
	pivot := strings.TrimSpace(cfg.PivotLanguage)
	if pivot == "" {
		pivot = "en"
	}
	return &Controller{
		renderer: r,
		assets:   assets,
		pivot:    pivot,
		rate:     cfg.Rate,
		hint:     strings.TrimSpace(cfg.VoiceHint),
	}
}

// Speak prepares text for the locale and mode, selects a voice and starts
// synthesis. An utterance still playing is stopped first; utterances never
// overlap. The returned channel delivers progress events and closes after
// a terminal event. Empty prepared text yields an immediately finished
// utterance.
func (c *Controller) Speak(ctx context.Context, text, locale string, mode Mode) (<-chan Event, error) {
	c.mu.Lock()
	for c.active {
		prev := c.done
		c.mu.Unlock()
		_ = c.renderer.Stop()
		select {
		case <-prev:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
	}
	c.active = true
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		close(done)
	}

	prepared := prepare(text, mode, c.assets[lang.Code(locale)])
	if prepared == "" {
		release()
		finished := make(chan Event, 1)
		finished <- Event{Type: EventFinished}
		close(finished)
		return finished, nil
	}

	voice, err := c.selectVoice(ctx, locale)
	if err != nil {
		release()
		return nil, err
	}

	events, err := c.renderer.Speak(ctx, Utterance{Text: prepared, Voice: voice, Rate: c.rate})
	if err != nil {
		release()
		return nil, fmt.Errorf("start synthesis: %w", err)
	}

	out := make(chan Event, 8)
	go func() {
		defer release()
		defer close(out)
		for ev := range events {
			out <- ev
			switch ev.Type {
			case EventFinished, EventCancelled, EventError:
				return
			}
		}
		// Renderer closed without a terminal event; treat as finished.
		out <- Event{Type: EventFinished}
	}()
	return out, nil
}

// selectVoice walks the preference ladder: the configured voice hint, then
// a curated voice for the language, then any voice with the exact locale,
// then any voice sharing the language, then the same ladder for the pivot
// language.
func (c *Controller) selectVoice(ctx context.Context, locale string) (Voice, error) {
	voices, err := c.renderer.Voices(ctx)
	if err != nil {
		return Voice{}, fmt.Errorf("list voices: %w", err)
	}
	if c.hint != "" {
		for _, v := range voices {
			if v.ID == c.hint || strings.EqualFold(v.Name, c.hint) {
				return v, nil
			}
		}
	}
	if v, ok := c.matchVoice(voices, locale); ok {
		return v, nil
	}
	if v, ok := c.matchVoice(voices, c.pivot); ok {
		return v, nil
	}
	return Voice{}, ErrNoVoice
}

func (c *Controller) matchVoice(voices []Voice, locale string) (Voice, bool) {
	code := lang.Code(locale)

	for _, id := range c.assets[code].CuratedVoices {
		for _, v := range voices {
			if v.ID == id {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if strings.EqualFold(v.Locale, locale) {
			return v, true
		}
	}
	for _, v := range voices {
		if lang.Code(v.Locale) == code {
			return v, true
		}
	}
	return Voice{}, false
}

// Pause suspends the current utterance. Renderers without pause support
// return nil and keep playing.
func (c *Controller) Pause() error { return c.renderer.Pause() }

// Resume continues a paused utterance.
func (c *Controller) Resume() error { return c.renderer.Resume() }

// Stop aborts whatever is playing. Always safe.
func (c *Controller) Stop() error { return c.renderer.Stop() }
