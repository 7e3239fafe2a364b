package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/aquavoice/internal/assistant"
	"github.com/aquasense/aquavoice/internal/catalog"
	"github.com/aquasense/aquavoice/internal/lang"
	"github.com/aquasense/aquavoice/internal/observability"
	"github.com/aquasense/aquavoice/internal/policy"
	"github.com/aquasense/aquavoice/internal/speech"
	"github.com/aquasense/aquavoice/internal/transcribe"
	"github.com/aquasense/aquavoice/internal/translate"
)

// Config fixes the per-conversation settings. The profile describes the
// user's language; the pivot language is what travels to the assistant.
type Config struct {
	SessionID     string
	Profile       lang.Profile
	PivotLanguage string
	SpeechMode    speech.Mode
}

// Orchestrator drives one conversation through its lifecycle: capture,
// outbound translation, assistant query, catalog resolution, inbound
// translation and speech. A single turn is in flight at any time; a newer
// turn or an explicit cancel invalidates everything the old turn still has
// queued.
type Orchestrator struct {
	transcriber transcribe.Provider
	permissions transcribe.PermissionChecker
	translator  *translate.EntityTranslator
	assist      assistant.Client
	snapshots   assistant.SnapshotProvider
	items       catalog.Provider
	speaker     *speech.Controller
	metrics     *observability.Metrics
	cfg         Config

	mu         sync.Mutex
	state      State
	turns      []Turn
	token      int64
	cancelTurn context.CancelFunc
	capture    *transcribe.Session
	lastStamp  time.Time
	turnStart  time.Time
	subs       map[int64]chan Event
	nextSub    int64
}

func NewOrchestrator(
	transcriber transcribe.Provider,
	permissions transcribe.PermissionChecker,
	translator *translate.EntityTranslator,
	assist assistant.Client,
	snapshots assistant.SnapshotProvider,
	items catalog.Provider,
	speaker *speech.Controller,
	metrics *observability.Metrics,
	cfg Config,
) *Orchestrator {
	if strings.TrimSpace(cfg.PivotLanguage) == "" {
		cfg.PivotLanguage = "en"
	}
	if cfg.SpeechMode == "" {
		cfg.SpeechMode = speech.ModePlain
	}
	if permissions == nil {
		permissions = transcribe.GrantedChecker{}
	}
	return &Orchestrator{
		transcriber: transcriber,
		permissions: permissions,
		translator:  translator,
		assist:      assist,
		snapshots:   snapshots,
		items:       items,
		speaker:     speaker,
		metrics:     metrics,
		cfg:         cfg,
		state:       StateIdle,
		subs:        make(map[int64]chan Event),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Turns returns a copy of the committed conversation log, oldest first.
func (o *Orchestrator) Turns() []Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Turn, len(o.turns))
	copy(out, o.turns)
	return out
}

// Subscribe registers an event listener. Events arrive in commit order; a
// slow listener loses events rather than stalling the conversation. The
// returned func unsubscribes.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan Event, 64)
	o.subs[id] = ch
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if sub, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(sub)
		}
	}
}

// StartTurn begins microphone capture. Permission and recognizer checks run
// before any state changes so a refused start leaves the conversation where
// it was. Starting while the assistant is speaking is a barge-in: the reply
// is cut off and capture begins immediately.
func (o *Orchestrator) StartTurn(ctx context.Context) error {
	perms, err := o.permissions.Check(ctx)
	if err != nil {
		return err
	}
	if !perms.RecordAudio || !perms.SpeechRecognition {
		return transcribe.ErrPermissionDenied
	}
	if !o.cfg.Profile.RecognizerAvailable {
		return transcribe.ErrRecognizerUnavailable
	}

	o.mu.Lock()
	var cancel context.CancelFunc
	bargeIn := false
	switch o.state {
	case StateIdle:
	case StateSpeaking:
		bargeIn = true
		cancel = o.cancelTurn
		o.cancelTurn = nil
	default:
		o.mu.Unlock()
		return ErrTurnInProgress
	}
	o.token++
	token := o.token
	o.turnStart = time.Now()
	o.setStateLocked(StateListening)
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if bargeIn {
		_ = o.speaker.Stop()
		o.indicator("barge_in")
	}

	capture, err := transcribe.Open(ctx, o.transcriber, o.cfg.Profile, func(text string) {
		o.emitPartial(token, text)
	})
	if err != nil {
		o.mu.Lock()
		if o.token == token {
			o.setStateLocked(StateIdle)
		}
		o.mu.Unlock()
		o.providerError("transcribe", "open_failed")
		return err
	}

	o.mu.Lock()
	if o.token != token {
		// Cancelled while the recognizer was starting up.
		o.mu.Unlock()
		_, _ = capture.Close()
		return nil
	}
	o.capture = capture
	o.mu.Unlock()
	return nil
}

// StopTurn ends capture and, when the transcript is non-empty, sends the
// turn down the pipeline. An empty transcript returns the conversation to
// idle without recording anything.
func (o *Orchestrator) StopTurn(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateListening || o.capture == nil {
		o.mu.Unlock()
		return ErrNotListening
	}
	capture := o.capture
	o.capture = nil
	token := o.token
	o.mu.Unlock()

	stopAt := time.Now()
	transcript, err := capture.Close()
	o.observeStage("capture_to_transcript", time.Since(stopAt))

	o.mu.Lock()
	if o.token != token {
		o.mu.Unlock()
		return nil
	}
	if err != nil {
		o.cancelTurn = nil
		o.setStateLocked(StateFailed)
		o.emitErrorLocked("transcription_failed", err.Error())
		o.mu.Unlock()
		o.providerError("transcribe", "capture_failed")
		o.outcome("failed")
		return nil
	}
	if transcript == "" {
		o.setStateLocked(StateIdle)
		o.mu.Unlock()
		o.outcome("empty")
		return nil
	}

	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancelTurn = cancel
	o.setStateLocked(StateTranslating)
	o.mu.Unlock()

	go o.runTurn(turnCtx, token, transcript)
	return nil
}

// CancelTurn abandons whatever is in flight and returns to idle. Committed
// turns stay in the log; a user turn whose reply never arrived stays too.
// Safe to call in any state.
func (o *Orchestrator) CancelTurn() {
	o.mu.Lock()
	o.token++
	cancel := o.cancelTurn
	o.cancelTurn = nil
	capture := o.capture
	o.capture = nil
	changed := o.state != StateIdle
	if changed {
		o.setStateLocked(StateIdle)
	}
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if capture != nil {
		_, _ = capture.Close()
	}
	_ = o.speaker.Stop()
	if changed {
		o.outcome("cancelled")
	}
}

// Acknowledge clears a failure after the user has seen it.
func (o *Orchestrator) Acknowledge() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateFailed {
		return ErrNotFailed
	}
	o.setStateLocked(StateIdle)
	return nil
}

// ClearConversation cancels any in-flight turn and erases the log.
func (o *Orchestrator) ClearConversation() {
	o.CancelTurn()
	o.mu.Lock()
	o.turns = nil
	o.mu.Unlock()
	o.event("conversation_cleared")
}

// runTurn carries one transcript through translation, the assistant,
// catalog resolution and speech. Every transition re-checks the turn token
// so a cancelled or superseded turn falls silent instead of corrupting the
// newer one.
func (o *Orchestrator) runTurn(ctx context.Context, token int64, transcript string) {
	userLang := lang.Code(o.cfg.Profile.Locale)
	pivotLang := lang.Code(o.cfg.PivotLanguage)
	sameLang := lang.Same(o.cfg.Profile.Locale, o.cfg.PivotLanguage)

	items := o.catalogItems(ctx)
	entityNames := make([]string, 0, len(items))
	for _, it := range items {
		entityNames = append(entityNames, it.Name)
	}

	// Outbound translation. A failure here aborts the turn: sending the
	// assistant text in a language it was not told about produces answers
	// the user cannot trust.
	pivot := transcript
	if !sameLang {
		stage := time.Now()
		translated, err := o.translator.Translate(ctx, transcript, userLang, pivotLang, entityNames)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.providerError("translate", "outbound_failed")
			o.fail(token, "translation_failed", err)
			return
		}
		pivot = translated
		o.observeStage("transcript_to_pivot", time.Since(stage))
	}

	history := o.pivotHistory()

	userTurn := Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      transcript,
		PivotText: pivot,
	}
	if !o.advance(token, StateThinking, &userTurn) {
		return
	}

	var reply assistant.Reply
	if decision := policy.CheckScope(pivot); decision.Rejected {
		o.indicator("off_topic_rejected")
		reply = assistant.Reply{Text: decision.Reply}
	} else {
		stage := time.Now()
		var err error
		reply, err = o.assist.Query(ctx, assistant.Request{
			SessionID: o.cfg.SessionID,
			Query:     pivot,
			Context:   assistant.WindowContext(history),
			Snapshot:  o.domainSnapshot(ctx),
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.providerError("assistant", "query_failed")
			o.fail(token, "assistant_failed", err)
			return
		}
		o.observeStage("pivot_to_reply", time.Since(stage))
	}

	resolved := catalog.Resolve(reply.ReferencedItemNames, items)

	// Inbound translation degrades instead of failing: a pivot-language
	// answer the user can partly follow beats losing the answer.
	localized := reply.Text
	spokenLocale := o.cfg.Profile.Locale
	if !sameLang {
		names := make([]string, 0, len(resolved))
		for _, it := range resolved {
			names = append(names, it.Name)
		}
		stage := time.Now()
		translated, err := o.translator.Translate(ctx, reply.Text, pivotLang, userLang, names)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.providerError("translate", "inbound_failed")
			o.indicator("inbound_translation_degraded")
			spokenLocale = o.cfg.PivotLanguage
		} else {
			localized = translated
			o.observeStage("reply_to_localized", time.Since(stage))
		}
	}

	assistantTurn := Turn{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      localized,
		PivotText: reply.Text,
		Items:     resolved,
	}
	if !o.advance(token, StateSpeaking, &assistantTurn) {
		return
	}

	speakAt := time.Now()
	events, err := o.speaker.Speak(ctx, localized, spokenLocale, o.cfg.SpeechMode)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.providerError("speech", "start_failed")
		o.fail(token, "speech_failed", err)
		return
	}

	for ev := range events {
		switch ev.Type {
		case speech.EventStarted:
			o.observeStage("localized_to_speech_start", time.Since(speakAt))
		case speech.EventFinished:
			o.finishTurn(token)
			return
		case speech.EventCancelled:
			// CancelTurn or a barge-in already moved the state machine.
			return
		case speech.EventError:
			detail := "speech synthesis failed"
			if ev.Err != nil {
				detail = ev.Err.Error()
			}
			o.providerError("speech", "playback_failed")
			o.fail(token, "speech_failed", errors.New(detail))
			return
		}
	}
	o.finishTurn(token)
}

func (o *Orchestrator) finishTurn(token int64) {
	o.mu.Lock()
	if o.token != token {
		o.mu.Unlock()
		return
	}
	o.cancelTurn = nil
	start := o.turnStart
	o.setStateLocked(StateIdle)
	o.mu.Unlock()

	if !start.IsZero() {
		o.observeStage("turn_total", time.Since(start))
	}
	o.outcome("completed")
}

// advance appends a turn and moves to the next state atomically, unless the
// turn has been superseded.
func (o *Orchestrator) advance(token int64, next State, turn *Turn) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token != token {
		return false
	}
	if turn != nil {
		turn.CreatedAt = o.nextStampLocked()
		o.turns = append(o.turns, *turn)
		o.emitLocked(Event{Type: EventTurnAppended, State: o.state, Turn: turn})
	}
	o.setStateLocked(next)
	return true
}

func (o *Orchestrator) fail(token int64, code string, err error) {
	o.mu.Lock()
	if o.token != token {
		o.mu.Unlock()
		return
	}
	o.cancelTurn = nil
	o.setStateLocked(StateFailed)
	o.emitErrorLocked(code, err.Error())
	o.mu.Unlock()
	o.outcome("failed")
}

func (o *Orchestrator) pivotHistory() []assistant.ContextTurn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]assistant.ContextTurn, 0, len(o.turns))
	for _, t := range o.turns {
		text := t.PivotText
		if text == "" {
			text = t.Text
		}
		out = append(out, assistant.ContextTurn{Role: string(t.Role), Text: text})
	}
	return out
}

func (o *Orchestrator) catalogItems(ctx context.Context) []catalog.Item {
	if o.items == nil {
		return nil
	}
	items, err := o.items.Snapshot(ctx)
	if err != nil {
		o.providerError("catalog", "snapshot_failed")
		return nil
	}
	return items
}

func (o *Orchestrator) domainSnapshot(ctx context.Context) *assistant.DomainSnapshot {
	if o.snapshots == nil {
		return nil
	}
	snap, err := o.snapshots.Snapshot(ctx)
	if err != nil {
		o.providerError("snapshot", "fetch_failed")
		return nil
	}
	return snap
}

func (o *Orchestrator) emitPartial(token int64, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token != token || o.state != StateListening {
		return
	}
	o.emitLocked(Event{Type: EventPartialTranscript, State: o.state, Partial: text})
}

// setStateLocked transitions and notifies. Callers hold o.mu.
func (o *Orchestrator) setStateLocked(next State) {
	if o.state == next {
		return
	}
	o.state = next
	o.emitLocked(Event{Type: EventStateChanged, State: next})
}

func (o *Orchestrator) emitErrorLocked(code, detail string) {
	o.emitLocked(Event{Type: EventErrored, State: o.state, Code: code, Detail: detail})
}

func (o *Orchestrator) emitLocked(ev Event) {
	for _, sub := range o.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

// nextStampLocked hands out strictly increasing timestamps so the log's
// order survives sorting by time.
func (o *Orchestrator) nextStampLocked() time.Time {
	now := time.Now()
	if !now.After(o.lastStamp) {
		now = o.lastStamp.Add(time.Nanosecond)
	}
	o.lastStamp = now
	return now
}

func (o *Orchestrator) observeStage(stage string, d time.Duration) {
	if o.metrics != nil {
		o.metrics.ObserveTurnStage(stage, d)
	}
}

func (o *Orchestrator) indicator(name string) {
	if o.metrics != nil {
		o.metrics.ObserveTurnIndicator(name)
	}
}

func (o *Orchestrator) providerError(provider, code string) {
	if o.metrics != nil {
		o.metrics.ProviderErrors.WithLabelValues(provider, code).Inc()
	}
}

func (o *Orchestrator) outcome(result string) {
	if o.metrics != nil {
		o.metrics.TurnOutcomes.WithLabelValues(result).Inc()
	}
}

func (o *Orchestrator) event(name string) {
	if o.metrics != nil {
		o.metrics.ConversationEvents.WithLabelValues(name).Inc()
	}
}
