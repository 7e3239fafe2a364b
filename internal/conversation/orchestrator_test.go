package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aquasense/aquavoice/internal/assistant"
	"github.com/aquasense/aquavoice/internal/catalog"
	"github.com/aquasense/aquavoice/internal/lang"
	"github.com/aquasense/aquavoice/internal/policy"
	"github.com/aquasense/aquavoice/internal/speech"
	"github.com/aquasense/aquavoice/internal/transcribe"
	"github.com/aquasense/aquavoice/internal/translate"
)

type fixture struct {
	orch    *Orchestrator
	stt     *transcribe.MockProvider
	engine  *translate.MockProvider
	assist  *assistant.MockClient
	speaker *speech.MockRenderer
}

func newFixture(t *testing.T, locale string, items ...catalog.Item) *fixture {
	t.Helper()
	stt := transcribe.NewMockProvider()
	engine := translate.NewMockProvider()
	assist := assistant.NewMockClient()
	renderer := speech.NewMockRenderer(
		speech.Voice{ID: "v-en", Locale: "en-US"},
		speech.Voice{ID: "v-es", Locale: "es-MX"},
	)
	renderer.AutoFinish = true
	assets, err := speech.LoadAssets()
	if err != nil {
		t.Fatalf("LoadAssets() error = %v", err)
	}
	speaker := speech.NewController(renderer, assets, speech.ControllerConfig{PivotLanguage: "en"})

	orch := NewOrchestrator(
		stt,
		transcribe.GrantedChecker{},
		translate.NewEntityTranslator(engine),
		assist,
		nil,
		catalog.NewStaticProvider(items),
		speaker,
		nil,
		Config{
			SessionID:     "s1",
			Profile:       lang.Profile{Locale: locale, RecognizerAvailable: true},
			PivotLanguage: "en",
		},
	)
	return &fixture{orch: orch, stt: stt, engine: engine, assist: assist, speaker: renderer}
}

func waitState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("State() = %v, want %v", o.State(), want)
}

// speakTurn drives a full capture: start, feed the transcript, stop.
func speakTurn(t *testing.T, f *fixture, transcript string) {
	t.Helper()
	ctx := context.Background()
	if err := f.orch.StartTurn(ctx); err != nil {
		t.Fatalf("StartTurn() error = %v", err)
	}
	stream := f.stt.LastStream()
	stream.Push(transcribe.Event{Type: transcribe.EventFinal, Text: transcript})
	stream.Close()
	if err := f.orch.StopTurn(ctx); err != nil {
		t.Fatalf("StopTurn() error = %v", err)
	}
}

func TestTurnHappyPathSameLanguage(t *testing.T) {
	f := newFixture(t, "en-US")
	events, unsub := f.orch.Subscribe()
	defer unsub()

	speakTurn(t, f, "how is the water in tank two")
	waitState(t, f.orch, StateIdle)

	turns := f.orch.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Text != "how is the water in tank two" {
		t.Fatalf("user turn = %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Text == "" {
		t.Fatalf("assistant turn = %+v", turns[1])
	}
	// Same language: pivot text equals display text and no engine call.
	if turns[0].PivotText != turns[0].Text {
		t.Fatalf("PivotText = %q, want same as Text", turns[0].PivotText)
	}
	if calls := f.engine.Calls(); len(calls) != 0 {
		t.Fatalf("translation engine called %d times, want 0", len(calls))
	}

	var states []State
	drainTimer := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case ev := <-events:
			if ev.Type == EventStateChanged {
				states = append(states, ev.State)
			}
		case <-drainTimer:
			break loop
		}
	}
	want := []State{StateListening, StateTranslating, StateThinking, StateSpeaking, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("state transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestTurnCrossLanguagePreservesEntities(t *testing.T) {
	f := newFixture(t, "es-MX", catalog.Item{ID: "p1", Name: "Aqua Boost Pro", Category: "conditioner"})
	f.assist.Reply = &assistant.Reply{
		Text:                "Aqua Boost Pro is in stock for 20 dollars.",
		ReferencedItemNames: []string{"Aqua Boost Pro"},
	}

	speakTurn(t, f, "tienes Aqua Boost Pro disponible")
	waitState(t, f.orch, StateIdle)

	turns := f.orch.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(turns))
	}
	if !strings.Contains(turns[0].PivotText, "Aqua Boost Pro") {
		t.Fatalf("user pivot = %q, want product name verbatim", turns[0].PivotText)
	}
	if !strings.Contains(turns[1].Text, "Aqua Boost Pro") {
		t.Fatalf("localized reply = %q, want product name verbatim", turns[1].Text)
	}
	if len(turns[1].Items) != 1 || turns[1].Items[0].ID != "p1" {
		t.Fatalf("resolved items = %+v, want product p1", turns[1].Items)
	}

	reqs := f.assist.Requests()
	if len(reqs) != 1 {
		t.Fatalf("assistant queries = %d, want 1", len(reqs))
	}
	if strings.Contains(reqs[0].Query, "QQX") {
		t.Fatalf("query = %q, placeholder leaked upstream", reqs[0].Query)
	}
}

func TestEmptyTranscriptReturnsToIdle(t *testing.T) {
	f := newFixture(t, "en-US")
	ctx := context.Background()

	if err := f.orch.StartTurn(ctx); err != nil {
		t.Fatalf("StartTurn() error = %v", err)
	}
	stream := f.stt.LastStream()
	stream.Push(transcribe.Event{Type: transcribe.EventFinal, Text: "  "})
	stream.Close()
	if err := f.orch.StopTurn(ctx); err != nil {
		t.Fatalf("StopTurn() error = %v", err)
	}

	waitState(t, f.orch, StateIdle)
	if turns := f.orch.Turns(); len(turns) != 0 {
		t.Fatalf("len(Turns) = %d, want 0", len(turns))
	}
}

type blockingClient struct {
	started chan struct{}
	release chan struct{}
	reply   assistant.Reply
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		reply:   assistant.Reply{Text: "done"},
	}
}

func (b *blockingClient) Query(ctx context.Context, _ assistant.Request) (assistant.Reply, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return assistant.Reply{}, ctx.Err()
	case <-b.release:
		return b.reply, nil
	}
}

func TestSingleFlightRejectsStartWhileThinking(t *testing.T) {
	f := newFixture(t, "en-US")
	blocking := newBlockingClient()
	f.orch.assist = blocking

	speakTurn(t, f, "first question")
	<-blocking.started
	waitState(t, f.orch, StateThinking)

	if err := f.orch.StartTurn(context.Background()); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("StartTurn() error = %v, want ErrTurnInProgress", err)
	}

	close(blocking.release)
	waitState(t, f.orch, StateIdle)
}

func TestCancelDuringThinkingKeepsUserTurn(t *testing.T) {
	f := newFixture(t, "en-US")
	blocking := newBlockingClient()
	f.orch.assist = blocking

	speakTurn(t, f, "slow question")
	<-blocking.started
	waitState(t, f.orch, StateThinking)

	f.orch.CancelTurn()
	waitState(t, f.orch, StateIdle)

	turns := f.orch.Turns()
	if len(turns) != 1 || turns[0].Role != RoleUser {
		t.Fatalf("Turns = %+v, want only the user turn", turns)
	}

	// The abandoned reply must not resurface.
	close(blocking.release)
	time.Sleep(50 * time.Millisecond)
	if got := len(f.orch.Turns()); got != 1 {
		t.Fatalf("len(Turns) after late reply = %d, want 1", got)
	}
	if got := f.orch.State(); got != StateIdle {
		t.Fatalf("State after late reply = %v, want idle", got)
	}
}

func TestBargeInDuringSpeaking(t *testing.T) {
	f := newFixture(t, "en-US")
	f.speaker.AutoFinish = false

	speakTurn(t, f, "tell me about feeding")
	waitState(t, f.orch, StateSpeaking)

	if err := f.orch.StartTurn(context.Background()); err != nil {
		t.Fatalf("barge-in StartTurn() error = %v", err)
	}
	waitState(t, f.orch, StateListening)

	// The interrupted reply stays in the log.
	if turns := f.orch.Turns(); len(turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(turns))
	}

	// The new capture still works end to end.
	f.speaker.AutoFinish = true
	stream := f.stt.LastStream()
	stream.Push(transcribe.Event{Type: transcribe.EventFinal, Text: "second question"})
	stream.Close()
	if err := f.orch.StopTurn(context.Background()); err != nil {
		t.Fatalf("StopTurn() error = %v", err)
	}
	waitState(t, f.orch, StateIdle)
	if turns := f.orch.Turns(); len(turns) != 4 {
		t.Fatalf("len(Turns) = %d, want 4", len(turns))
	}
}

func TestAssistantFailureEntersFailed(t *testing.T) {
	f := newFixture(t, "en-US")
	f.assist.Err = &assistant.QueryError{StatusCode: 503, Detail: "overloaded"}

	events, unsub := f.orch.Subscribe()
	defer unsub()

	speakTurn(t, f, "any advice")
	waitState(t, f.orch, StateFailed)

	// User turn survives the failure.
	turns := f.orch.Turns()
	if len(turns) != 1 || turns[0].Role != RoleUser {
		t.Fatalf("Turns = %+v, want only the user turn", turns)
	}

	var sawError bool
	timeout := time.After(time.Second)
	for !sawError {
		select {
		case ev := <-events:
			if ev.Type == EventErrored && ev.Code == "assistant_failed" {
				sawError = true
			}
		case <-timeout:
			t.Fatalf("no assistant_failed error event observed")
		}
	}

	if err := f.orch.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if got := f.orch.State(); got != StateIdle {
		t.Fatalf("State after Acknowledge = %v, want idle", got)
	}
}

func TestAcknowledgeOutsideFailed(t *testing.T) {
	f := newFixture(t, "en-US")
	if err := f.orch.Acknowledge(); !errors.Is(err, ErrNotFailed) {
		t.Fatalf("Acknowledge() error = %v, want ErrNotFailed", err)
	}
}

func TestOutboundTranslationFailureAborts(t *testing.T) {
	f := newFixture(t, "es-MX")
	f.engine.Fail = translate.ErrUnavailable

	speakTurn(t, f, "cuanto oxigeno tiene el tanque")
	waitState(t, f.orch, StateFailed)

	// Nothing entered the log: the assistant never saw the turn.
	if turns := f.orch.Turns(); len(turns) != 0 {
		t.Fatalf("Turns = %+v, want empty", turns)
	}
	if reqs := f.assist.Requests(); len(reqs) != 0 {
		t.Fatalf("assistant queries = %d, want 0", len(reqs))
	}
}

type directionalEngine struct {
	inner *translate.MockProvider
}

func (d *directionalEngine) Translate(ctx context.Context, text, src, dst string) (string, error) {
	// Inbound (pivot to user language) fails; outbound works.
	if src == "en" && dst != "en" {
		return "", translate.ErrUnavailable
	}
	return d.inner.Translate(ctx, text, src, dst)
}

func TestInboundTranslationFailureDegradesToPivot(t *testing.T) {
	f := newFixture(t, "es-MX")
	f.orch.translator = translate.NewEntityTranslator(&directionalEngine{inner: f.engine})
	f.assist.Reply = &assistant.Reply{Text: "Keep ammonia low."}

	speakTurn(t, f, "consejo para el amoniaco")
	waitState(t, f.orch, StateIdle)

	turns := f.orch.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(turns))
	}
	// Degraded: the pivot-language reply is shown and spoken as-is.
	if turns[1].Text != "Keep ammonia low." {
		t.Fatalf("assistant text = %q, want pivot reply verbatim", turns[1].Text)
	}
	utts := f.speaker.Utterances()
	if len(utts) != 1 {
		t.Fatalf("utterances = %d, want 1", len(utts))
	}
	if got := utts[0].Voice.ID; got != "v-en" {
		t.Fatalf("voice = %q, want pivot-language voice for degraded reply", got)
	}
}

func TestOffTopicQuerySkipsAssistant(t *testing.T) {
	f := newFixture(t, "en-US")

	speakTurn(t, f, "who won the football game")
	waitState(t, f.orch, StateIdle)

	if reqs := f.assist.Requests(); len(reqs) != 0 {
		t.Fatalf("assistant queries = %d, want 0 for off-topic input", len(reqs))
	}
	turns := f.orch.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(turns))
	}
	if turns[1].Text != policy.OffTopicReply {
		t.Fatalf("reply = %q, want canned refusal", turns[1].Text)
	}
}

func TestRecognizerUnavailableFailsFast(t *testing.T) {
	f := newFixture(t, "en-US")
	f.orch.cfg.Profile.RecognizerAvailable = false

	err := f.orch.StartTurn(context.Background())
	if !errors.Is(err, transcribe.ErrRecognizerUnavailable) {
		t.Fatalf("StartTurn() error = %v, want ErrRecognizerUnavailable", err)
	}
	if got := f.orch.State(); got != StateIdle {
		t.Fatalf("State = %v, want idle after refused start", got)
	}
}

type deniedChecker struct{}

func (deniedChecker) Check(context.Context) (transcribe.Permissions, error) {
	return transcribe.Permissions{RecordAudio: false, SpeechRecognition: true}, nil
}

func TestPermissionDeniedFailsFast(t *testing.T) {
	f := newFixture(t, "en-US")
	f.orch.permissions = deniedChecker{}

	err := f.orch.StartTurn(context.Background())
	if !errors.Is(err, transcribe.ErrPermissionDenied) {
		t.Fatalf("StartTurn() error = %v, want ErrPermissionDenied", err)
	}
	if got := f.orch.State(); got != StateIdle {
		t.Fatalf("State = %v, want idle after refused start", got)
	}
}

func TestStopTurnWithoutCapture(t *testing.T) {
	f := newFixture(t, "en-US")
	if err := f.orch.StopTurn(context.Background()); !errors.Is(err, ErrNotListening) {
		t.Fatalf("StopTurn() error = %v, want ErrNotListening", err)
	}
}

func TestPartialTranscriptEvents(t *testing.T) {
	f := newFixture(t, "en-US")
	events, unsub := f.orch.Subscribe()
	defer unsub()

	if err := f.orch.StartTurn(context.Background()); err != nil {
		t.Fatalf("StartTurn() error = %v", err)
	}
	stream := f.stt.LastStream()
	stream.Push(transcribe.Event{Type: transcribe.EventPartial, Text: "how is"})
	stream.Push(transcribe.Event{Type: transcribe.EventPartial, Text: "how is the tank"})

	var partials []string
	timeout := time.After(time.Second)
	for len(partials) < 2 {
		select {
		case ev := <-events:
			if ev.Type == EventPartialTranscript {
				partials = append(partials, ev.Partial)
			}
		case <-timeout:
			t.Fatalf("partials = %v, want 2 partial events", partials)
		}
	}
	if partials[1] != "how is the tank" {
		t.Fatalf("partials = %v", partials)
	}
	f.orch.CancelTurn()
}

func TestClearConversation(t *testing.T) {
	f := newFixture(t, "en-US")

	speakTurn(t, f, "first question")
	waitState(t, f.orch, StateIdle)
	if got := len(f.orch.Turns()); got != 2 {
		t.Fatalf("len(Turns) = %d, want 2", got)
	}

	f.orch.ClearConversation()
	if got := len(f.orch.Turns()); got != 0 {
		t.Fatalf("len(Turns) after clear = %d, want 0", got)
	}
	if got := f.orch.State(); got != StateIdle {
		t.Fatalf("State = %v, want idle", got)
	}
}

func TestCancelTurnIdempotent(t *testing.T) {
	f := newFixture(t, "en-US")
	f.orch.CancelTurn()
	f.orch.CancelTurn()
	if got := f.orch.State(); got != StateIdle {
		t.Fatalf("State = %v, want idle", got)
	}
}

func TestTimestampsStrictlyIncreasing(t *testing.T) {
	f := newFixture(t, "en-US")

	for i := 0; i < 3; i++ {
		speakTurn(t, f, "question about feed rations")
		waitState(t, f.orch, StateIdle)
	}

	turns := f.orch.Turns()
	if len(turns) != 6 {
		t.Fatalf("len(Turns) = %d, want 6", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if !turns[i].CreatedAt.After(turns[i-1].CreatedAt) {
			t.Fatalf("CreatedAt[%d] %v not after CreatedAt[%d] %v",
				i, turns[i].CreatedAt, i-1, turns[i-1].CreatedAt)
		}
	}
}

func TestContextWindowLimitsHistory(t *testing.T) {
	f := newFixture(t, "en-US")

	for i := 0; i < 5; i++ {
		speakTurn(t, f, "question about feed rations")
		waitState(t, f.orch, StateIdle)
	}

	reqs := f.assist.Requests()
	last := reqs[len(reqs)-1]
	if len(last.Context) != 6 {
		t.Fatalf("len(Context) = %d, want 6", len(last.Context))
	}
}
