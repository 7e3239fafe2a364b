package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquasense/aquavoice/internal/assistant"
	"github.com/aquasense/aquavoice/internal/catalog"
	"github.com/aquasense/aquavoice/internal/config"
	"github.com/aquasense/aquavoice/internal/conversation"
	"github.com/aquasense/aquavoice/internal/httpapi"
	"github.com/aquasense/aquavoice/internal/lang"
	"github.com/aquasense/aquavoice/internal/observability"
	"github.com/aquasense/aquavoice/internal/session"
	"github.com/aquasense/aquavoice/internal/speech"
	"github.com/aquasense/aquavoice/internal/transcribe"
	"github.com/aquasense/aquavoice/internal/translate"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	items, closeCatalog, err := buildCatalog(ctx, cfg)
	if err != nil {
		slog.Error("catalog init failed", "error", err)
		os.Exit(1)
	}
	defer closeCatalog()

	engine, err := translate.NewProvider(cfg.TranslateMode, cfg.TranslateHTTPURL)
	if err != nil {
		slog.Error("translation provider init failed", "error", err)
		os.Exit(1)
	}
	translator := translate.NewEntityTranslator(engine)

	assist, err := assistant.NewClient(assistant.Config{
		Mode:    cfg.AssistantMode,
		HTTPURL: cfg.AssistantHTTPURL,
		APIKey:  cfg.AssistantAPIKey,
		Timeout: cfg.AssistantTimeout,
	})
	if err != nil {
		slog.Error("assistant client init failed", "error", err)
		os.Exit(1)
	}

	speechAssets, err := speech.LoadAssets()
	if err != nil {
		slog.Error("speech assets invalid", "error", err)
		os.Exit(1)
	}

	factory := func(sessionID, locale, voiceHint string) *conversation.Orchestrator {
		profile := lang.Profile{Locale: locale, RecognizerAvailable: true, VoiceHint: voiceHint}
		renderer := speech.NewMockRenderer(defaultVoices()...)
		renderer.AutoFinish = true
		speaker := speech.NewController(renderer, speechAssets, speech.ControllerConfig{
			PivotLanguage: cfg.PivotLanguage,
			Rate:          cfg.SpeechRate,
			VoiceHint:     profile.VoiceHint,
		})
		return conversation.NewOrchestrator(
			transcribe.NewMockProvider(),
			transcribe.GrantedChecker{},
			translator,
			assist,
			nil,
			items,
			speaker,
			metrics,
			conversation.Config{
				SessionID:     sessionID,
				Profile:       profile,
				PivotLanguage: cfg.PivotLanguage,
				SpeechMode:    speech.Mode(cfg.SpeechMode),
			},
		)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout, factory)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.ConversationEvents.WithLabelValues("session_expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	api := httpapi.NewServer(cfg, sessions, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		slog.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	slog.Info("shutdown complete")
}

// buildCatalog prefers Postgres when a database URL is configured and falls
// back to a seeded in-memory catalog otherwise.
func buildCatalog(ctx context.Context, cfg config.Config) (catalog.Provider, func(), error) {
	if cfg.DatabaseURL != "" {
		p, err := catalog.NewPostgresProvider(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("catalog provider ready", "backend", "postgres")
		return p, func() { _ = p.Close() }, nil
	}
	slog.Info("catalog provider ready", "backend", "static")
	return catalog.NewStaticProvider(seedItems()), func() {}, nil
}

func seedItems() []catalog.Item {
	return []catalog.Item{
		{ID: "prod-001", Name: "Aqua Boost Pro", Category: "water_treatment", Description: "Ammonia binder and beneficial bacteria starter for freshwater tanks.", Price: 24.99, Unit: "bottle", Manufacturer: "AquaSense Labs"},
		{ID: "prod-002", Name: "OxyGen Plus", Category: "aeration", Description: "Emergency dissolved oxygen booster tablets.", Price: 12.50, Unit: "pack", Manufacturer: "AquaSense Labs"},
		{ID: "prod-003", Name: "pH Stabilizer 7.0", Category: "water_treatment", Description: "Buffered pH stabilizer targeting neutral water.", Price: 9.75, Unit: "bottle", Manufacturer: "ClearWater Co"},
		{ID: "prod-004", Name: "TilapiaGrow Feed", Category: "feed", Description: "High-protein pelleted feed for juvenile tilapia.", Price: 38.00, Unit: "bag", Manufacturer: "NutriFish"},
	}
}

func defaultVoices() []speech.Voice {
	return []speech.Voice{
		{ID: "com.apple.voice.compact.en-US.Samantha", Name: "Samantha", Locale: "en-US", Quality: "compact"},
		{ID: "com.apple.voice.compact.es-MX.Paulina", Name: "Paulina", Locale: "es-MX", Quality: "compact"},
		{ID: "pt-BR-Standard-A", Name: "Luciana", Locale: "pt-BR", Quality: "standard"},
		{ID: "hi-IN-Standard-B", Name: "Isha", Locale: "hi-IN", Quality: "standard"},
	}
}
