// Command voxbridge is the main entry point for the voxbridge call server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/voxbridge/voxbridge/internal/callsession"
	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/convo"
	"github.com/voxbridge/voxbridge/internal/health"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/internal/server"
	"github.com/voxbridge/voxbridge/internal/telephony"
	"github.com/voxbridge/voxbridge/pkg/provider/llm"
	"github.com/voxbridge/voxbridge/pkg/provider/llm/anyllm"
	oallm "github.com/voxbridge/voxbridge/pkg/provider/llm/openai"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	"github.com/voxbridge/voxbridge/pkg/provider/stt/deepgram"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxbridge: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxbridge: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxbridge starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"public_host", cfg.Server.PublicHost,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxbridge",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	sttProvider, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}
	llmProvider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}
	ttsProvider, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build tts provider", "err", err)
		return 1
	}
	voice := tts.Voice{
		ID:              cfg.Providers.TTS.VoiceID,
		Stability:       cfg.Providers.TTS.Stability,
		SimilarityBoost: cfg.Providers.TTS.SimilarityBoost,
	}
	if err := tts.VerifyVoice(ctx, ttsProvider, voice.ID); err != nil {
		// Non-fatal: the catalogue may be unreachable at boot.
		slog.Warn("voice verification failed", "voice", voice.ID, "err", err)
	}

	// ── Media room gateway ────────────────────────────────────────────────────
	issuer, err := room.NewTokenIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	if err != nil {
		slog.Error("failed to create token issuer", "err", err)
		return 1
	}
	gateway, err := room.NewGateway(cfg.LiveKit.URL, issuer, room.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create room gateway", "err", err)
		return 1
	}
	rtcURL := websocketURL(cfg.LiveKit.URL) + "/rtc"
	dialSink := func(ctx context.Context, roomName string) (callsession.Sink, error) {
		token, err := issuer.Mint(roomName, "agent")
		if err != nil {
			return nil, err
		}
		return room.DialSink(ctx, rtcURL, token)
	}

	// ── Telephony ─────────────────────────────────────────────────────────────
	calls, err := telephony.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	if err != nil {
		slog.Error("failed to create telephony client", "err", err)
		return 1
	}

	// ── Conversation state, greeting, artifacts ───────────────────────────────
	systemPrompt := cfg.Conversation.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = callsession.DefaultSystemPrompt
	}
	store := convo.NewStore(systemPrompt, cfg.Conversation.MaxTurns)

	providerTimeout := time.Duration(cfg.Providers.TimeoutSeconds) * time.Second
	greeting := callsession.NewGreeting(cfg.Conversation.Greeting, ttsProvider, voice, providerTimeout, logger)
	if err := greeting.Warm(ctx); err != nil {
		// Non-fatal: the first call synthesizes it on demand.
		slog.Warn("greeting warm-up failed", "err", err)
	}

	var artifacts *callsession.ArtifactStore
	if cfg.Artifacts.Dir != "" {
		artifacts, err = callsession.NewArtifactStore(cfg.Artifacts.Dir)
		if err != nil {
			slog.Error("failed to create artifact store", "err", err)
			return 1
		}
	}

	// ── Session manager and HTTP server ───────────────────────────────────────
	manager := callsession.NewManager(callsession.Deps{
		Base: callsession.Config{
			STT:             sttProvider,
			LLM:             llmProvider,
			TTS:             ttsProvider,
			Voice:           voice,
			Rooms:           gateway,
			DialSink:        dialSink,
			Convo:           store,
			Temperature:     cfg.Providers.LLM.Temperature,
			MaxTokens:       cfg.Providers.LLM.MaxTokens,
			ProviderTimeout: providerTimeout,
			Greeting:        greeting,
			Artifacts:       artifacts,
			Metrics:         metrics,
		},
		Logger: logger,
	})

	checks := []health.Checker{
		health.Endpoint("livekit", cfg.LiveKit.URL),
	}
	srv, err := server.New(server.Config{
		PublicHost: cfg.Server.PublicHost,
		Manager:    manager,
		Calls:      calls,
		Rooms:      gateway,
		Health:     health.New(checks...),
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// Stop accepting traffic, then unwind live calls in order.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		manager.Shutdown()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildSTT(cfg config.STTConfig) (stt.Provider, error) {
	switch cfg.Name {
	case "deepgram":
		var opts []deepgram.Option
		if cfg.Model != "" {
			opts = append(opts, deepgram.WithModel(cfg.Model))
		}
		if cfg.Language != "" {
			opts = append(opts, deepgram.WithLanguage(cfg.Language))
		}
		return deepgram.New(cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Name)
	}
}

func buildLLM(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Name {
	case "groq":
		var opts []anyllmlib.Option
		if cfg.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		return anyllm.NewGroq(cfg.Model, opts...)
	case "openai":
		var opts []oallm.Option
		if cfg.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(cfg.BaseURL))
		}
		return oallm.New(cfg.APIKey, cfg.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Name)
	}
}

func buildTTS(cfg config.TTSConfig) (tts.Provider, error) {
	switch cfg.Name {
	case "elevenlabs":
		var opts []elevenlabs.Option
		if cfg.Model != "" {
			opts = append(opts, elevenlabs.WithModel(cfg.Model))
		}
		return elevenlabs.New(cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.Name)
	}
}

// websocketURL converts an http(s) base URL to its ws(s) equivalent.
func websocketURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voxbridge — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Public host     : %-19s║\n", truncate(cfg.Server.PublicHost))
	fmt.Printf("║  Media rooms     : %-19s║\n", truncate(cfg.LiveKit.URL))
	if cfg.Artifacts.Dir != "" {
		fmt.Printf("║  Artifacts       : %-19s║\n", truncate(cfg.Artifacts.Dir))
	} else {
		fmt.Printf("║  Artifacts       : %-19s║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s║\n", kind, truncate(value))
}

func truncate(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
