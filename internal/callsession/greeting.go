package callsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/pkg/audio"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// DefaultGreetingText is spoken at the start of every call.
const DefaultGreetingText = "Hello! I am your AI assistant. How can I help you today?"

// Greeting synthesizes the opening line once per process and replays the
// cached audio into each new call's room. When warming failed or was
// skipped, the first Play synthesizes on demand; a failed attempt is retried
// by the next call rather than poisoning the cache.
type Greeting struct {
	text     string
	provider tts.Provider
	voice    tts.Voice
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cached []byte // 48 kHz mono PCM, ready for the sink
	played map[string]struct{}
}

// NewGreeting builds a Greeting that speaks text with the given voice. An
// empty text falls back to [DefaultGreetingText]; a zero timeout falls back
// to [DefaultProviderTimeout].
func NewGreeting(text string, provider tts.Provider, voice tts.Voice, timeout time.Duration, logger *slog.Logger) *Greeting {
	if text == "" {
		text = DefaultGreetingText
	}
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Greeting{
		text:     text,
		provider: provider,
		voice:    voice,
		timeout:  timeout,
		logger:   logger,
		played:   make(map[string]struct{}),
	}
}

// Warm synthesizes and caches the greeting audio ahead of the first call.
// Best called from startup; a failure here only delays synthesis to Play.
func (g *Greeting) Warm(ctx context.Context) error {
	_, err := g.audio(ctx)
	return err
}

// Play publishes the greeting into sink. Each call hears the greeting at
// most once; replays for a known call ID are a no-op.
func (g *Greeting) Play(ctx context.Context, callID string, sink Sink) error {
	g.mu.Lock()
	if _, done := g.played[callID]; done {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	pcm, err := g.audio(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if _, done := g.played[callID]; done {
		g.mu.Unlock()
		return nil
	}
	g.played[callID] = struct{}{}
	g.mu.Unlock()

	if err := sink.WritePCM(ctx, pcm); err != nil {
		return fmt.Errorf("callsession: play greeting: %w", err)
	}
	g.logger.Debug("greeting played", "call_id", callID)
	return nil
}

// Forget drops the per-call replay guard, freeing the entry when a call
// ends.
func (g *Greeting) Forget(callID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.played, callID)
}

// audio returns the cached greeting PCM, synthesizing it on first use. The
// synthesis call runs without holding g.mu and under the configured timeout,
// so one stalled provider call can neither stall a call's setup indefinitely
// nor block other calls' greetings. Concurrent cold starts may synthesize
// more than once; the first result wins the cache.
func (g *Greeting) audio(ctx context.Context) ([]byte, error) {
	g.mu.Lock()
	cached := g.cached
	g.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	sctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	raw, err := g.provider.Synthesize(sctx, g.text, g.voice)
	if err != nil {
		return nil, fmt.Errorf("callsession: synthesize greeting: %w", err)
	}
	frame := audio.Normalize(raw, audio.HintPCM, tts.DefaultSampleRate, room.SinkSampleRate)
	if frame.Empty() {
		return nil, errors.New("callsession: greeting synthesis produced no audio")
	}

	g.mu.Lock()
	if g.cached == nil {
		g.cached = frame.Data
		g.logger.Info("greeting cached", "bytes", len(g.cached))
	}
	cached = g.cached
	g.mu.Unlock()
	return cached, nil
}
