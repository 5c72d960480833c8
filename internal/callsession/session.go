// Package callsession runs the per-call pipeline: audio arrives from the
// telephone leg, is mirrored into the media room, and feeds the
// transcribe-generate-synthesize turn loop whose responses are published
// into the same room.
//
// One Session owns one call. Lifecycle:
//
//	Connecting -> RoomReady -> Streaming -> Closing -> Closed
//
// Setup failures abort the session; failures of a single turn are logged and
// the loop continues. Teardown releases resources in reverse order of
// acquisition and runs exactly once no matter how the session ends.
package callsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/voxbridge/voxbridge/internal/convo"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/internal/transport"
	"github.com/voxbridge/voxbridge/pkg/audio"
	"github.com/voxbridge/voxbridge/pkg/provider/llm"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// State is the lifecycle phase of a Session.
type State int32

const (
	StateConnecting State = iota
	StateRoomReady
	StateStreaming
	StateClosing
	StateClosed
)

// DefaultProviderTimeout bounds one provider call. A stalled provider costs
// the turn, not the session.
const DefaultProviderTimeout = 10 * time.Second

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRoomReady:
		return "room_ready"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// RoomService is the subset of the room gateway the session needs.
type RoomService interface {
	CreateRoom(ctx context.Context, name string) (*room.RoomInfo, error)
	DeleteRoom(ctx context.Context, name string) error
}

// Sink receives the session's outbound audio. Implemented by [room.Sink].
type Sink interface {
	WritePCM(ctx context.Context, pcm []byte) error
	Flush(ctx context.Context) error
	Close() error
}

// SinkDialer connects a Sink to the named room. Separated out so tests can
// inject an in-memory sink.
type SinkDialer func(ctx context.Context, roomName string) (Sink, error)

// Stream is the telephone leg of the call. Implemented by [transport.Conn].
type Stream interface {
	Receive(ctx context.Context) (transport.Chunk, error)
	Info() *transport.StreamInfo
	Close() error
}

// Config wires a Session's collaborators. All provider fields are required;
// Greeting, Artifacts, Metrics, and Logger are optional.
type Config struct {
	CallID string

	STT   stt.Provider
	LLM   llm.Provider
	TTS   tts.Provider
	Voice tts.Voice

	Rooms    RoomService
	DialSink SinkDialer
	Convo    *convo.Store

	// Temperature and MaxTokens are passed through to every completion
	// request.
	Temperature float64
	MaxTokens   int

	// ProviderTimeout bounds each individual STT, LLM, and TTS call.
	// Zero means [DefaultProviderTimeout].
	ProviderTimeout time.Duration

	Greeting  *Greeting
	Artifacts *ArtifactStore
	Metrics   *observe.Metrics
	Logger    *slog.Logger
}

// Session bridges one telephone call into one media room.
type Session struct {
	cfg    Config
	logger *slog.Logger

	state atomic.Int32

	roomName string
	sink     Sink
	stream   Stream
	recorder *Recorder

	teardown sync.Once
}

// New creates a Session for the given call. Returns an error if a required
// collaborator is missing.
func New(cfg Config) (*Session, error) {
	if cfg.CallID == "" {
		return nil, errors.New("callsession: call ID must not be empty")
	}
	if cfg.STT == nil || cfg.LLM == nil || cfg.TTS == nil {
		return nil, errors.New("callsession: STT, LLM, and TTS providers are required")
	}
	if cfg.Rooms == nil || cfg.DialSink == nil {
		return nil, errors.New("callsession: room service and sink dialer are required")
	}
	if cfg.Convo == nil {
		return nil, errors.New("callsession: conversation store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}

	s := &Session{
		cfg:      cfg,
		logger:   cfg.Logger.With("call_id", cfg.CallID),
		roomName: "call-" + cfg.CallID,
		recorder: NewRecorder(cfg.CallID),
	}
	s.state.Store(int32(StateConnecting))
	return s, nil
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// RoomName returns the media room this session publishes into.
func (s *Session) RoomName() string {
	return s.roomName
}

// Run drives the session until the stream ends, ctx is cancelled, or setup
// fails. It always tears down before returning. A normal hangup returns nil.
func (s *Session) Run(ctx context.Context, stream Stream) error {
	s.stream = stream
	defer s.close(context.WithoutCancel(ctx))

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveCalls.Add(ctx, 1)
		defer s.cfg.Metrics.ActiveCalls.Add(context.WithoutCancel(ctx), -1)
	}

	if err := s.setup(ctx); err != nil {
		return err
	}

	s.state.Store(int32(StateStreaming))
	s.logger.Info("session streaming", "room", s.roomName)

	for {
		chunk, err := stream.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrStreamEnded) || ctx.Err() != nil {
				s.logger.Info("telephone leg ended")
				return nil
			}
			return fmt.Errorf("callsession: receive: %w", err)
		}
		if len(chunk.Audio) == 0 {
			continue
		}

		s.recorder.AddIncoming(chunk.Audio)
		s.mirror(ctx, chunk.Audio)
		s.turn(ctx, chunk.Audio)
	}
}

// setup creates the room, connects the sink, and plays the greeting.
func (s *Session) setup(ctx context.Context) error {
	info, err := s.cfg.Rooms.CreateRoom(ctx, s.roomName)
	if err != nil {
		return fmt.Errorf("callsession: create room: %w", err)
	}
	s.logger.Info("room ready", "room", s.roomName, "sid", info.SID)

	sink, err := s.cfg.DialSink(ctx, s.roomName)
	if err != nil {
		return fmt.Errorf("callsession: connect sink: %w", err)
	}
	s.sink = sink
	s.state.Store(int32(StateRoomReady))

	// The greeting is best effort: a call without it is degraded, not dead.
	if s.cfg.Greeting != nil {
		if err := s.cfg.Greeting.Play(ctx, s.cfg.CallID, sink); err != nil {
			s.logger.Warn("greeting failed", "error", err)
		}
	}
	return nil
}

// mirror publishes the caller's raw telephone audio into the room so room
// participants hear the caller live.
func (s *Session) mirror(ctx context.Context, mulaw []byte) {
	frame := audio.Normalize(mulaw, audio.HintMulaw, 0, room.SinkSampleRate)
	if frame.Empty() {
		return
	}
	if err := s.sink.WritePCM(ctx, frame.Data); err != nil {
		s.logger.Warn("mirror write failed", "error", err)
	}
}

// turn runs one transcribe-generate-synthesize cycle for a received chunk.
// Every failure inside the turn is contained: logged, counted, and the
// session keeps streaming.
func (s *Session) turn(ctx context.Context, mulaw []byte) {
	start := time.Now()

	text, ok := s.transcribe(ctx, mulaw)
	if !ok {
		return
	}
	s.recorder.AddTranscription(text)

	reply, ok := s.respond(ctx, text)
	if !ok {
		s.recordTurn(ctx, "llm_error", start)
		return
	}

	pcm, ok := s.synthesize(ctx, reply)
	if !ok {
		// The assistant turn is already in the history; the caller just
		// never hears it.
		s.recordTurn(ctx, "tts_error", start)
		return
	}
	s.recorder.AddResponse(reply, pcm)

	frame := audio.Normalize(pcm, audio.HintPCM, tts.DefaultSampleRate, room.SinkSampleRate)
	if frame.Empty() {
		s.recordTurn(ctx, "tts_error", start)
		return
	}
	if err := s.sink.WritePCM(ctx, frame.Data); err != nil {
		s.logger.Warn("response write failed", "error", err)
	}
	s.recordTurn(ctx, "ok", start)
}

// transcribe returns the caller's words, or ok=false when the chunk carried
// no recognisable speech or transcription failed.
func (s *Session) transcribe(ctx context.Context, mulaw []byte) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.cfg.STT.Transcribe(ctx, mulaw, stt.MimeMulaw)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Warn("transcription failed", "error", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordProviderError(ctx, "deepgram", "stt")
		}
		return "", false
	}
	if !result.OK() {
		return "", false
	}
	s.logger.Debug("transcribed", "text", result.Text, "confidence", result.Confidence)
	return result.Text, true
}

// synthesize renders the reply to PCM, or ok=false on failure or empty audio.
func (s *Session) synthesize(ctx context.Context, reply string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	pcm, err := s.cfg.TTS.Synthesize(ctx, reply, s.cfg.Voice)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Warn("synthesis failed", "error", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordProviderError(ctx, "elevenlabs", "tts")
		}
		return nil, false
	}
	if len(pcm) == 0 {
		return nil, false
	}
	return pcm, true
}

func (s *Session) recordTurn(ctx context.Context, status string, start time.Time) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.RecordTurn(ctx, status)
	s.cfg.Metrics.TurnDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("status", status)))
}

// close tears the session down exactly once, in reverse order of
// acquisition: artifact first (while state is still in memory), then sink,
// room, telephone leg, and finally the conversation history. Each step is
// guarded so one failure never blocks the rest.
func (s *Session) close(ctx context.Context) {
	s.teardown.Do(func() {
		s.state.Store(int32(StateClosing))
		s.logger.Info("session closing")

		if s.cfg.Artifacts != nil {
			if err := s.cfg.Artifacts.Write(s.recorder); err != nil {
				s.logger.Warn("transcript artifact failed", "error", err)
			}
		}

		if s.sink != nil {
			if err := s.sink.Flush(ctx); err != nil {
				s.logger.Warn("sink flush failed", "error", err)
			}
			if err := s.sink.Close(); err != nil {
				s.logger.Warn("sink close failed", "error", err)
			}
		}

		if err := s.cfg.Rooms.DeleteRoom(ctx, s.roomName); err != nil {
			s.logger.Warn("room delete failed", "error", err)
		}

		if s.stream != nil {
			if err := s.stream.Close(); err != nil {
				s.logger.Warn("stream close failed", "error", err)
			}
		}

		s.cfg.Convo.Clear(s.cfg.CallID)
		if s.cfg.Greeting != nil {
			s.cfg.Greeting.Forget(s.cfg.CallID)
		}

		s.state.Store(int32(StateClosed))
		s.logger.Info("session closed")
	})
}
