package room

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"layeh.com/gopus"
)

// The room media plane runs 48 kHz mono Opus at 20 ms frame size.
const (
	// SinkSampleRate is the PCM rate the sink expects from callers.
	SinkSampleRate = 48000
	// SinkChannels is the channel count the sink expects.
	SinkChannels = 1

	frameDurationMs = 20
	// samplesPerFrame is the number of samples in one 20 ms mono frame.
	samplesPerFrame = SinkSampleRate * frameDurationMs / 1000 // 960
	// maxPacketBytes bounds one encoded Opus packet.
	maxPacketBytes = 4000
)

// Sink publishes the agent's audio into a media room over a websocket
// connection. PCM handed to WritePCM is chunked into 20 ms frames, Opus
// encoded, and written in order.
//
// Writes are serialised internally so the greeting, turn responses, and any
// on-demand audio never interleave mid-frame. Sequential whole-utterance
// writes are the contract; there is no mixer.
type Sink struct {
	mu      sync.Mutex
	ws      *websocket.Conn
	enc     *gopus.Encoder
	pending []int16
	closed  bool
}

// DialSink connects to the room media endpoint at wsURL (e.g.
// "wss://livekit.example.com/rtc") authenticating with the given access
// token.
func DialSink(ctx context.Context, wsURL, token string) (*Sink, error) {
	enc, err := gopus.NewEncoder(SinkSampleRate, SinkChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("room: create opus encoder: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	ws, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("room: dial media endpoint: %w", err)
	}

	return &Sink{ws: ws, enc: enc}, nil
}

// WritePCM publishes 48 kHz mono 16-bit little-endian PCM. Trailing samples
// that do not fill a whole frame are buffered for the next write.
func (s *Sink) WritePCM(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("room: sink is closed")
	}

	s.pending = append(s.pending, bytesToSamples(pcm)...)
	for len(s.pending) >= samplesPerFrame {
		frame := s.pending[:samplesPerFrame]
		s.pending = s.pending[samplesPerFrame:]
		if err := s.writeFrame(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

// Flush pads any buffered partial frame with silence and publishes it.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.pending) == 0 {
		return nil
	}

	frame := make([]int16, samplesPerFrame)
	copy(frame, s.pending)
	s.pending = nil
	return s.writeFrame(ctx, frame)
}

// Close shuts the websocket down. Close is idempotent; buffered partial
// frames are discarded (call Flush first to publish them).
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	return s.ws.Close(websocket.StatusNormalClosure, "session ended")
}

// writeFrame encodes and sends one 20 ms frame. Caller holds s.mu.
func (s *Sink) writeFrame(ctx context.Context, frame []int16) error {
	packet, err := s.enc.Encode(frame, samplesPerFrame, maxPacketBytes)
	if err != nil {
		return fmt.Errorf("room: opus encode: %w", err)
	}
	if err := s.ws.Write(ctx, websocket.MessageBinary, packet); err != nil {
		return fmt.Errorf("room: write frame: %w", err)
	}
	return nil
}

// bytesToSamples converts little-endian bytes to int16 PCM samples. An odd
// trailing byte is dropped.
func bytesToSamples(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
