// Package transport handles the telephone leg of a session: a Twilio Media
// Streams websocket delivering base64 μ-law audio as JSON frames.
//
// Protocol reference: Twilio sends "connected", "start", "media", "mark" and
// "stop" events as text messages. Audio arrives in "media" frames as
// base64-encoded payloads, 8 kHz mono μ-law unless the start frame's
// mediaFormat says otherwise.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ErrStreamEnded is returned by Receive when the remote peer sent a "stop"
// frame or closed the websocket. It marks a normal end of the call, not a
// failure.
var ErrStreamEnded = errors.New("transport: media stream ended")

// MediaFormat describes the audio encoding negotiated in the start frame.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// StreamInfo is the call metadata from the start frame.
type StreamInfo struct {
	StreamSID   string      `json:"streamSid"`
	AccountSID  string      `json:"accountSid"`
	CallSID     string      `json:"callSid"`
	MediaFormat MediaFormat `json:"mediaFormat"`
}

// Chunk is one decoded media payload from the telephone leg.
type Chunk struct {
	// Audio is the raw decoded payload, typically 8 kHz mono μ-law.
	Audio []byte

	// Timestamp is Twilio's presentation timestamp in milliseconds since
	// stream start, as sent on the wire.
	Timestamp string
}

// inboundFrame is the envelope of every JSON message Twilio sends.
type inboundFrame struct {
	Event          string      `json:"event"`
	SequenceNumber string      `json:"sequenceNumber"`
	StreamSID      string      `json:"streamSid"`
	Start          *StreamInfo `json:"start"`
	Media          *struct {
		Track     string `json:"track"`
		Chunk     string `json:"chunk"`
		Timestamp string `json:"timestamp"`
		Payload   string `json:"payload"`
	} `json:"media"`
}

// Conn reads media frames from an accepted Twilio Media Streams websocket.
//
// Receive must be called from a single goroutine; Close may be called from
// any goroutine and is idempotent.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	info   *StreamInfo
	closed bool
}

// NewConn wraps an already-accepted websocket connection.
func NewConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{ws: ws, logger: logger}
}

// Info returns the stream metadata from the start frame, or nil if no start
// frame has been received yet.
func (c *Conn) Info() *StreamInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Receive blocks until the next media chunk arrives. Control frames
// (connected, start, mark) are consumed internally. Returns ErrStreamEnded on
// a stop frame or when the peer closes the connection.
func (c *Conn) Receive(ctx context.Context) (Chunk, error) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				return Chunk{}, ErrStreamEnded
			}
			return Chunk{}, fmt.Errorf("transport: read frame: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("discarding malformed media frame", "error", err)
			continue
		}

		switch frame.Event {
		case "start":
			if frame.Start != nil {
				c.mu.Lock()
				c.info = frame.Start
				c.mu.Unlock()
				c.logger.Info("media stream started",
					"stream_sid", frame.Start.StreamSID,
					"call_sid", frame.Start.CallSID,
					"encoding", frame.Start.MediaFormat.Encoding)
			}
		case "media":
			if frame.Media == nil {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(frame.Media.Payload)
			if err != nil {
				c.logger.Warn("discarding undecodable media payload", "error", err)
				continue
			}
			return Chunk{Audio: audio, Timestamp: frame.Media.Timestamp}, nil
		case "stop":
			c.logger.Info("media stream stopped", "stream_sid", frame.StreamSID)
			return Chunk{}, ErrStreamEnded
		default:
			// connected, mark, dtmf: nothing to do.
		}
	}
}

// Close shuts the websocket down with a normal closure. Safe to call more
// than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close(websocket.StatusNormalClosure, "call ended")
}
