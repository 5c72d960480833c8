package transport_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxbridge/voxbridge/internal/transport"
)

// pipe establishes a server-side transport.Conn and a client websocket so
// tests can script the Twilio side of the stream.
func pipe(t *testing.T) (*transport.Conn, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *transport.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		connCh <- transport.NewConn(ws, nil)
		// Keep the handler alive until the test finishes reading.
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	client, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close(websocket.StatusNormalClosure, "") })

	return <-connCh, client
}

func send(t *testing.T, client *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("client write: %v", err)
	}
}

func TestReceiveMediaChunk(t *testing.T) {
	conn, client := pipe(t)
	defer conn.Close()

	payload := base64.StdEncoding.EncodeToString([]byte{0xff, 0x7f, 0x00})
	send(t, client, `{"event":"connected","protocol":"Call","version":"1.0.0"}`)
	send(t, client, `{"event":"start","streamSid":"MZ123","start":{"streamSid":"MZ123","callSid":"CA456","mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1}}}`)
	send(t, client, `{"event":"media","streamSid":"MZ123","media":{"track":"inbound","timestamp":"120","payload":"`+payload+`"}}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chunk, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if want := []byte{0xff, 0x7f, 0x00}; string(chunk.Audio) != string(want) {
		t.Errorf("chunk.Audio = %v, want %v", chunk.Audio, want)
	}
	if chunk.Timestamp != "120" {
		t.Errorf("chunk.Timestamp = %q, want 120", chunk.Timestamp)
	}

	info := conn.Info()
	if info == nil {
		t.Fatal("Info() = nil after start frame")
	}
	if info.CallSID != "CA456" {
		t.Errorf("CallSID = %q, want CA456", info.CallSID)
	}
	if info.MediaFormat.Encoding != "audio/x-mulaw" || info.MediaFormat.SampleRate != 8000 {
		t.Errorf("MediaFormat = %+v", info.MediaFormat)
	}
}

func TestReceiveSkipsMalformedFrames(t *testing.T) {
	conn, client := pipe(t)
	defer conn.Close()

	payload := base64.StdEncoding.EncodeToString([]byte{0x01})
	send(t, client, `not json at all`)
	send(t, client, `{"event":"media","media":{"payload":"%%%invalid-base64%%%"}}`)
	send(t, client, `{"event":"mark","mark":{"name":"greeting"}}`)
	send(t, client, `{"event":"media","media":{"payload":"`+payload+`"}}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chunk, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(chunk.Audio) != 1 || chunk.Audio[0] != 0x01 {
		t.Errorf("chunk.Audio = %v, want [1]", chunk.Audio)
	}
}

func TestReceiveStopEndsStream(t *testing.T) {
	conn, client := pipe(t)
	defer conn.Close()

	send(t, client, `{"event":"stop","streamSid":"MZ123"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := conn.Receive(ctx)
	if !errors.Is(err, transport.ErrStreamEnded) {
		t.Fatalf("Receive error = %v, want ErrStreamEnded", err)
	}
}

func TestReceivePeerCloseEndsStream(t *testing.T) {
	conn, client := pipe(t)
	defer conn.Close()

	client.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := conn.Receive(ctx)
	if !errors.Is(err, transport.ErrStreamEnded) {
		t.Fatalf("Receive error = %v, want ErrStreamEnded", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	conn, client := pipe(t)
	// The client must read so it can respond to the close handshake.
	client.CloseRead(context.Background())

	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
