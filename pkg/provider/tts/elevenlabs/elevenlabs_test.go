package elevenlabs_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	"github.com/voxbridge/voxbridge/pkg/provider/tts/elevenlabs"
)

func TestSynthesize(t *testing.T) {
	wantAudio := []byte{0x01, 0x02, 0x03, 0x04}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if got := r.URL.Path; got != "/v1/text-to-speech/voice-123" {
			t.Errorf("path = %q, want /v1/text-to-speech/voice-123", got)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_16000" {
			t.Errorf("output_format = %q, want pcm_16000", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %q, want test-key", got)
		}

		var body struct {
			Text          string `json:"text"`
			ModelID       string `json:"model_id"`
			VoiceSettings *struct {
				Stability       float64 `json:"stability"`
				SimilarityBoost float64 `json:"similarity_boost"`
			} `json:"voice_settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body.Text != "hello there" {
			t.Errorf("text = %q, want %q", body.Text, "hello there")
		}
		if body.VoiceSettings == nil {
			t.Fatal("voice_settings missing")
		}
		if body.VoiceSettings.Stability != 0.5 {
			t.Errorf("stability = %v, want 0.5", body.VoiceSettings.Stability)
		}

		w.Write(wantAudio)
	}))
	defer srv.Close()

	p, err := elevenlabs.New("test-key", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	voice := tts.Voice{ID: "voice-123", Stability: 0.5, SimilarityBoost: 0.75}
	audio, err := p.Synthesize(context.Background(), "hello there", voice)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != string(wantAudio) {
		t.Errorf("audio = %v, want %v", audio, wantAudio)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"invalid api key"}`)
	}))
	defer srv.Close()

	p, err := elevenlabs.New("bad-key", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Synthesize(context.Background(), "hi", tts.Voice{ID: "v"})
	if err == nil {
		t.Fatal("expected error on 401, got nil")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q does not mention status 401", err)
	}

	if _, err := p.Synthesize(context.Background(), "", tts.Voice{ID: "v"}); err == nil {
		t.Error("expected error for empty text")
	}
	if _, err := p.Synthesize(context.Background(), "hi", tts.Voice{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := elevenlabs.New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/v1/voices" {
			t.Errorf("path = %q, want /v1/voices", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %q, want test-key", got)
		}
		io.WriteString(w, `{"voices":[{"voice_id":"a1","name":"Alice"},{"voice_id":"b2","name":"Bob"}]}`)
	}))
	defer srv.Close()

	p, err := elevenlabs.New("test-key", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("len(voices) = %d, want 2", len(voices))
	}
	if voices[0].ID != "a1" || voices[0].Name != "Alice" {
		t.Errorf("voices[0] = %+v, want {a1 Alice}", voices[0])
	}
}
