// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider renders one complete text string into one audio buffer. The
// pipeline is turn-based, so no streaming synthesis surface is exposed.
// Retry policy, if any, belongs to the caller; providers fail exactly once
// per request.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"fmt"
)

// DefaultSampleRate is the PCM rate providers synthesize at unless
// configured otherwise (16 kHz mono 16-bit little-endian).
const DefaultSampleRate = 16000

// Voice describes an immutable per-session synthesis configuration. It is
// passed into every Synthesize call rather than mutated on a shared client,
// so concurrent calls cannot observe each other's voice settings.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name, when known.
	Name string

	// Stability and SimilarityBoost tune synthesis (provider-specific
	// ranges; zero values select provider defaults).
	Stability       float64
	SimilarityBoost float64
}

// Provider is the abstraction over any turn-based TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice and returns the audio.
	// The output encoding and sample rate are fixed at provider
	// construction. A failure returns a nil buffer and a non-nil error.
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)

	// ListVoices returns the voice catalogue available to this provider.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// VerifyVoice checks that voiceID exists in the provider's catalogue. It is
// meant as a startup sanity check; a mistyped voice ID otherwise surfaces as
// a synthesis failure on the first call.
func VerifyVoice(ctx context.Context, p Provider, voiceID string) error {
	voices, err := p.ListVoices(ctx)
	if err != nil {
		return fmt.Errorf("tts: list voices: %w", err)
	}
	for _, v := range voices {
		if v.ID == voiceID {
			return nil
		}
	}
	return fmt.Errorf("tts: voice %q not in provider catalogue (%d voices)", voiceID, len(voices))
}
