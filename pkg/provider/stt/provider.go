// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., Deepgram) behind a
// single call-and-result operation: one audio buffer in, one transcript out.
// The pipeline is strictly turn-based, so no streaming or partial-result
// surface is exposed.
//
// Silence and unintelligible audio are not errors. They produce a Result whose
// OK method reports false, and the caller decides what an empty turn means.
// Provider-level failures (timeout, auth, quota) surface as ordinary errors.
//
// Implementations must be safe for concurrent use; multiple calls may be
// transcribing simultaneously.
package stt

import "context"

// MimeType identifies the on-the-wire encoding of an audio buffer handed to
// Transcribe. It is a hint for the provider's decoder, not a guarantee.
type MimeType string

const (
	MimeWAV   MimeType = "audio/wav"
	MimeMP3   MimeType = "audio/mpeg"
	MimePCM   MimeType = "audio/l16"
	MimeMulaw MimeType = "audio/mulaw"
)

// Result is the outcome of a transcription call.
type Result struct {
	// Text is the transcribed speech. Empty when nothing intelligible was
	// heard.
	Text string

	// Confidence is the provider's overall confidence score (0.0–1.0).
	// Zero when the provider does not report confidence.
	Confidence float64
}

// OK reports whether the provider heard something worth acting on.
func (r Result) OK() bool { return r.Text != "" }

// Provider is the abstraction over any turn-based STT backend.
type Provider interface {
	// Transcribe sends one complete audio buffer to the provider and waits
	// for the transcript. Empty or unintelligible audio yields a zero
	// Result and a nil error; only provider-level failures return an error.
	//
	// The audio format (sample rate, channels, encoding) is fixed at
	// provider construction; mime describes the container of this buffer.
	Transcribe(ctx context.Context, audio []byte, mime MimeType) (Result, error)
}
