// Package deepgram provides a Deepgram-backed STT provider using the
// pre-recorded transcription HTTP API. It implements the stt.Provider
// interface.
//
// The pre-recorded endpoint fits the strictly turn-based pipeline: each caller
// utterance is one POST, one response. Deepgram's streaming WebSocket API is
// deliberately not used here.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

const (
	listenEndpoint    = "https://api.deepgram.com/v1/listen"
	defaultModel      = "nova-2"
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en-US").
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the sample rate in Hz assumed for headerless audio.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// Provider implements stt.Provider backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		baseURL:    listenEndpoint,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// listenResponse is the JSON structure returned by POST /v1/listen.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends one audio buffer to Deepgram and returns the transcript.
// An empty buffer or an empty transcript yields a zero stt.Result and nil
// error.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mime stt.MimeType) (stt.Result, error) {
	if len(audio) == 0 {
		return stt.Result{}, nil
	}

	u, err := p.buildURL(mime)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", contentType(mime))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Result{}, fmt.Errorf("deepgram: transcribe: unexpected status %d: %s", resp.StatusCode, body)
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: decode response: %w", err)
	}
	return parseResult(lr), nil
}

// buildURL constructs the listen endpoint URL with recognition parameters.
// Raw (containerless) encodings must declare their layout in the query string.
func (p *Provider) buildURL(mime stt.MimeType) (string, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")

	switch mime {
	case stt.MimePCM:
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(p.sampleRate))
		q.Set("channels", "1")
	case stt.MimeMulaw:
		q.Set("encoding", "mulaw")
		q.Set("sample_rate", "8000")
		q.Set("channels", "1")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseResult extracts the first alternative of the first channel. Deepgram
// responds with an empty transcript for silence; that is a no-result, not an
// error.
func parseResult(lr listenResponse) stt.Result {
	if len(lr.Results.Channels) == 0 {
		return stt.Result{}
	}
	alts := lr.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return stt.Result{}
	}
	return stt.Result{
		Text:       alts[0].Transcript,
		Confidence: alts[0].Confidence,
	}
}

// contentType maps a MimeType hint to the Content-Type header value.
func contentType(mime stt.MimeType) string {
	if mime == "" {
		return string(stt.MimeWAV)
	}
	return string(mime)
}
