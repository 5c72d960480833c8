// Package mock provides a scripted tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// Scripted is one canned Synthesize outcome.
type Scripted struct {
	Audio []byte
	Err   error
}

// SynthesizeCall records the arguments of a single Synthesize invocation.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// Provider is a scripted tts.Provider. Calls consume Results in order; once
// exhausted, the last entry repeats. The zero value returns empty audio.
type Provider struct {
	mu sync.Mutex

	// Results are consumed in order by Synthesize.
	Results []Scripted
	// Voices is returned by ListVoices.
	Voices []tts.Voice
	// SynthesizeCalls records every Synthesize invocation.
	SynthesizeCalls []SynthesizeCall

	next int
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize returns the next scripted result.
func (p *Provider) Synthesize(_ context.Context, text string, voice tts.Voice) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})

	if len(p.Results) == 0 {
		return nil, nil
	}
	idx := p.next
	if idx >= len(p.Results) {
		idx = len(p.Results) - 1
	} else {
		p.next++
	}
	r := p.Results[idx]
	return r.Audio, r.Err
}

// ListVoices returns the configured voice list.
func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tts.Voice, len(p.Voices))
	copy(out, p.Voices)
	return out, nil
}

// CallCount returns how many times Synthesize has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Reset clears recorded calls and rewinds the script.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.next = 0
}
