// Package mock provides a test double for the stt.Provider interface.
//
// Script the mock by populating Results; each Transcribe call consumes the
// next scripted result. When the script is exhausted the mock keeps returning
// the last entry (or a zero Result when no script was set). Every invocation
// is recorded in TranscribeCalls.
package mock

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Audio is a copy of the buffer passed to Transcribe.
	Audio []byte
	// Mime is the format hint passed to Transcribe.
	Mime stt.MimeType
}

// Scripted is one pre-programmed Transcribe outcome.
type Scripted struct {
	Result stt.Result
	Err    error
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is the ordered script of outcomes returned by Transcribe.
	Results []Scripted

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	next int
}

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the next scripted outcome.
func (p *Provider) Transcribe(_ context.Context, audio []byte, mime stt.MimeType) (stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]byte, len(audio))
	copy(cp, audio)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Audio: cp, Mime: mime})

	if len(p.Results) == 0 {
		return stt.Result{}, nil
	}
	s := p.Results[min(p.next, len(p.Results)-1)]
	p.next++
	return s.Result, s.Err
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears the script position and all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.next = 0
}
