// Package mock provides a test double for the llm.Provider interface.
//
// Script the mock by populating Responses; each Complete call consumes the
// next scripted outcome and records the request it received.
package mock

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/llm"
)

// Scripted is one pre-programmed Complete outcome.
type Scripted struct {
	Response *llm.CompletionResponse
	Err      error
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Responses is the ordered script of outcomes returned by Complete.
	// When exhausted, the last entry repeats. An empty script yields an
	// empty response.
	Responses []Scripted

	// CompleteCalls records every request passed to Complete in order.
	CompleteCalls []llm.CompletionRequest

	next int
}

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Complete records the call and returns the next scripted outcome.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.CompleteCalls = append(p.CompleteCalls, req)

	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	s := p.Responses[min(p.next, len(p.Responses)-1)]
	p.next++
	if s.Err != nil {
		return nil, s.Err
	}
	resp := *s.Response
	return &resp, nil
}

// CallCount returns the number of Complete invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}
