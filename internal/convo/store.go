// Package convo tracks per-call conversation history for the turn loop.
//
// Each call carries its own bounded history seeded with the agent persona as
// a system message. When an appended turn would push the history past the
// configured bound, the oldest non-system message is evicted so the persona
// survives for the lifetime of the call.
package convo

import (
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/llm"
)

// DefaultMaxTurns is the history bound used when no explicit limit is set.
// It counts user and assistant messages only; the system prompt is exempt.
const DefaultMaxTurns = 10

// Store holds bounded conversation histories keyed by call ID.
//
// All methods are safe for concurrent use. Histories for distinct calls are
// fully independent: appending to one never observes or evicts another.
type Store struct {
	systemPrompt string
	maxTurns     int

	mu    sync.Mutex
	calls map[string][]llm.Message
}

// NewStore creates a Store whose histories are seeded with systemPrompt and
// bounded to maxTurns non-system messages. If maxTurns is zero or negative,
// [DefaultMaxTurns] is used.
func NewStore(systemPrompt string, maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
		calls:        make(map[string][]llm.Message),
	}
}

// Append records a message for the given call, creating and seeding the
// history on first use. If the bound is exceeded afterwards, the oldest
// non-system message is dropped.
func (s *Store) Append(callID string, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.calls[callID]
	if !ok {
		history = s.seeded()
	}
	history = append(history, llm.Message{Role: role, Content: content})
	s.calls[callID] = s.trim(history)
}

// History returns a copy of the call's messages, seeding the history first
// if the call is unknown. Mutating the returned slice does not affect the
// stored history.
func (s *Store) History(callID string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.calls[callID]
	if !ok {
		history = s.seeded()
		s.calls[callID] = history
	}
	out := make([]llm.Message, len(history))
	copy(out, history)
	return out
}

// Clear removes all state for the given call. Clearing an unknown call is a
// no-op.
func (s *Store) Clear(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calls, callID)
}

// Len reports the number of messages currently stored for the call,
// including the system prompt. Unknown calls report zero.
func (s *Store) Len(callID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls[callID])
}

func (s *Store) seeded() []llm.Message {
	if s.systemPrompt == "" {
		return nil
	}
	return []llm.Message{{Role: llm.RoleSystem, Content: s.systemPrompt}}
}

// trim drops the oldest non-system messages until at most maxTurns remain.
func (s *Store) trim(history []llm.Message) []llm.Message {
	count := 0
	for _, m := range history {
		if m.Role != llm.RoleSystem {
			count++
		}
	}
	for count > s.maxTurns {
		for i, m := range history {
			if m.Role != llm.RoleSystem {
				history = append(history[:i], history[i+1:]...)
				count--
				break
			}
		}
	}
	return history
}
