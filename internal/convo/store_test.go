package convo_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/voxbridge/voxbridge/internal/convo"
	"github.com/voxbridge/voxbridge/pkg/provider/llm"
)

const prompt = "You are a helpful phone agent."

func TestHistorySeedsSystemPrompt(t *testing.T) {
	s := convo.NewStore(prompt, 10)

	h := s.History("call-1")
	if len(h) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(h))
	}
	if h[0].Role != llm.RoleSystem || h[0].Content != prompt {
		t.Errorf("seed message = %+v, want system prompt", h[0])
	}
}

func TestAppendOrder(t *testing.T) {
	s := convo.NewStore(prompt, 10)

	s.Append("c", llm.RoleUser, "hello")
	s.Append("c", llm.RoleAssistant, "hi, how can I help?")

	h := s.History("c")
	want := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi, how can I help?"},
	}
	if len(h) != len(want) {
		t.Fatalf("len(history) = %d, want %d", len(h), len(want))
	}
	for i := range want {
		if h[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, h[i], want[i])
		}
	}
}

func TestEvictionPreservesSystemPrompt(t *testing.T) {
	s := convo.NewStore(prompt, 4)

	for i := 0; i < 6; i++ {
		s.Append("c", llm.RoleUser, fmt.Sprintf("user %d", i))
		s.Append("c", llm.RoleAssistant, fmt.Sprintf("assistant %d", i))
	}

	h := s.History("c")
	if len(h) != 5 {
		t.Fatalf("len(history) = %d, want 5 (system + 4 turns)", len(h))
	}
	if h[0].Role != llm.RoleSystem {
		t.Errorf("history[0].Role = %q, want system", h[0].Role)
	}
	// Most recent messages survive.
	if got := h[len(h)-1].Content; got != "assistant 5" {
		t.Errorf("newest message = %q, want %q", got, "assistant 5")
	}
	if got := h[1].Content; got != "assistant 3" {
		t.Errorf("oldest surviving = %q, want %q", got, "assistant 3")
	}
}

func TestCallsAreIsolated(t *testing.T) {
	s := convo.NewStore(prompt, 10)

	s.Append("c1", llm.RoleUser, "first call")
	s.Append("c2", llm.RoleUser, "second call")

	h1 := s.History("c1")
	h2 := s.History("c2")
	if h1[1].Content != "first call" {
		t.Errorf("c1 history = %+v", h1)
	}
	if h2[1].Content != "second call" {
		t.Errorf("c2 history = %+v", h2)
	}

	s.Clear("c1")
	if got := s.Len("c1"); got != 0 {
		t.Errorf("Len after Clear = %d, want 0", got)
	}
	if got := s.Len("c2"); got != 2 {
		t.Errorf("c2 Len = %d, want 2", got)
	}
}

func TestClearUnknownCall(t *testing.T) {
	s := convo.NewStore(prompt, 10)
	s.Clear("nonexistent") // must not panic
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := convo.NewStore(prompt, 10)
	s.Append("c", llm.RoleUser, "original")

	h := s.History("c")
	h[1].Content = "mutated"

	if got := s.History("c")[1].Content; got != "original" {
		t.Errorf("stored history mutated to %q", got)
	}
}

func TestEmptySystemPrompt(t *testing.T) {
	s := convo.NewStore("", 10)
	s.Append("c", llm.RoleUser, "hi")

	h := s.History("c")
	if len(h) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(h))
	}
	if h[0].Role != llm.RoleUser {
		t.Errorf("history[0].Role = %q, want user", h[0].Role)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := convo.NewStore(prompt, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			callID := fmt.Sprintf("call-%d", n%2)
			for j := 0; j < 10; j++ {
				s.Append(callID, llm.RoleUser, "msg")
				s.History(callID)
			}
		}(i)
	}
	wg.Wait()

	// 4 goroutines per call, 10 appends each, plus the system seed.
	if got := s.Len("call-0"); got != 41 {
		t.Errorf("call-0 Len = %d, want 41", got)
	}
}
