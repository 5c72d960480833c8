package openai

import (
	"testing"

	"github.com/voxbridge/voxbridge/pkg/provider/llm"
)

// ── constructor validation ────────────────────────────────────────────────────

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty API key, got nil")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_Roles(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are helpful."},
			{Role: llm.RoleUser, Content: "Hello!"},
			{Role: llm.RoleAssistant, Content: "Hi there!"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected OfSystem to be set for first message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected OfUser to be set for second message")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Error("expected OfAssistant to be set for third message")
	}
	if string(params.Model) != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", params.Model)
	}
}

func TestBuildParams_UnknownRole(t *testing.T) {
	p := &Provider{model: "m"}
	_, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "tool", Content: "sunny"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

func TestBuildParams_Tuning(t *testing.T) {
	p := &Provider{model: "m"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.7 {
		t.Errorf("expected temperature 0.7, got %+v", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 150 {
		t.Errorf("expected max completion tokens 150, got %+v", params.MaxCompletionTokens)
	}
}

func TestBuildParams_ZeroTuningOmitted(t *testing.T) {
	p := &Provider{model: "m"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Temperature.Valid() {
		t.Errorf("expected unset temperature, got %+v", params.Temperature)
	}
	if params.MaxCompletionTokens.Valid() {
		t.Errorf("expected unset max completion tokens, got %+v", params.MaxCompletionTokens)
	}
}
