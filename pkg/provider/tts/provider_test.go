package tts_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	ttsmock "github.com/voxbridge/voxbridge/pkg/provider/tts/mock"
)

func TestVerifyVoice(t *testing.T) {
	p := &ttsmock.Provider{Voices: []tts.Voice{
		{ID: "rachel", Name: "Rachel"},
		{ID: "adam", Name: "Adam"},
	}}

	if err := tts.VerifyVoice(context.Background(), p, "adam"); err != nil {
		t.Errorf("known voice: %v", err)
	}

	err := tts.VerifyVoice(context.Background(), p, "nobody")
	if err == nil {
		t.Fatal("expected error for unknown voice")
	}
	if !strings.Contains(err.Error(), "nobody") {
		t.Errorf("error should name the voice: %v", err)
	}
}

type failingCatalogue struct{}

func (failingCatalogue) Synthesize(context.Context, string, tts.Voice) ([]byte, error) {
	return nil, errors.New("unused")
}

func (failingCatalogue) ListVoices(context.Context) ([]tts.Voice, error) {
	return nil, errors.New("catalogue unavailable")
}

func TestVerifyVoiceListFailure(t *testing.T) {
	err := tts.VerifyVoice(context.Background(), failingCatalogue{}, "rachel")
	if err == nil {
		t.Fatal("expected error when the catalogue cannot be fetched")
	}
	if !strings.Contains(err.Error(), "list voices") {
		t.Errorf("error should mention the catalogue fetch: %v", err)
	}
}
