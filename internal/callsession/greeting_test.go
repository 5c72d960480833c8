package callsession_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/internal/callsession"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
	ttsmock "github.com/voxbridge/voxbridge/pkg/provider/tts/mock"
)

// stalledTTS blocks every synthesis until its context expires.
type stalledTTS struct{}

func (p *stalledTTS) Synthesize(ctx context.Context, _ string, _ tts.Voice) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *stalledTTS) ListVoices(context.Context) ([]tts.Voice, error) { return nil, nil }

func TestGreetingSynthesizedOnce(t *testing.T) {
	prov := &ttsmock.Provider{
		Results: []ttsmock.Scripted{{Audio: []byte{0x01, 0x00, 0x02, 0x00}}},
	}
	g := callsession.NewGreeting("welcome", prov, tts.Voice{ID: "v"}, 0, nil)

	sink := &fakeSink{}
	ctx := context.Background()
	if err := g.Play(ctx, "c1", sink); err != nil {
		t.Fatalf("Play c1: %v", err)
	}
	if err := g.Play(ctx, "c2", sink); err != nil {
		t.Fatalf("Play c2: %v", err)
	}

	if got := prov.CallCount(); got != 1 {
		t.Errorf("synthesis calls = %d, want 1 (cached across calls)", got)
	}
	if got := sink.writeCount(); got != 2 {
		t.Errorf("sink writes = %d, want 2 (once per call)", got)
	}
}

func TestGreetingPlayedOncePerCall(t *testing.T) {
	prov := &ttsmock.Provider{
		Results: []ttsmock.Scripted{{Audio: []byte{0x01, 0x00}}},
	}
	g := callsession.NewGreeting("welcome", prov, tts.Voice{ID: "v"}, 0, nil)

	sink := &fakeSink{}
	ctx := context.Background()
	if err := g.Play(ctx, "c1", sink); err != nil {
		t.Fatalf("first Play: %v", err)
	}
	if err := g.Play(ctx, "c1", sink); err != nil {
		t.Fatalf("second Play: %v", err)
	}
	if got := sink.writeCount(); got != 1 {
		t.Errorf("sink writes = %d, want 1 (replay guarded)", got)
	}

	// Forget makes the call eligible again, as after a session teardown.
	g.Forget("c1")
	if err := g.Play(ctx, "c1", sink); err != nil {
		t.Fatalf("Play after Forget: %v", err)
	}
	if got := sink.writeCount(); got != 2 {
		t.Errorf("sink writes = %d, want 2 after Forget", got)
	}
}

func TestGreetingRetriesAfterFailedWarm(t *testing.T) {
	prov := &ttsmock.Provider{
		Results: []ttsmock.Scripted{
			{Err: errors.New("service cold")},
			{Audio: []byte{0x01, 0x00}},
		},
	}
	g := callsession.NewGreeting("welcome", prov, tts.Voice{ID: "v"}, 0, nil)

	ctx := context.Background()
	if err := g.Warm(ctx); err == nil {
		t.Fatal("Warm succeeded despite synthesis failure")
	}

	sink := &fakeSink{}
	if err := g.Play(ctx, "c1", sink); err != nil {
		t.Fatalf("Play after failed Warm: %v", err)
	}
	if got := sink.writeCount(); got != 1 {
		t.Errorf("sink writes = %d, want 1", got)
	}
}

func TestGreetingStalledSynthesisIsBounded(t *testing.T) {
	g := callsession.NewGreeting("welcome", &stalledTTS{}, tts.Voice{ID: "v"}, 50*time.Millisecond, nil)

	sinks := []*fakeSink{{}, {}}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, callID := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(i int, callID string) {
			defer wg.Done()
			errs[i] = g.Play(context.Background(), callID, sinks[i])
		}(i, callID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Play blocked past the synthesis timeout")
	}

	for i, err := range errs {
		if err == nil {
			t.Errorf("Play %d succeeded despite stalled synthesis", i)
		}
	}
	for i, sink := range sinks {
		if got := sink.writeCount(); got != 0 {
			t.Errorf("sink %d writes = %d, want 0", i, got)
		}
	}
}

func TestGreetingDefaultText(t *testing.T) {
	prov := &ttsmock.Provider{
		Results: []ttsmock.Scripted{{Audio: []byte{0x01, 0x00}}},
	}
	g := callsession.NewGreeting("", prov, tts.Voice{ID: "v"}, 0, nil)

	if err := g.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if got := prov.SynthesizeCalls[0].Text; got != callsession.DefaultGreetingText {
		t.Errorf("synthesized text = %q, want default greeting", got)
	}
}
