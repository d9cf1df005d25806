package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// stubGenerator fails or succeeds per model and records the attempt order.
type stubGenerator struct {
	replies  map[string]string // model → reply; missing model means failure
	attempts []string
}

func (s *stubGenerator) generate(_ context.Context, _ Request, model string) (string, error) {
	s.attempts = append(s.attempts, model)
	if reply, ok := s.replies[model]; ok && reply != "" {
		return reply, nil
	}
	return "", fmt.Errorf("stub: model %s down", model)
}

func TestGateway_PrimarySuccess(t *testing.T) {
	primary := &stubGenerator{replies: map[string]string{"std": "primary says hi"}}
	secondary := &stubGenerator{replies: map[string]string{"a": "never"}}
	g := &Gateway{
		primary: primary, standardModel: "std", reducedModel: "lite",
		secondary: secondary, chatModels: []string{"a"},
	}

	res, err := g.Generate(context.Background(), Request{Prompt: "hi"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Provider != ProviderGemini || res.Text != "primary says hi" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(secondary.attempts) != 0 {
		t.Error("secondary must not be attempted when the primary succeeds")
	}
}

func TestGateway_ReducedTierSelectsReducedModel(t *testing.T) {
	primary := &stubGenerator{replies: map[string]string{"lite": "cheap reply"}}
	g := &Gateway{primary: primary, standardModel: "std", reducedModel: "lite"}

	res, err := g.Generate(context.Background(), Request{Prompt: "hi"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Model != "lite" {
		t.Errorf("expected reduced model, got %q", res.Model)
	}
	if len(primary.attempts) != 1 || primary.attempts[0] != "lite" {
		t.Errorf("expected one attempt against 'lite', got %v", primary.attempts)
	}
}

func TestGateway_FallbackOrdering(t *testing.T) {
	// Primary fails; secondary models [A, B] where A fails and B succeeds.
	primary := &stubGenerator{}
	secondary := &stubGenerator{replies: map[string]string{"B": "from B"}}
	g := &Gateway{
		primary: primary, standardModel: "std", reducedModel: "lite",
		secondary: secondary, chatModels: []string{"A", "B", "C"},
	}

	res, err := g.Generate(context.Background(), Request{Prompt: "hi"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "from B" || res.Provider != ProviderChat || res.Model != "B" {
		t.Errorf("unexpected result: %+v", res)
	}
	// Never attempts a model after the first success.
	if got := strings.Join(secondary.attempts, ","); got != "A,B" {
		t.Errorf("expected attempts A,B and no more, got %s", got)
	}
	// The primary gets exactly one attempt, no retry.
	if len(primary.attempts) != 1 {
		t.Errorf("expected a single primary attempt, got %v", primary.attempts)
	}
}

func TestGateway_ExhaustionNamesLastFailure(t *testing.T) {
	primary := &stubGenerator{}
	secondary := &stubGenerator{}
	g := &Gateway{
		primary: primary, standardModel: "std", reducedModel: "lite",
		secondary: secondary, chatModels: []string{"A", "B"},
	}

	_, err := g.Generate(context.Background(), Request{Prompt: "hi"}, false)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !strings.Contains(err.Error(), "chat/B") {
		t.Errorf("aggregate error should name the last candidate: %v", err)
	}
}

func TestGateway_NoPrimaryCredentialSkipsStraightToSecondary(t *testing.T) {
	secondary := &stubGenerator{replies: map[string]string{"A": "ok"}}
	g := &Gateway{secondary: secondary, chatModels: []string{"A"}}

	res, err := g.Generate(context.Background(), Request{Prompt: "hi"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Provider != ProviderChat {
		t.Errorf("expected secondary to serve, got %+v", res)
	}
}

func TestGateway_NothingConfigured(t *testing.T) {
	g := &Gateway{}
	if g.HasProvider() {
		t.Error("empty gateway should report no providers")
	}
	_, err := g.Generate(context.Background(), Request{Prompt: "hi"}, false)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestNewGateway_ModelListDeduped(t *testing.T) {
	g := NewGateway(Config{
		Chat:       ChatConfig{APIKey: "k"},
		ChatModels: []string{"a", "b", "a", "", "c", "b"},
	})
	want := []string{"a", "b", "c"}
	if len(g.chatModels) != len(want) {
		t.Fatalf("expected %v, got %v", want, g.chatModels)
	}
	for i := range want {
		if g.chatModels[i] != want[i] {
			t.Errorf("model %d: expected %q, got %q", i, want[i], g.chatModels[i])
		}
	}
}

func TestNewGateway_Defaults(t *testing.T) {
	g := NewGateway(Config{Gemini: GeminiConfig{APIKey: "k"}})
	if g.standardModel != DefaultStandardModel || g.reducedModel != DefaultReducedModel {
		t.Errorf("unexpected default models: %q / %q", g.standardModel, g.reducedModel)
	}
	if g.secondary != nil {
		t.Error("secondary must be nil without a credential")
	}
}
