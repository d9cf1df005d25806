package provider

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// DefaultStandardModel is the primary tier used while the daily
	// allowance lasts.
	DefaultStandardModel = "gemini-2.5-flash"
	// DefaultReducedModel is the cheaper primary tier used after the usage
	// tracker signals a downgrade.
	DefaultReducedModel = "gemini-2.5-flash-lite"
	// DefaultChatModel heads the secondary model list when none is
	// configured.
	DefaultChatModel = "gpt-4o-mini"
)

// Config assembles a Gateway. Credential presence toggles whether each
// backend is attempted at all.
type Config struct {
	Gemini GeminiConfig
	// StandardModel and ReducedModel are the two primary tiers.
	StandardModel string
	ReducedModel  string

	Chat ChatConfig
	// ChatModels is the ordered secondary preference list. Duplicates are
	// removed preserving first occurrence; empty falls back to
	// DefaultChatModel.
	ChatModels []string
}

// Gateway tries the primary provider first, then walks the secondary model
// list in order. Safe for concurrent use.
type Gateway struct {
	primary       generator // nil when no Gemini credential
	standardModel string
	reducedModel  string

	secondary  generator // nil when no secondary credential
	chatModels []string
}

// NewGateway builds a Gateway from configuration.
func NewGateway(cfg Config) *Gateway {
	g := &Gateway{
		standardModel: cfg.StandardModel,
		reducedModel:  cfg.ReducedModel,
	}
	if g.standardModel == "" {
		g.standardModel = DefaultStandardModel
	}
	if g.reducedModel == "" {
		g.reducedModel = DefaultReducedModel
	}
	if cfg.Gemini.APIKey != "" {
		g.primary = newGeminiClient(cfg.Gemini)
	}
	if cfg.Chat.APIKey != "" {
		g.secondary = newChatClient(cfg.Chat)
		g.chatModels = dedupe(cfg.ChatModels)
		if len(g.chatModels) == 0 {
			g.chatModels = []string{DefaultChatModel}
		}
	}
	return g
}

// Generate produces a reply for the request, honouring the tier decision
// for the primary provider. The primary gets exactly one attempt; any
// failure (including an empty reply) falls through to the secondary model
// list. Returns ErrExhausted when every candidate failed.
func (g *Gateway) Generate(ctx context.Context, req Request, reducedTier bool) (*Result, error) {
	var lastErr error
	lastCandidate := "none configured"

	if g.primary != nil {
		model := g.standardModel
		if reducedTier {
			model = g.reducedModel
		}
		text, err := g.primary.generate(ctx, req, model)
		if err == nil {
			return &Result{Text: text, Provider: ProviderGemini, Model: model}, nil
		}
		slog.Warn("provider: primary attempt failed, falling back",
			"model", model, "err", err)
		lastErr = err
		lastCandidate = "gemini/" + model
	}

	if g.secondary != nil {
		for _, model := range g.chatModels {
			text, err := g.secondary.generate(ctx, req, model)
			if err == nil {
				return &Result{Text: text, Provider: ProviderChat, Model: model}, nil
			}
			slog.Warn("provider: secondary model failed, trying next",
				"model", model, "err", err)
			lastErr = err
			lastCandidate = "chat/" + model
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w (last failure %s: %v)", ErrExhausted, lastCandidate, lastErr)
	}
	return nil, fmt.Errorf("%w (no provider credentials configured)", ErrExhausted)
}

// HasProvider reports whether at least one backend is configured.
func (g *Gateway) HasProvider() bool {
	return g.primary != nil || g.secondary != nil
}

// dedupe removes duplicate model names preserving first-occurrence order.
func dedupe(models []string) []string {
	seen := make(map[string]struct{}, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
