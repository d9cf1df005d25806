// Package respond coordinates a full chat exchange: conversation history,
// prompt composition, tier selection, provider fallback, and state updates.
//
// The orchestrator is the only component allowed to mutate conversation
// memory and the usage counter, and it does so only after a successful
// generation. A failed exchange leaves all state untouched so the user can
// simply retry.
package respond

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/Kaimu/internal/kaimu/memory"
	"github.com/bdobrica/Kaimu/internal/kaimu/notify"
	"github.com/bdobrica/Kaimu/internal/kaimu/prompt"
	"github.com/bdobrica/Kaimu/internal/kaimu/provider"
)

const (
	// emptyMessageReply is returned when the user sent nothing usable.
	emptyMessageReply = "앗, 메시지가 비어 있어요. 하고 싶은 말을 적어서 다시 보내 주세요!"
	// degradedReply is returned when every response provider failed.
	degradedReply = "지금은 답변을 만들 수 없어요. 잠시 후에 다시 물어봐 주세요!"
)

// Generator is the provider-side surface the orchestrator needs.
// *provider.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, req provider.Request, reducedTier bool) (*provider.Result, error)
}

// TierSelector decides between the standard and reduced model tiers.
// *usage.Tracker satisfies it.
type TierSelector interface {
	ShouldUseReducedTier() bool
	RecordPrimaryCall()
}

// Request is one inbound chat exchange.
type Request struct {
	// Identity scopes conversation memory. Required.
	Identity string
	// DisplayName is the sender's profile name; may be empty.
	DisplayName string
	// Message is the raw user text.
	Message string
	// Images are optional attachments forwarded to the provider.
	// Never stored in memory.
	Images []provider.Image
	// Grounding is an optional caller-supplied factual block appended to
	// the prompt. Never stored in memory.
	Grounding string
}

// Orchestrator runs the response pipeline for one bot persona.
type Orchestrator struct {
	history  *memory.History
	tracker  TierSelector
	gateway  Generator
	persona  *prompt.Persona
	notifier notify.Notifier
	loc      *time.Location

	// now is swappable for tests.
	now func() time.Time
}

// Config assembles an Orchestrator.
type Config struct {
	History  *memory.History
	Tracker  TierSelector
	Gateway  Generator
	Persona  *prompt.Persona
	Notifier notify.Notifier
	// Location is the reference timezone for prompt timestamps.
	// Nil defaults to Asia/Seoul.
	Location *time.Location
}

// New creates an Orchestrator. Notifier defaults to a no-op when nil.
func New(cfg Config) *Orchestrator {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Orchestrator{
		history:  cfg.History,
		tracker:  cfg.Tracker,
		gateway:  cfg.Gateway,
		persona:  cfg.Persona,
		notifier: notifier,
		loc:      cfg.Location,
		now:      time.Now,
	}
}

// Respond runs the full pipeline for one exchange and returns the reply
// text. It never returns an error to the caller: provider exhaustion is
// converted into a fixed degraded-service sentence.
func (o *Orchestrator) Respond(ctx context.Context, req Request) string {
	if strings.TrimSpace(req.Message) == "" && len(req.Images) == 0 {
		return emptyMessageReply
	}

	turns := o.history.Get(req.Identity)
	composed := prompt.Compose(prompt.Request{
		Message:     req.Message,
		DisplayName: req.DisplayName,
		History:     historyTurns(turns),
		Grounding:   req.Grounding,
		Location:    o.loc,
	}, o.now())

	reduced := o.tracker.ShouldUseReducedTier()

	var personaText string
	if o.persona != nil {
		personaText = o.persona.Render()
	}

	result, err := o.gateway.Generate(ctx, provider.Request{
		Prompt:  composed,
		Images:  req.Images,
		Persona: personaText,
	}, reduced)
	if err != nil {
		if errors.Is(err, provider.ErrExhausted) {
			slog.Error("respond: all providers exhausted",
				"identity", req.Identity, "err", err)
			o.notifier.Notify(ctx, notify.Event{
				Kind:    notify.KindProviderExhausted,
				Target:  req.Identity,
				Message: err.Error(),
			})
			return degradedReply
		}
		slog.Error("respond: generation failed", "identity", req.Identity, "err", err)
		return degradedReply
	}

	o.history.Append(req.Identity, req.Message, result.Text)
	if result.Provider == provider.ProviderGemini {
		o.tracker.RecordPrimaryCall()
	}

	slog.Info("respond: exchange complete",
		"identity", req.Identity,
		"provider", result.Provider,
		"model", result.Model,
		"reduced_tier", reduced)

	return result.Text
}

// historyTurns converts stored memory turns into composer history entries.
func historyTurns(turns []memory.Turn) []prompt.HistoryTurn {
	if len(turns) == 0 {
		return nil
	}
	out := make([]prompt.HistoryTurn, len(turns))
	for i, t := range turns {
		out[i] = prompt.HistoryTurn{
			FromUser: t.Role == memory.RoleUser,
			Content:  t.Content,
		}
	}
	return out
}
