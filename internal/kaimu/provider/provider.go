// Package provider abstracts over the two generation backends Kaimu can
// answer with: Gemini (primary) and any OpenAI-compatible chat-completions
// endpoint (secondary).
//
// The gateway tries candidates in a fixed priority order: the primary
// provider at the tier chosen by the usage tracker, then the secondary
// provider's models in configured order. It returns the first non-empty
// reply. A single failed candidate is never retried: quota errors, network
// errors, timeouts, and empty replies all mean "advance to the next
// candidate". Only when every candidate has failed does the gateway surface
// ErrExhausted; callers translate that into a fixed degraded-service message
// and never show the underlying failure to the end user.
package provider

import (
	"context"
	"errors"
)

// ErrExhausted is returned by Gateway.Generate when every candidate
// (primary tier and all secondary models) has failed. The wrapped message
// names the last failure for the operator log.
var ErrExhausted = errors.New("provider: all candidates exhausted")

// Image is one inline attachment, already downloaded and size-reduced by
// the transport layer. The gateway only encodes and forwards it.
type Image struct {
	// MIME is the content type, e.g. "image/jpeg".
	MIME string
	// Data is the raw image bytes.
	Data []byte
}

// Request carries one generation call's inputs, provider-agnostic.
type Request struct {
	// Prompt is the fully composed grounding prompt.
	Prompt string
	// Images are optional inline attachments (zero, one, or many).
	Images []Image
	// Persona, when non-empty, is transmitted as the system instruction on
	// every call to every provider. It is never cached per-model.
	Persona string
}

// Backend names reported in Result.Provider.
const (
	// ProviderGemini marks a reply served by the primary Gemini backend.
	ProviderGemini = "gemini"
	// ProviderChat marks a reply served by the OpenAI-compatible fallback.
	ProviderChat = "chat"
)

// Result is a successful generation.
type Result struct {
	// Text is the raw model reply.
	Text string
	// Provider names the backend that served the call: ProviderGemini or
	// ProviderChat. The orchestrator credits the usage counter only for
	// primary serves.
	Provider string
	// Model is the concrete model that produced the text.
	Model string
}

// generator is one backend capable of producing text for a request with a
// named model. Both clients implement it; tests substitute stubs.
type generator interface {
	generate(ctx context.Context, req Request, model string) (string, error)
}
