// Package memory keeps short-lived per-user conversation history for the
// reply pipeline. Each identity owns a bounded, time-expiring sequence of
// turns; the history is injected into the grounding prompt so the model has
// continuity across messages.
//
// Only user-visible dialogue is stored; grounding context and system
// instructions never enter the history, and image payloads are never
// persisted. Entries expire lazily: an identity whose last exchange is older
// than the TTL is deleted the next time it is read. No background sweep.
package memory

import (
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser marks a turn written by the human.
	RoleUser Role = "user"
	// RoleModel marks a turn written by the model.
	RoleModel Role = "model"
)

// Turn is a single utterance in a conversation. Immutable once created.
type Turn struct {
	Role    Role
	Content string
}

// Config holds history tunables.
type Config struct {
	// MaxPairs is the number of (user, model) exchange pairs retained per
	// identity. The stored turn count is at most 2*MaxPairs; older turns
	// are trimmed from the front. Default: 5.
	MaxPairs int

	// TTL is the inactivity window after which an identity's history is
	// considered expired and dropped on the next read. Default: 30 minutes.
	TTL time.Duration
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxPairs: 5,
		TTL:      30 * time.Minute,
	}
}

// History is the per-identity conversation store. It is safe for concurrent
// use. Two in-flight exchanges for the same identity race on Append; the
// last completed write wins. Accepted, since one user rarely sends two
// concurrent messages.
type History struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*entry
}

type entry struct {
	turns       []Turn
	lastUpdated time.Time
}

// NewHistory creates a History with the given configuration.
func NewHistory(cfg Config) *History {
	if cfg.MaxPairs <= 0 {
		cfg.MaxPairs = DefaultConfig().MaxPairs
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &History{
		config:  cfg,
		entries: make(map[string]*entry),
	}
}

// Get returns a snapshot of the identity's turns in chronological order.
// Returns an empty slice when the identity is unknown or its entry has
// expired; expired entries are deleted as a side effect.
func (h *History) Get(identity string) []Turn {
	return h.getAt(identity, time.Now())
}

// getAt is the time-injectable core of Get (for testing).
func (h *History) getAt(identity string, now time.Time) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := h.entries[identity]
	if e == nil {
		return nil
	}
	if now.Sub(e.lastUpdated) > h.config.TTL {
		delete(h.entries, identity)
		return nil
	}

	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Append records one completed exchange: the user's message followed by the
// model's reply. The sequence is then trimmed oldest-first to the pair cap
// and the entry's timestamp is refreshed.
func (h *History) Append(identity, userContent, modelContent string) {
	h.appendAt(identity, userContent, modelContent, time.Now())
}

func (h *History) appendAt(identity, userContent, modelContent string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := h.entries[identity]
	if e == nil || now.Sub(e.lastUpdated) > h.config.TTL {
		e = &entry{}
		h.entries[identity] = e
	}

	e.turns = append(e.turns,
		Turn{Role: RoleUser, Content: userContent},
		Turn{Role: RoleModel, Content: modelContent},
	)

	maxTurns := 2 * h.config.MaxPairs
	if len(e.turns) > maxTurns {
		e.turns = e.turns[len(e.turns)-maxTurns:]
	}
	e.lastUpdated = now
}

// Evict removes an identity's history immediately.
func (h *History) Evict(identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, identity)
}

// Len reports the number of live (possibly expired, not yet read) entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
