// Package webhook implements the inbound messaging-platform callback
// endpoint.
//
// The platform delivers user activity as signed HTTP POSTs:
//
//	POST /callback
//
// The receiver validates the HMAC-SHA256 body signature against the channel
// secret, rate-limits per sender identity, decodes the event envelope, and
// hands each event to a Dispatcher on its own goroutine so the platform
// gets its 200 without waiting on provider calls. Delivery of replies back
// to the platform stays behind the Replier interface; the receiver itself
// never sends user-facing messages.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Kaimu/common/trace"
)

// DefaultRateLimit is the maximum number of events accepted per identity
// per minute when no explicit limit is configured.
const DefaultRateLimit = 30

// maxBodyBytes caps inbound request bodies to prevent memory exhaustion
// from oversized payloads.
const maxBodyBytes = 1 * 1024 * 1024 // 1 MiB

// signatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Line-Signature"

// ErrBadSignature is returned when the body signature does not match the
// channel secret.
var ErrBadSignature = errors.New("webhook: signature mismatch")

// EventType classifies inbound events.
type EventType string

const (
	EventText     EventType = "text"
	EventImage    EventType = "image"
	EventLocation EventType = "location"
)

// Location is a shared map pin.
type Location struct {
	Title     string
	Address   string
	Latitude  float64
	Longitude float64
}

// Event is one decoded platform event.
type Event struct {
	Type EventType
	// ReplyToken authorizes one reply to this event.
	ReplyToken string
	// Identity is the opaque stable sender identifier.
	Identity string
	// GroupID is set when the message was posted in a group room.
	GroupID string
	// Text is the message text for EventText.
	Text string
	// MessageID identifies image content for download for EventImage.
	MessageID string
	// Location is set for EventLocation.
	Location *Location
	// Timestamp is the platform's delivery time.
	Timestamp time.Time
}

// Dispatcher consumes decoded events. Implementations run on a dedicated
// goroutine per event and own all reply delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event)
}

// Replier delivers outbound messages to the platform. The reply-token path
// is preferred; Push is the fallback once a token has expired or was
// already consumed.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

// Receiver is the HTTP handler for platform callbacks.
type Receiver struct {
	secret     []byte
	dispatcher Dispatcher
	limiter    *rateLimiter
}

// Config holds options for creating a Receiver.
type Config struct {
	// ChannelSecret is the shared HMAC key for signature validation.
	ChannelSecret string
	// RateLimit is the maximum number of events per identity per minute.
	// Defaults to DefaultRateLimit when zero or negative.
	RateLimit int
}

// New creates a Receiver that hands validated events to d.
func New(cfg Config, d Dispatcher) *Receiver {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	return &Receiver{
		secret:     []byte(cfg.ChannelSecret),
		dispatcher: d,
		limiter:    newRateLimiter(limit, time.Minute),
	}
}

// RouteRegistrar is satisfied by *http.ServeMux, allowing the Receiver to
// register its route without knowing the server.
type RouteRegistrar interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes mounts the callback handler on the given registrar.
func (rc *Receiver) RegisterRoutes(r RouteRegistrar) {
	r.Handle("/callback", http.HandlerFunc(rc.handleCallback))
}

func (rc *Receiver) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("webhook: failed to read request body", "err", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if err := rc.verifySignature(body, r.Header.Get(signatureHeader)); err != nil {
		slog.Info("webhook: signature validation failed", "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	events, err := decodeEnvelope(body)
	if err != nil {
		slog.Warn("webhook: malformed envelope", "err", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, evt := range events {
		if evt.Identity != "" && !rc.limiter.Allow(evt.Identity) {
			slog.Info("webhook: rate limit exceeded", "identity", evt.Identity)
			continue
		}

		requestID := uuid.NewString()
		ctx := trace.WithTraceID(context.Background(), requestID)
		slog.Info("webhook: event received",
			"trace_id", requestID, "type", evt.Type, "identity", evt.Identity)

		go rc.dispatcher.Dispatch(ctx, evt)
	}

	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the base64 HMAC-SHA256 body signature in constant
// time.
func (rc *Receiver) verifySignature(body []byte, header string) error {
	if len(rc.secret) == 0 {
		return fmt.Errorf("webhook: no channel secret configured")
	}
	if header == "" {
		return fmt.Errorf("webhook: missing %s header", signatureHeader)
	}
	claimed, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return fmt.Errorf("webhook: undecodable signature header: %w", err)
	}
	mac := hmac.New(sha256.New, rc.secret)
	mac.Write(body)
	if !hmac.Equal(claimed, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// Wire envelope shapes, trimmed to the fields the bot consumes.
type envelope struct {
	Events []wireEvent `json:"events"`
}

type wireEvent struct {
	Type       string      `json:"type"`
	ReplyToken string      `json:"replyToken"`
	Timestamp  int64       `json:"timestamp"`
	Source     wireSource  `json:"source"`
	Message    wireMessage `json:"message"`
}

type wireSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

type wireMessage struct {
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Title     string  `json:"title"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// decodeEnvelope parses the callback body and keeps the message events the
// bot understands. Unknown event and message types are skipped, not errors;
// the platform adds new ones without notice.
func decodeEnvelope(body []byte) ([]Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	var events []Event
	for _, we := range env.Events {
		if we.Type != "message" {
			continue
		}
		evt := Event{
			ReplyToken: we.ReplyToken,
			Identity:   we.Source.UserID,
			GroupID:    we.Source.GroupID,
			Timestamp:  time.UnixMilli(we.Timestamp),
		}
		switch we.Message.Type {
		case "text":
			evt.Type = EventText
			evt.Text = we.Message.Text
		case "image":
			evt.Type = EventImage
			evt.MessageID = we.Message.ID
		case "location":
			evt.Type = EventLocation
			evt.Location = &Location{
				Title:     we.Message.Title,
				Address:   we.Message.Address,
				Latitude:  we.Message.Latitude,
				Longitude: we.Message.Longitude,
			}
		default:
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}
