// Package notify provides the operator notification subsystem.
//
// When configured with a Matrix room ID (MATRIX_OPS_ROOM), Kaimu posts
// concise human-readable summaries of notable events to that room so
// operators can monitor the bot without tailing logs.
//
// Supported event types (Event.Kind):
//   - KindStartup
//   - KindProviderExhausted
//   - KindScheduleParsed
//   - KindUsageReport
//   - KindError
//
// Events include the originating trace ID so operators can correlate the
// notice with the structured log stream.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/Kaimu/common/trace"
)

// Kind is a machine-readable event category.
type Kind string

const (
	KindStartup           Kind = "bot.startup"
	KindProviderExhausted Kind = "provider.exhausted"
	KindScheduleParsed    Kind = "schedule.parsed"
	KindUsageReport       Kind = "usage.report"
	KindError             Kind = "error"
)

// Event carries the data that the notifier formats and sends.
type Event struct {
	// Kind identifies the type of event.
	Kind Kind
	// Target is the primary resource affected (identity, schedule period, …).
	Target string
	// Message is a human-friendly description of what happened.
	Message string
	// TraceID ties the notification back to the log stream.
	// When empty the value is taken from the context.
	TraceID string
	// Timestamp defaults to time.Now() when zero.
	Timestamp time.Time
}

// Notifier sends operator room notifications for notable bot events.
type Notifier interface {
	// Notify posts an event. Implementations MUST NOT block the caller
	// for longer than a short timeout; send failures should be logged, not
	// propagated.
	Notify(ctx context.Context, evt Event)
}

// Sender is the subset of the Matrix client needed by MatrixNotifier.
// Defined as an interface so the notifier can be unit-tested independently.
type Sender interface {
	SendNotice(ctx context.Context, roomID, message string) error
}

// MatrixNotifier posts formatted notices to a Matrix operator room.
type MatrixNotifier struct {
	sender Sender
	roomID string
}

// NewMatrixNotifier creates a MatrixNotifier that posts to roomID via sender.
func NewMatrixNotifier(sender Sender, roomID string) *MatrixNotifier {
	return &MatrixNotifier{sender: sender, roomID: roomID}
}

// Notify formats evt as a human-readable notice and posts it to the operator
// room. Errors are logged at WARN level; the caller is never blocked.
func (n *MatrixNotifier) Notify(ctx context.Context, evt Event) {
	if n.roomID == "" {
		return
	}

	tid := evt.TraceID
	if tid == "" {
		tid = trace.FromContext(ctx)
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	icon := kindIcon(evt.Kind)
	msg := fmt.Sprintf("%s [%s] %s", icon, evt.Kind, evt.Message)
	if evt.Target != "" {
		msg = fmt.Sprintf("%s %s → %s", icon, evt.Target, evt.Message)
	}
	if tid != "" {
		msg = fmt.Sprintf("%s\n  trace: %s", msg, tid)
	}

	if err := n.sender.SendNotice(ctx, n.roomID, msg); err != nil {
		slog.Warn("notifier: failed to send room notice",
			"room", n.roomID, "kind", evt.Kind, "err", err)
	} else {
		slog.Debug("notifier: sent notice", "room", n.roomID, "kind", evt.Kind)
	}
}

// Noop is a no-op Notifier used when operator notifications are disabled.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(_ context.Context, _ Event) {}

// kindIcon returns a Unicode icon for the event kind.
func kindIcon(k Kind) string {
	switch k {
	case KindStartup:
		return "🟢"
	case KindProviderExhausted:
		return "🛑"
	case KindScheduleParsed:
		return "🗓️"
	case KindUsageReport:
		return "📊"
	case KindError:
		return "🚨"
	default:
		return "ℹ️"
	}
}
