package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/Kaimu/internal/kaimu/batch"
	"github.com/bdobrica/Kaimu/internal/kaimu/notify"
	"github.com/bdobrica/Kaimu/internal/kaimu/provider"
	"github.com/bdobrica/Kaimu/internal/kaimu/reconcile"
	"github.com/bdobrica/Kaimu/internal/kaimu/respond"
	"github.com/bdobrica/Kaimu/internal/kaimu/schedule"
	"github.com/bdobrica/Kaimu/internal/kaimu/webhook"
)

// responder is the orchestrator surface the dispatcher consumes.
type responder interface {
	Respond(ctx context.Context, req respond.Request) string
}

// scheduleStore is the subset of *schedule.Store the dispatcher needs.
type scheduleStore interface {
	Save(ctx context.Context, source string, doc *schedule.Document) error
	Lookup(ctx context.Context, source string, ref time.Time) (*schedule.Document, error)
}

// ProfileFetcher resolves an identity to a display name, best-effort.
type ProfileFetcher interface {
	DisplayName(ctx context.Context, identity string) (string, error)
}

// ImageFetcher downloads image content referenced by a platform message ID.
// The caller is expected to have size-reduced the content already.
type ImageFetcher interface {
	Fetch(ctx context.Context, messageID string) (provider.Image, error)
}

// Dispatcher routes decoded webhook events: schedule notices and group
// selections go through the deterministic parser path, everything else
// becomes a chat exchange. It satisfies webhook.Dispatcher.
type Dispatcher struct {
	responder responder
	schedules scheduleStore
	replier   webhook.Replier
	profiles  ProfileFetcher
	images    ImageFetcher
	notifier  notify.Notifier
	collector *batch.Collector
	loc       *time.Location
}

// DispatcherConfig assembles a Dispatcher.
type DispatcherConfig struct {
	Responder responder
	Schedules scheduleStore
	Replier   webhook.Replier
	Profiles  ProfileFetcher
	Images    ImageFetcher
	Notifier  notify.Notifier
	// BatchQuiet is the image debounce interval; zero uses batch.DefaultQuiet.
	BatchQuiet time.Duration
	// Location is the reference timezone for schedule lookups.
	Location *time.Location
}

// NewDispatcher creates a Dispatcher and its owned image batch collector.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		responder: cfg.Responder,
		schedules: cfg.Schedules,
		replier:   cfg.Replier,
		profiles:  cfg.Profiles,
		images:    cfg.Images,
		notifier:  cfg.Notifier,
		loc:       cfg.Location,
	}
	if d.notifier == nil {
		d.notifier = notify.Noop{}
	}
	if d.loc == nil {
		d.loc = time.UTC
	}
	d.collector = batch.New(cfg.BatchQuiet, d.flushImages)
	return d
}

// Dispatch handles one decoded platform event. Runs on its own goroutine;
// errors are logged and reported to the operator room, never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, evt webhook.Event) {
	switch evt.Type {
	case webhook.EventText:
		d.handleText(ctx, evt)
	case webhook.EventImage:
		d.handleImage(ctx, evt)
	case webhook.EventLocation:
		d.handleLocation(ctx, evt)
	}
}

func (d *Dispatcher) handleText(ctx context.Context, evt webhook.Event) {
	// Group selection first: a bare "B조" must hit the cached schedule, not
	// the chat path.
	if letter, ok := schedule.IsGroupSelection(evt.Text); ok {
		if reply := d.lookupGroup(ctx, evt, letter); reply != "" {
			d.reply(ctx, evt, reply)
			return
		}
		// No cached schedule covers today; fall through to chat so the bot
		// still answers something useful.
	}

	if schedule.IsScheduleLike(evt.Text) {
		if doc := schedule.Parse(evt.Text); doc != nil {
			d.saveSchedule(ctx, evt, doc)
			return
		}
		slog.Info("dispatch: schedule-like text failed to parse, treating as chat",
			"identity", evt.Identity)
	}

	d.chat(ctx, evt, evt.Text, nil, "")
}

func (d *Dispatcher) handleImage(ctx context.Context, evt webhook.Event) {
	if d.images == nil {
		return
	}
	img, err := d.images.Fetch(ctx, evt.MessageID)
	if err != nil {
		slog.Warn("dispatch: image fetch failed",
			"identity", evt.Identity, "message_id", evt.MessageID, "err", err)
		return
	}
	// Albums arrive as separate events; accumulate and answer once.
	d.collector.Add(evt.Identity, img)
}

// flushImages runs when an identity's image batch goes quiet. The reply
// token from the triggering events has long expired, so delivery uses push.
func (d *Dispatcher) flushImages(identity string, images []provider.Image) {
	ctx := context.Background()
	reply := d.responder.Respond(ctx, respond.Request{
		Identity:    identity,
		DisplayName: d.displayName(ctx, identity),
		Images:      images,
	})
	if err := d.replier.Push(ctx, identity, reply); err != nil {
		slog.Error("dispatch: push failed", "identity", identity, "err", err)
	}
}

func (d *Dispatcher) handleLocation(ctx context.Context, evt webhook.Event) {
	loc := evt.Location
	if loc == nil {
		return
	}
	grounding := fmt.Sprintf("공유된 위치: %s (%s), 좌표 %.5f,%.5f",
		loc.Title, loc.Address, loc.Latitude, loc.Longitude)
	d.chat(ctx, evt, "이 위치 근처에 대해 알려줘.", nil, grounding)
}

// chat runs the orchestrator and delivers the (possibly structured) reply.
func (d *Dispatcher) chat(ctx context.Context, evt webhook.Event, message string, images []provider.Image, grounding string) {
	reply := d.responder.Respond(ctx, respond.Request{
		Identity:    evt.Identity,
		DisplayName: d.displayName(ctx, evt.Identity),
		Message:     message,
		Images:      images,
		Grounding:   grounding,
	})

	if structured := reconcile.Reconcile(reply); structured != nil {
		reply = renderStructured(structured)
	}
	d.reply(ctx, evt, reply)
}

// lookupGroup renders the requested group from the schedule covering today,
// or "" when nothing cached matches.
func (d *Dispatcher) lookupGroup(ctx context.Context, evt webhook.Event, letter string) string {
	doc, err := d.schedules.Lookup(ctx, scheduleSource(evt), time.Now().In(d.loc))
	if err != nil {
		slog.Warn("dispatch: schedule lookup failed", "identity", evt.Identity, "err", err)
		return ""
	}
	if doc == nil {
		return ""
	}
	out, ok := schedule.FormatGroup(doc, letter)
	if !ok {
		return fmt.Sprintf("%s에는 %s조가 없어요.", doc.WeekLabel, letter)
	}
	return out
}

func (d *Dispatcher) saveSchedule(ctx context.Context, evt webhook.Event, doc *schedule.Document) {
	source := scheduleSource(evt)
	if err := d.schedules.Save(ctx, source, doc); err != nil {
		slog.Error("dispatch: schedule save failed", "source", source, "err", err)
		d.notifier.Notify(ctx, notify.Event{
			Kind:    notify.KindError,
			Target:  source,
			Message: fmt.Sprintf("schedule save failed: %v", err),
		})
		// Still confirm; the parse itself succeeded and the summary is
		// useful even if the cache write was not.
	}

	d.notifier.Notify(ctx, notify.Event{
		Kind:    notify.KindScheduleParsed,
		Target:  source,
		Message: fmt.Sprintf("%s (%s), %d groups", doc.WeekLabel, doc.Period, len(doc.Groups)),
	})

	var names []string
	for _, g := range doc.Groups {
		names = append(names, g.Name)
	}
	d.reply(ctx, evt, fmt.Sprintf(
		"%s 훈련표를 등록했어요! (%s)\n조 이름을 보내면 페이스표를 알려드릴게요: %s",
		doc.WeekLabel, strings.Join(names, ", "), "예) A조"))
}

func (d *Dispatcher) reply(ctx context.Context, evt webhook.Event, text string) {
	if err := d.replier.Reply(ctx, evt.ReplyToken, text); err != nil {
		slog.Warn("dispatch: reply failed, falling back to push",
			"identity", evt.Identity, "err", err)
		if err := d.replier.Push(ctx, evt.Identity, text); err != nil {
			slog.Error("dispatch: push fallback failed", "identity", evt.Identity, "err", err)
		}
	}
}

func (d *Dispatcher) displayName(ctx context.Context, identity string) string {
	if d.profiles == nil {
		return ""
	}
	name, err := d.profiles.DisplayName(ctx, identity)
	if err != nil {
		slog.Debug("dispatch: profile lookup failed", "identity", identity, "err", err)
		return ""
	}
	return name
}

// scheduleSource keys the schedule cache: group notices are shared by the
// room, direct messages by the sender.
func scheduleSource(evt webhook.Event) string {
	if evt.GroupID != "" {
		return evt.GroupID
	}
	return evt.Identity
}

// renderStructured flattens a reconciled reply back to plain text lines.
// The platform text-message surface has no card widget, so records render
// as a compact list.
func renderStructured(r *reconcile.Reply) string {
	var b strings.Builder
	if r.Lead != "" {
		b.WriteString(r.Lead)
	}
	for _, rec := range r.Records {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "📍 %s\n⭐ %s · %s\n%s\n%s",
			rec.Name, rec.Rating, rec.Price, rec.Highlight, rec.MapURL)
	}
	return b.String()
}
