// Package app provides the main Kaimu application wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bdobrica/Kaimu/common/redact"
	"github.com/bdobrica/Kaimu/internal/kaimu/memory"
	"github.com/bdobrica/Kaimu/internal/kaimu/notify"
	"github.com/bdobrica/Kaimu/internal/kaimu/platform"
	"github.com/bdobrica/Kaimu/internal/kaimu/prompt"
	"github.com/bdobrica/Kaimu/internal/kaimu/provider"
	"github.com/bdobrica/Kaimu/internal/kaimu/respond"
	"github.com/bdobrica/Kaimu/internal/kaimu/schedule"
	"github.com/bdobrica/Kaimu/internal/kaimu/usage"
	"github.com/bdobrica/Kaimu/internal/kaimu/webhook"
)

// Config holds application configuration, assembled from the environment
// in cmd/kaimu.
type Config struct {
	// HTTPAddr is the TCP address for the HTTP server hosting the webhook
	// callback and health endpoints, e.g. ":8080".
	HTTPAddr string

	// DatabasePath is the SQLite file backing the schedule cache.
	DatabasePath string

	// PersonaPath points at the persona YAML document. Empty runs the bot
	// without a system instruction.
	PersonaPath string

	// ChannelSecret verifies inbound webhook signatures.
	ChannelSecret string
	// ChannelAccessToken authenticates outbound platform calls.
	ChannelAccessToken string

	// Gemini is the primary provider configuration; an empty APIKey
	// disables the primary entirely.
	Gemini provider.GeminiConfig
	// StandardModel and ReducedModel are the primary tier models.
	StandardModel string
	ReducedModel  string

	// Chat is the OpenAI-compatible secondary; an empty APIKey disables it.
	Chat provider.ChatConfig
	// ChatModels is the ordered secondary model preference list.
	ChatModels []string

	// UsageThreshold and UsageCap tune the daily primary-tier counter.
	// Zero values use the package defaults.
	UsageThreshold int
	UsageCap       int

	// MemoryMaxPairs and MemoryTTL tune conversation memory. Zero values
	// use the package defaults.
	MemoryMaxPairs int
	MemoryTTL      time.Duration

	// WebhookRateLimit is events per identity per minute; zero uses
	// webhook.DefaultRateLimit.
	WebhookRateLimit int

	// BatchQuiet is the image debounce interval; zero uses batch.DefaultQuiet.
	BatchQuiet time.Duration

	// Matrix configures operator notifications. An empty OpsRoomID
	// disables them.
	Matrix    notify.MatrixConfig
	OpsRoomID string
}

// App owns every long-lived component.
type App struct {
	config    *Config
	loc       *time.Location
	tracker   *usage.Tracker
	history   *memory.History
	schedules *schedule.Store
	notifier  notify.Notifier
	health    *HealthServer
}

// New wires the application. Nothing starts listening until Run.
func New(config *Config) (*App, error) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*60*60)
	}

	var persona *prompt.Persona
	if config.PersonaPath != "" {
		data, err := os.ReadFile(config.PersonaPath)
		if err != nil {
			return nil, fmt.Errorf("app: failed to read persona file: %w", err)
		}
		persona, err = prompt.ParsePersona(data)
		if err != nil {
			return nil, fmt.Errorf("app: invalid persona: %w", err)
		}
		slog.Info("persona loaded", "name", persona.Name)
	}

	tracker := usage.NewTracker(usage.Config{
		Threshold: config.UsageThreshold,
		Cap:       config.UsageCap,
		Location:  loc,
	})

	memCfg := memory.DefaultConfig()
	if config.MemoryMaxPairs > 0 {
		memCfg.MaxPairs = config.MemoryMaxPairs
	}
	if config.MemoryTTL > 0 {
		memCfg.TTL = config.MemoryTTL
	}
	history := memory.NewHistory(memCfg)

	gateway := provider.NewGateway(provider.Config{
		Gemini:        config.Gemini,
		StandardModel: config.StandardModel,
		ReducedModel:  config.ReducedModel,
		Chat:          config.Chat,
		ChatModels:    config.ChatModels,
	})
	if !gateway.HasProvider() {
		return nil, fmt.Errorf("app: no response provider configured; set GEMINI_API_KEY or CHAT_API_KEY")
	}
	slog.Info("provider gateway ready",
		"gemini_key", redact.Mask(config.Gemini.APIKey),
		"chat_key", redact.Mask(config.Chat.APIKey))

	var notifier notify.Notifier = notify.Noop{}
	if config.OpsRoomID != "" {
		mc, err := notify.NewMatrixClient(config.Matrix)
		if err != nil {
			return nil, fmt.Errorf("app: failed to create Matrix notifier: %w", err)
		}
		notifier = notify.NewMatrixNotifier(mc, config.OpsRoomID)
		slog.Info("operator notifications enabled", "room", config.OpsRoomID)
	}

	slog.Info("opening schedule database", "path", config.DatabasePath)
	schedules, err := schedule.NewStore(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: failed to open schedule store: %w", err)
	}

	orchestrator := respond.New(respond.Config{
		History:  history,
		Tracker:  tracker,
		Gateway:  gateway,
		Persona:  persona,
		Notifier: notifier,
		Location: loc,
	})

	client := platform.New(platform.Config{AccessToken: config.ChannelAccessToken})

	dispatcher := NewDispatcher(DispatcherConfig{
		Responder:  orchestrator,
		Schedules:  schedules,
		Replier:    client,
		Profiles:   client,
		Images:     client,
		Notifier:   notifier,
		BatchQuiet: config.BatchQuiet,
		Location:   loc,
	})

	receiver := webhook.New(webhook.Config{
		ChannelSecret: config.ChannelSecret,
		RateLimit:     config.WebhookRateLimit,
	}, dispatcher)

	app := &App{
		config:    config,
		loc:       loc,
		tracker:   tracker,
		history:   history,
		schedules: schedules,
		notifier:  notifier,
	}
	app.health = NewHealthServer(config.HTTPAddr, app)
	receiver.RegisterRoutes(app.health)

	return app, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.health.Start(ctx); err != nil {
		return err
	}

	a.notifier.Notify(ctx, notify.Event{
		Kind:    notify.KindStartup,
		Message: "kaimu is up",
	})

	go a.usageReportLoop(ctx)

	slog.Info("kaimu running", "addr", a.config.HTTPAddr)
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// Stop releases long-lived resources.
func (a *App) Stop() {
	a.health.Stop()
	if err := a.schedules.Close(); err != nil {
		slog.Warn("failed to close schedule store", "err", err)
	}
}

// usageReportLoop posts the daily usage summary to the operator room just
// before the counter's date rollover.
func (a *App) usageReportLoop(ctx context.Context) {
	for {
		now := time.Now().In(a.loc)
		next := time.Date(now.Year(), now.Month(), now.Day(), 23, 55, 0, 0, a.loc)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			a.notifier.Notify(ctx, notify.Event{
				Kind:    notify.KindUsageReport,
				Message: a.tracker.StatusReport(),
			})
		}
	}
}

// UsageReport implements statsProvider for the status endpoint.
func (a *App) UsageReport() string {
	return a.tracker.StatusReport()
}

// ActiveConversations implements statsProvider.
func (a *App) ActiveConversations() int {
	return a.history.Len()
}
