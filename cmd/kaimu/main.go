package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bdobrica/Kaimu/common/environment"
	"github.com/bdobrica/Kaimu/common/version"
	"github.com/bdobrica/Kaimu/internal/kaimu/app"
	"github.com/bdobrica/Kaimu/internal/kaimu/notify"
	"github.com/bdobrica/Kaimu/internal/kaimu/provider"
)

func main() {
	fmt.Printf("Kaimu Running-Crew Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kaimu, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Kaimu: %v\n", err)
		os.Exit(1)
	}
	defer kaimu.Stop()

	if err := kaimu.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Kaimu: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig assembles application configuration from environment variables.
func loadConfig() (*app.Config, error) {
	channelSecret, err := environment.RequiredString("CHANNEL_SECRET")
	if err != nil {
		return nil, err
	}
	channelToken, err := environment.RequiredString("CHANNEL_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		HTTPAddr:     environment.StringOr("HTTP_ADDR", ":8080"),
		DatabasePath: environment.StringOr("DATABASE_PATH", "./kaimu.db"),
		PersonaPath:  environment.StringOr("PERSONA_PATH", ""),

		ChannelSecret:      channelSecret,
		ChannelAccessToken: channelToken,

		Gemini: provider.GeminiConfig{
			APIKey:  environment.StringOr("GEMINI_API_KEY", ""),
			BaseURL: environment.StringOr("GEMINI_BASE_URL", ""),
		},
		StandardModel: environment.StringOr("GEMINI_STANDARD_MODEL", ""),
		ReducedModel:  environment.StringOr("GEMINI_REDUCED_MODEL", ""),

		Chat: provider.ChatConfig{
			APIKey:  environment.StringOr("CHAT_API_KEY", ""),
			BaseURL: environment.StringOr("CHAT_BASE_URL", ""),
		},
		ChatModels: environment.StringSliceOr("CHAT_MODELS", nil),

		UsageThreshold: environment.IntOr("USAGE_THRESHOLD", 0),
		UsageCap:       environment.IntOr("USAGE_CAP", 0),

		MemoryMaxPairs: environment.IntOr("MEMORY_MAX_PAIRS", 0),
		MemoryTTL:      environment.DurationOr("MEMORY_TTL", 0),

		WebhookRateLimit: environment.IntOr("WEBHOOK_RATE_LIMIT", 0),
		BatchQuiet:       environment.DurationOr("IMAGE_BATCH_QUIET", 2*time.Second),

		Matrix: notify.MatrixConfig{
			Homeserver:  environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:      environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken: environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
		},
		OpsRoomID: environment.StringOr("MATRIX_OPS_ROOM", ""),
	}, nil
}
