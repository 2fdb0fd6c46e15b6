package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string
	CatalogPath string

	TelegramToken string
	TelegramAPI   string
	TelegramPoll  int
	DiscordToken  string
	DiscordAPI    string
	DiscordWSURL  string

	DiscordApplicationID   string
	DiscordCommandGuildIDs string
	CommandSyncEnabled     bool

	LLMProvider      string // openai | anthropic
	LLMBaseURL       string
	LLMAPIKey        string
	LLMModel         string
	LLMFallbackModel string
	LLMMaxTokens     int
	LLMTemperature   float64
	LLMTimeoutSec    int
	LLMRetries       int
	SystemPrompt     string

	RateWindowSec      int
	RateThreshold      int
	MuteTiers          string
	ResetPolicy        string
	BlockLinks         bool
	ProfanityCSV       string
	ActuatorTimeoutSec int

	BufferSize       int
	GameAttempts     int
	GameIdleSec      int
	SweepIntervalSec int

	GreetingsEnabled bool
	GreetingSchedule string
	GreetingTimezone string

	DispatchLanes     int
	DispatchQueueSize int
	Seed              int64

	HeartbeatIntervalSec int
	HeartbeatStaleSec    int
	HeartbeatAlertRoom   string

	AdminAPIURL string
}

const defaultSystemPrompt = "You are a friendly companion in a group chat. Keep replies short, warm and playful. " +
	"Never share private information and never pretend to be a human moderator."

// LoadDotEnv loads variables from an env file without overriding values that
// are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func FromEnv() Config {
	dataDir := stringOrDefault("ROOM_COMPANION_DATA_DIR", "/data")
	dbPath := stringOrDefault("ROOM_COMPANION_DB_PATH", filepath.Join(dataDir, "room-companion", "meta.sqlite"))

	return Config{
		Environment: stringOrDefault("ROOM_COMPANION_ENV", "development"),
		HTTPAddr:    stringOrDefault("ROOM_COMPANION_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      dbPath,
		CatalogPath: strings.TrimSpace(os.Getenv("ROOM_COMPANION_CATALOG_FILE")),

		TelegramToken: strings.TrimSpace(os.Getenv("ROOM_COMPANION_TELEGRAM_TOKEN")),
		TelegramAPI:   stringOrDefault("ROOM_COMPANION_TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramPoll:  intOrDefault("ROOM_COMPANION_TELEGRAM_POLL_SECONDS", 25),
		DiscordToken:  strings.TrimSpace(os.Getenv("ROOM_COMPANION_DISCORD_TOKEN")),
		DiscordAPI:    stringOrDefault("ROOM_COMPANION_DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWSURL:  stringOrDefault("ROOM_COMPANION_DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),

		DiscordApplicationID:   strings.TrimSpace(os.Getenv("ROOM_COMPANION_DISCORD_APPLICATION_ID")),
		DiscordCommandGuildIDs: strings.TrimSpace(os.Getenv("ROOM_COMPANION_DISCORD_COMMAND_GUILD_IDS")),
		CommandSyncEnabled:     boolOrDefault("ROOM_COMPANION_COMMAND_SYNC", true),

		LLMProvider:      providerOrDefault("ROOM_COMPANION_LLM_PROVIDER", "openai"),
		LLMBaseURL:       strings.TrimSpace(os.Getenv("ROOM_COMPANION_LLM_BASE_URL")),
		LLMAPIKey:        strings.TrimSpace(os.Getenv("ROOM_COMPANION_LLM_API_KEY")),
		LLMModel:         strings.TrimSpace(os.Getenv("ROOM_COMPANION_LLM_MODEL")),
		LLMFallbackModel: strings.TrimSpace(os.Getenv("ROOM_COMPANION_LLM_FALLBACK_MODEL")),
		LLMMaxTokens:     intOrDefault("ROOM_COMPANION_LLM_MAX_TOKENS", 150),
		LLMTemperature:   floatOrDefault("ROOM_COMPANION_LLM_TEMPERATURE", 0.8),
		LLMTimeoutSec:    intOrDefault("ROOM_COMPANION_LLM_TIMEOUT_SECONDS", 8),
		LLMRetries:       countOrDefault("ROOM_COMPANION_LLM_RETRIES", 0),
		SystemPrompt:     stringOrDefault("ROOM_COMPANION_SYSTEM_PROMPT", defaultSystemPrompt),

		RateWindowSec:      intOrDefault("ROOM_COMPANION_RATE_WINDOW_SECONDS", 10),
		RateThreshold:      intOrDefault("ROOM_COMPANION_RATE_THRESHOLD", 5),
		MuteTiers:          stringOrDefault("ROOM_COMPANION_MUTE_TIERS", "3:10m,3:1h,3:24h"),
		ResetPolicy:        resetPolicyOrDefault("ROOM_COMPANION_RESET_POLICY", "forgive"),
		BlockLinks:         boolOrDefault("ROOM_COMPANION_BLOCK_LINKS", true),
		ProfanityCSV:       strings.TrimSpace(os.Getenv("ROOM_COMPANION_PROFANITY")),
		ActuatorTimeoutSec: intOrDefault("ROOM_COMPANION_ACTUATOR_TIMEOUT_SECONDS", 5),

		BufferSize:       intOrDefault("ROOM_COMPANION_BUFFER_SIZE", 20),
		GameAttempts:     intOrDefault("ROOM_COMPANION_GAME_ATTEMPTS", 3),
		GameIdleSec:      intOrDefault("ROOM_COMPANION_GAME_IDLE_SECONDS", 1800),
		SweepIntervalSec: intOrDefault("ROOM_COMPANION_SWEEP_INTERVAL_SECONDS", 60),

		GreetingsEnabled: boolOrDefault("ROOM_COMPANION_GREETINGS_ENABLED", false),
		GreetingSchedule: stringOrDefault("ROOM_COMPANION_GREETING_SCHEDULE", "0 8,13,19,22 * * *"),
		GreetingTimezone: stringOrDefault("ROOM_COMPANION_GREETING_TIMEZONE", "UTC"),

		DispatchLanes:     intOrDefault("ROOM_COMPANION_DISPATCH_LANES", 8),
		DispatchQueueSize: intOrDefault("ROOM_COMPANION_DISPATCH_QUEUE_SIZE", 64),
		Seed:              int64OrDefault("ROOM_COMPANION_SEED", 0),

		HeartbeatIntervalSec: intOrDefault("ROOM_COMPANION_HEARTBEAT_INTERVAL_SECONDS", 30),
		HeartbeatStaleSec:    intOrDefault("ROOM_COMPANION_HEARTBEAT_STALE_SECONDS", 120),
		HeartbeatAlertRoom:   strings.TrimSpace(os.Getenv("ROOM_COMPANION_HEARTBEAT_ALERT_ROOM")),

		AdminAPIURL: stringOrDefault("ROOM_COMPANION_ADMIN_API_URL", "http://localhost:8080"),
	}
}

// ProfanityList splits the configured CSV into trimmed, lowercased words.
func (c Config) ProfanityList() []string {
	if strings.TrimSpace(c.ProfanityCSV) == "" {
		return nil
	}
	parts := strings.Split(c.ProfanityCSV, ",")
	words := make([]string, 0, len(parts))
	for _, part := range parts {
		word := strings.ToLower(strings.TrimSpace(part))
		if word != "" {
			words = append(words, word)
		}
	}
	return words
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

// countOrDefault is intOrDefault for values where zero is meaningful.
func countOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func int64OrDefault(name string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func providerOrDefault(name, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case "openai", "anthropic":
		return value
	default:
		return fallback
	}
}

func resetPolicyOrDefault(name, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case "forgive", "restore":
		return value
	default:
		return fallback
	}
}

func floatOrDefault(name string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
