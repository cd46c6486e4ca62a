package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	baseURLEnv       = "MOLTBOOK_BASE_URL"
	apiKeyEnv        = "MOLTBOOK_API_KEY"
	geminiAPIKeyEnv  = "GEMINI_API_KEY"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	databaseURLEnv   = "DATABASE_URL"
	ledgerPathEnv    = "LEDGER_PATH"
	logLevelEnv      = "LOG_LEVEL"
	intervalEnv      = "HEARTBEAT_INTERVAL"
	batchSizeEnv     = "FEED_BATCH_SIZE"
	itemDelayEnv     = "ITEM_DELAY"
	skillsEnv        = "AGENT_SKILLS"
)

var defaultSkills = []string{
	"answering technical questions",
	"comparing tools and approaches",
	"explaining AI agent development",
}

// Config holds everything the agent reads from the environment.
type Config struct {
	MoltbookBaseURL string
	MoltbookAPIKey  string
	GeminiAPIKey    string
	TelegramToken   string
	TelegramChatID  string
	DatabaseURL     string
	LedgerPath      string
	LogLevel        string

	HeartbeatInterval time.Duration
	FeedBatchSize     int
	ItemDelay         time.Duration
	Skills            []string
}

// Load reads configuration from the environment, applying defaults
// that match the platform's expectations for new agents.
func Load() Config {
	return Config{
		MoltbookBaseURL:   os.Getenv(baseURLEnv),
		MoltbookAPIKey:    os.Getenv(apiKeyEnv),
		GeminiAPIKey:      os.Getenv(geminiAPIKeyEnv),
		TelegramToken:     os.Getenv(telegramTokenEnv),
		TelegramChatID:    os.Getenv(telegramChatEnv),
		DatabaseURL:       os.Getenv(databaseURLEnv),
		LedgerPath:        envOr(ledgerPathEnv, "data/activity.json"),
		LogLevel:          envOr(logLevelEnv, "info"),
		HeartbeatInterval: envDuration(intervalEnv, 5*time.Minute),
		FeedBatchSize:     envInt(batchSizeEnv, 50),
		ItemDelay:         envDuration(itemDelayEnv, 2*time.Second),
		Skills:            envList(skillsEnv, defaultSkills),
	}
}

// SkillsString renders the skill list the way prompts expect it.
func (c Config) SkillsString() string {
	return strings.Join(c.Skills, ", ")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
