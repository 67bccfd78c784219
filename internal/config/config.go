package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Supported commander / provider selectors.
const (
	CommanderTelegram = "telegram"
	CommanderDummy    = "dummy"

	ProviderOpenRouter = "openrouter"
	ProviderDummy      = "dummy"
)

// Config holds the full environment-driven configuration of the bot.
type Config struct {
	Commander     string `envconfig:"BOT_COMMANDER" default:"telegram"`
	ModelProvider string `envconfig:"BOT_MODEL_PROVIDER" default:"openrouter"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL   string `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`

	PollTimeout          int   `envconfig:"TG_POLL_TIMEOUT" default:"30"`
	SleepSeconds         int   `envconfig:"TG_SLEEP_SECONDS" default:"1"`
	DropPending          bool  `envconfig:"TG_DROP_PENDING" default:"true"`
	PendingWindowSeconds int64 `envconfig:"TG_PENDING_WINDOW_SECONDS" default:"600"`
	PendingMaxMessages   int   `envconfig:"TG_PENDING_MAX_MESSAGES" default:"50"`

	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`

	Model                 string  `envconfig:"LLM_MODEL" default:"openai/gpt-3.5-turbo"`
	Temperature           float32 `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	MaxTokens             int     `envconfig:"LLM_MAX_TOKENS" default:"500"`
	HistoryLimit          int     `envconfig:"CONVERSATION_HISTORY_LIMIT" default:"10"`
	RetryAttempts         int     `envconfig:"LLM_RETRY_ATTEMPTS" default:"3"`
	RetryDelaySeconds     int     `envconfig:"LLM_RETRY_DELAY_SECONDS" default:"1"`
	RequestTimeoutSeconds int     `envconfig:"LLM_REQUEST_TIMEOUT_SECONDS" default:"120"`

	SystemPrompt string `envconfig:"SYSTEM_PROMPT" default:"Ты — бот-ассистент для консультаций. Отвечай вежливо, кратко и по делу."`

	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	StatusPort   int    `envconfig:"STATUS_PORT" default:"0"`
	EventLogPath string `envconfig:"EVENT_LOG_PATH"`

	DummyCommanderScript string `envconfig:"DUMMY_COMMANDER_SCRIPT" default:"ok"`
	DummySendScript      string `envconfig:"DUMMY_SEND_SCRIPT" default:"ok"`
	DummyProviderScript  string `envconfig:"DUMMY_PROVIDER_SCRIPT" default:"ok"`
}

// Load reads configuration from environment variables. Credentials are
// required for the active commander and provider; a missing credential is a
// startup error, never a per-request condition.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Commander == CommanderTelegram && cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required in environment when BOT_COMMANDER=%s", CommanderTelegram)
	}
	if cfg.ModelProvider == ProviderOpenRouter && cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required in environment when BOT_MODEL_PROVIDER=%s", ProviderOpenRouter)
	}

	return &cfg, nil
}

// BotAPIBase returns the Telegram Bot API base URL including the token.
func (c *Config) BotAPIBase() string {
	return c.TelegramAPIURL + "/bot" + c.TelegramBotToken
}

// RetryDelay returns the fixed inter-attempt delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// RequestTimeout returns the completion call timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
