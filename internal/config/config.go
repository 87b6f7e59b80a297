package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	// HTTP server
	Port int `env:"PORT" envDefault:"8000"`

	// LLM settings
	LLMProvider        LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey       string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string      `env:"OPENAI_BASE_URL"`
	OpenAIModel        string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	TranscriptionModel string      `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	YandexOAuthToken   string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID     string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Storage
	ConversationsDir string `env:"CONVERSATIONS_DIR" envDefault:"conversations"`

	// Notifications (optional; empty token disables the notifier)
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	AdminChatID      int64  `env:"ADMIN_CHAT_ID"`
	DailyDigest      bool   `env:"DAILY_DIGEST" envDefault:"false"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
