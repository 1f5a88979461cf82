package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// TranscriptionModel is the only speech-to-text model the relay supports.
// Startup fails when OPENAI_TRANSCRIPTION_MODEL names anything else.
const TranscriptionModel = "whisper-1"

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	WebhookVerifyToken     string
	QueueProcessorURL      string
	WhatsAppMessagingToken string
	WhatsAppPhoneID        string
	WhatsAppMessageLimit   int
	WhatsAppAccountID      string

	OpenAIAPIKey               string
	OpenAIChatModel            string
	OpenAITranscriptionModel   string
	OpenAIMaxTokens            int
	OpenAIMaxResponseTokens    int
	OpenAIMessageTokensPadding int

	ContactsWhiteList  []string
	ModeratorPhoneList []string

	AWSRegion               string
	AWSAccessKeyID          string
	AWSSecretAccessKey      string
	AWSEndpointOverride     string
	ContactsTable           string
	MessagesTable           string
	DispatchQueueURL        string
	DispatchServiceIdentity string
	DispatchSigningSecret   string
}

// Load reads configuration from environment variables. Required values that
// are missing or malformed make Load fail so the process never starts
// serving traffic with a partial configuration.
func Load() (*Config, error) {
	l := &loader{}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WebhookVerifyToken:     l.require("WEBHOOK_VERIFY_TOKEN"),
		QueueProcessorURL:      l.require("WEBHOOK_QUEUE_PROCESSOR_URL"),
		WhatsAppMessagingToken: l.require("WHATSAPP_MESSAGING_TOKEN"),
		WhatsAppPhoneID:        l.require("WHATSAPP_PHONE_ID"),
		WhatsAppMessageLimit:   l.requireInt("WHATSAPP_MESSAGE_LIMIT"),
		WhatsAppAccountID:      l.require("WHATSAPP_ACCOUNT_ID"),

		OpenAIAPIKey:               l.require("OPENAI_API_KEY"),
		OpenAIChatModel:            l.require("OPENAI_CHAT_MODEL"),
		OpenAITranscriptionModel:   l.requireLiteral("OPENAI_TRANSCRIPTION_MODEL", TranscriptionModel),
		OpenAIMaxTokens:            l.requireInt("OPENAI_MAX_TOKENS"),
		OpenAIMaxResponseTokens:    l.requireInt("OPENAI_MAX_RESPONSE_TOKENS"),
		OpenAIMessageTokensPadding: l.requireInt("OPENAI_MESSAGE_TOKENS_PADDING"),

		ContactsWhiteList:  l.requireList("CONTACTS_WHITE_LIST"),
		ModeratorPhoneList: l.requireList("MODERATOR_PHONE_LIST"),

		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:     getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ContactsTable:           getEnv("CONTACTS_TABLE", "contacts"),
		MessagesTable:           getEnv("MESSAGES_TABLE", "messages"),
		DispatchQueueURL:        l.require("DISPATCH_QUEUE_URL"),
		DispatchServiceIdentity: l.require("DISPATCH_SERVICE_IDENTITY"),
		DispatchSigningSecret:   l.require("DISPATCH_SIGNING_SECRET"),
	}

	if err := l.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ContactAllowed reports whether a sender identifier is in the allow-list.
func (c *Config) ContactAllowed(contactID string) bool {
	for _, allowed := range c.ContactsWhiteList {
		if allowed == contactID {
			return true
		}
	}
	return false
}

// HasStaticAWSCredentials reports whether both static credential values are
// present, so callers can fall back to the SDK's default chain otherwise.
func (c *Config) HasStaticAWSCredentials() bool {
	return strings.TrimSpace(c.AWSAccessKeyID) != "" && strings.TrimSpace(c.AWSSecretAccessKey) != ""
}

// loader accumulates validation problems so Load can report all of them at
// once instead of failing on the first missing variable.
type loader struct {
	problems []string
}

func (l *loader) require(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		l.problems = append(l.problems, key+" is required")
	}
	return value
}

func (l *loader) requireInt(key string) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		l.problems = append(l.problems, key+" is required")
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		l.problems = append(l.problems, key+" must be numeric, got "+strconv.Quote(raw))
		return 0
	}
	return value
}

func (l *loader) requireLiteral(key, want string) string {
	value := l.require(key)
	if value != "" && value != want {
		l.problems = append(l.problems, key+" must be "+strconv.Quote(want)+", got "+strconv.Quote(value))
	}
	return value
}

func (l *loader) requireList(key string) []string {
	raw := l.require(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		l.problems = append(l.problems, key+" must contain at least one entry")
	}
	return values
}

func (l *loader) err() error {
	if len(l.problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid environment: %s", strings.Join(l.problems, "; "))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
