package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "verify-secret")
	t.Setenv("WEBHOOK_QUEUE_PROCESSOR_URL", "https://processor.example.com/tasks")
	t.Setenv("WHATSAPP_MESSAGING_TOKEN", "wa-token")
	t.Setenv("WHATSAPP_PHONE_ID", "12345")
	t.Setenv("WHATSAPP_MESSAGE_LIMIT", "1000")
	t.Setenv("WHATSAPP_ACCOUNT_ID", "ACC1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_CHAT_MODEL", "gpt-4")
	t.Setenv("OPENAI_TRANSCRIPTION_MODEL", "whisper-1")
	t.Setenv("OPENAI_MAX_TOKENS", "4000")
	t.Setenv("OPENAI_MAX_RESPONSE_TOKENS", "500")
	t.Setenv("OPENAI_MESSAGE_TOKENS_PADDING", "10")
	t.Setenv("CONTACTS_WHITE_LIST", "+100, +200 ,+300")
	t.Setenv("MODERATOR_PHONE_LIST", "+900")
	t.Setenv("DISPATCH_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/1/dispatch")
	t.Setenv("DISPATCH_SERVICE_IDENTITY", "relay@example.com")
	t.Setenv("DISPATCH_SIGNING_SECRET", "signing-secret")
}

func TestLoadComplete(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.WhatsAppMessageLimit != 1000 {
		t.Fatalf("expected message limit 1000, got %d", cfg.WhatsAppMessageLimit)
	}
	if len(cfg.ContactsWhiteList) != 3 || cfg.ContactsWhiteList[1] != "+200" {
		t.Fatalf("expected trimmed allow-list entries, got %v", cfg.ContactsWhiteList)
	}
	if cfg.OpenAITranscriptionModel != "whisper-1" {
		t.Fatalf("expected transcription model whisper-1, got %s", cfg.OpenAITranscriptionModel)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing verify token")
	} else if !strings.Contains(err.Error(), "WEBHOOK_VERIFY_TOKEN") {
		t.Fatalf("expected error to name the missing key, got %v", err)
	}
}

func TestLoadBlankCountsAsAbsent(t *testing.T) {
	setRequired(t)
	t.Setenv("WHATSAPP_ACCOUNT_ID", "   ")
	if _, err := Load(); err == nil {
		t.Fatal("expected whitespace-only value to be treated as absent")
	}
}

func TestLoadNonNumeric(t *testing.T) {
	setRequired(t)
	t.Setenv("WHATSAPP_MESSAGE_LIMIT", "plenty")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for non-numeric limit")
	}
	if !strings.Contains(err.Error(), "WHATSAPP_MESSAGE_LIMIT") {
		t.Fatalf("expected error to name the bad key, got %v", err)
	}
}

func TestLoadTranscriptionModelConstraint(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_TRANSCRIPTION_MODEL", "whisper-2")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported transcription model")
	}
}

func TestLoadReportsAllProblems(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MAX_TOKENS", "lots")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") || !strings.Contains(err.Error(), "OPENAI_MAX_TOKENS") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestContactAllowed(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.ContactAllowed("+100") {
		t.Fatal("expected +100 to be allowed")
	}
	if cfg.ContactAllowed("+999") {
		t.Fatal("expected +999 to be rejected")
	}
}

func TestLoadListDropsEmptyEntries(t *testing.T) {
	setRequired(t)
	t.Setenv("MODERATOR_PHONE_LIST", " +900,, +901 ,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.ModeratorPhoneList) != 2 {
		t.Fatalf("expected 2 moderators, got %v", cfg.ModeratorPhoneList)
	}
}

func TestHasStaticAWSCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("AWS_ACCESS_KEY_ID", "test-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.HasStaticAWSCredentials() {
		t.Fatal("expected static credentials to be detected")
	}

	cfg.AWSSecretAccessKey = "  "
	if cfg.HasStaticAWSCredentials() {
		t.Fatal("a blank secret must disable the static provider")
	}
}
