package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/garusis/marcos-assistant/internal/history"
	"github.com/garusis/marcos-assistant/internal/ingest"
	observemetrics "github.com/garusis/marcos-assistant/internal/observability/metrics"
	"github.com/garusis/marcos-assistant/internal/whatsapp"
	"github.com/garusis/marcos-assistant/pkg/logging"
)

var webhookTracer = otel.Tracer("assistant.internal.http.handlers.whatsapp")

// User-facing copy kept verbatim so the assistant keeps her voice.
const (
	apologyMessage     = "¡Ups! Algo no está bien 🤒. Por favor, contacta al soporte técnico para que puedan resolver la situación lo más pronto posible."
	unsupportedMessage = "Lo siento, no puedo entender este tipo de mensajes"
)

type contentExtractor interface {
	Extract(ctx context.Context, msg whatsapp.InboundMessage) (string, error)
}

type historyRecorder interface {
	Append(ctx context.Context, msg whatsapp.InboundMessage, text string, contacts []whatsapp.WebhookContact) (*history.MessageRecord, error)
}

type dispatchScheduler interface {
	Schedule(ctx context.Context, contactID, messageID string) error
}

type messengerClient interface {
	SendMessage(ctx context.Context, to, text string) (string, error)
	MarkAsRead(ctx context.Context, messageID string) error
	NotifyUnauthorized(ctx context.Context, contactID string)
}

// WhatsAppWebhookHandler handles the Cloud API verification handshake and
// inbound event deliveries, sequencing the ingestion pipeline with one
// error boundary.
type WhatsAppWebhookHandler struct {
	extractor  contentExtractor
	history    historyRecorder
	dispatcher dispatchScheduler
	messenger  messengerClient
	logger     *logging.Logger
	metrics    *observemetrics.RelayMetrics

	verifyToken string
	accountID   string
	allowed     func(contactID string) bool
}

// WhatsAppWebhookConfig wires a WhatsAppWebhookHandler.
type WhatsAppWebhookConfig struct {
	Extractor  contentExtractor
	History    historyRecorder
	Dispatcher dispatchScheduler
	Messenger  messengerClient
	Logger     *logging.Logger
	Metrics    *observemetrics.RelayMetrics

	VerifyToken string
	AccountID   string
	// ContactAllowed reports whether a sender may use the assistant.
	ContactAllowed func(contactID string) bool
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.ContactAllowed == nil {
		cfg.ContactAllowed = func(string) bool { return false }
	}
	return &WhatsAppWebhookHandler{
		extractor:   cfg.Extractor,
		history:     cfg.History,
		dispatcher:  cfg.Dispatcher,
		messenger:   cfg.Messenger,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		verifyToken: cfg.VerifyToken,
		accountID:   cfg.AccountID,
		allowed:     cfg.ContactAllowed,
	}
}

// HandleVerification answers Meta's GET subscription handshake. The check
// is pure: the challenge is echoed only when both the mode and the token
// match, and nothing else happens either way.
func (h *WhatsAppWebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") != "subscribe" || query.Get("hub.verify_token") != h.verifyToken {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	fmt.Fprint(w, query.Get("hub.challenge"))
}

// HandleEvents processes POST webhook deliveries. The response is 200 with
// an empty body for every decodable payload, whatever happens inside the
// pipeline, so the provider never retry-storms on application errors it
// cannot fix.
func (h *WhatsAppWebhookHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var event whatsapp.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	outcome := h.handleEvent(r.Context(), event)

	if h.metrics != nil {
		h.metrics.ObserveInbound(outcome)
		h.metrics.ObservePipelineLatency(time.Since(start).Seconds())
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WhatsAppWebhookHandler) handleEvent(ctx context.Context, event whatsapp.WebhookEvent) string {
	ctx, span := webhookTracer.Start(ctx, "whatsapp.webhook.event")
	defer span.End()

	if len(event.Entry) == 0 {
		return "empty"
	}
	entry := event.Entry[0]

	// Cross-tenant guard: events for another business account are
	// silently dropped.
	if entry.ID != h.accountID {
		h.logger.Warn("dropping event for foreign account", "account_id", entry.ID)
		return "account_mismatch"
	}

	var change *whatsapp.Change
	for i := range entry.Changes {
		if len(entry.Changes[i].Value.Messages) > 0 {
			change = &entry.Changes[i]
			break
		}
	}
	if change == nil {
		// Status callbacks and other non-message events.
		return "no_messages"
	}

	// Only the first message of the first qualifying change is handled;
	// the rest of the batch is dropped. Known limitation.
	msg := change.Value.Messages[0]
	contacts := change.Value.Contacts
	span.SetAttributes(
		attribute.String("assistant.contact_id", msg.From),
		attribute.String("assistant.message_id", msg.ID),
		attribute.String("assistant.message_type", msg.Type),
	)

	if !h.allowed(msg.From) {
		h.messenger.NotifyUnauthorized(ctx, msg.From)
		h.logger.Info("rejected message from unauthorized contact", "contact_id", msg.From)
		return "unauthorized"
	}

	outcome, err := h.process(ctx, msg, contacts)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("inbound pipeline failed", "error", err, "message_id", msg.ID, "contact_id", msg.From)
		if _, sendErr := h.messenger.SendMessage(ctx, msg.From, apologyMessage); sendErr != nil {
			h.logger.Error("failed to send apology", "error", sendErr, "contact_id", msg.From)
		} else if h.metrics != nil {
			h.metrics.ObserveOutbound("apology")
		}
		return "failed"
	}
	return outcome
}

// process runs the post-authorization pipeline. Every stage error is
// returned to the single boundary in handleEvent; nothing is retried here.
func (h *WhatsAppWebhookHandler) process(ctx context.Context, msg whatsapp.InboundMessage, contacts []whatsapp.WebhookContact) (string, error) {
	if err := h.messenger.MarkAsRead(ctx, msg.ID); err != nil {
		return "", fmt.Errorf("mark message as read: %w", err)
	}

	text, err := h.extractor.Extract(ctx, msg)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedContent) {
			if _, sendErr := h.messenger.SendMessage(ctx, msg.From, unsupportedMessage); sendErr != nil {
				return "", fmt.Errorf("notify unsupported content: %w", sendErr)
			}
			if h.metrics != nil {
				h.metrics.ObserveOutbound("unsupported")
			}
			return "unsupported", nil
		}
		return "", fmt.Errorf("extract content: %w", err)
	}

	record, err := h.history.Append(ctx, msg, text, contacts)
	if err != nil {
		return "", fmt.Errorf("append history: %w", err)
	}

	// Record and task are one logical step: a stored message always gets
	// an enqueue attempt.
	if err := h.dispatcher.Schedule(ctx, record.ContactID, record.MessageID); err != nil {
		return "", fmt.Errorf("schedule dispatch: %w", err)
	}
	if h.metrics != nil {
		h.metrics.ObserveTaskEnqueued()
	}

	return "processed", nil
}
