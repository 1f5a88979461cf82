package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garusis/marcos-assistant/pkg/logging"
)

// dispatchDelay gives the synchronous pipeline (including any audio
// transcription acknowledgment) time to settle before the downstream
// processor reads the history.
const dispatchDelay = 10 * time.Second

// tokenTTL bounds the validity of the callback identity token.
const tokenTTL = 15 * time.Minute

type queueClient interface {
	Send(ctx context.Context, body string, delay time.Duration) error
}

// Scheduler enqueues deferred processing tasks referencing the contact and
// message identifiers of a freshly recorded inbound message.
type Scheduler struct {
	queue       queueClient
	callbackURL string
	identity    string
	secret      []byte
	logger      *logging.Logger
	now         func() time.Time
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Queue queueClient
	// CallbackURL is the queue-processor endpoint the task is delivered to.
	CallbackURL string
	// ServiceIdentity names the relay in the signed token (issuer/subject).
	ServiceIdentity string
	// SigningSecret is the HS256 key shared with the callback endpoint.
	SigningSecret string
	Logger        *logging.Logger
}

// NewScheduler creates a queue-backed dispatch scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if cfg.CallbackURL == "" {
		panic("dispatch: callback URL cannot be empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		queue:       cfg.Queue,
		callbackURL: cfg.CallbackURL,
		identity:    cfg.ServiceIdentity,
		secret:      []byte(cfg.SigningSecret),
		logger:      logger,
		now:         time.Now,
	}
}

// Schedule submits one deferred callback task for the given contact and
// message pair. Submission failure propagates to the caller's error
// boundary; nothing is retried here.
func (s *Scheduler) Schedule(ctx context.Context, contactID, messageID string) error {
	body, err := json.Marshal(taskBody{ContactID: contactID, MessageID: messageID})
	if err != nil {
		return fmt.Errorf("dispatch: failed to encode task body: %w", err)
	}

	token, err := s.signToken()
	if err != nil {
		return err
	}

	task := CallbackTask{
		URL:         s.callbackURL,
		Method:      http.MethodPost,
		ContentType: "application/json",
		Body:        body,
		Token:       token,
	}
	encoded, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("dispatch: failed to encode task: %w", err)
	}

	if err := s.queue.Send(ctx, string(encoded), dispatchDelay); err != nil {
		return fmt.Errorf("dispatch: failed to enqueue task: %w", err)
	}

	s.logger.Debug("dispatch task enqueued",
		"contact_id", contactID,
		"message_id", messageID,
		"delay", dispatchDelay.String(),
	)
	return nil
}

// signToken mints a short-lived identity token whose audience is the
// callback URL, so the receiving endpoint can verify both origin and
// intended target.
func (s *Scheduler) signToken() (string, error) {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.identity,
		Subject:   s.identity,
		Audience:  jwt.ClaimStrings{s.callbackURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("dispatch: failed to sign identity token: %w", err)
	}
	return token, nil
}
