package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/garusis/marcos-assistant/pkg/logging"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v16.0"
	defaultHTTPTimeout  = 30 * time.Second
)

var sendTracer = otel.Tracer("assistant.internal.whatsapp.send")

// Client talks to the WhatsApp Cloud (Meta Graph) API on behalf of one
// business phone number.
type Client struct {
	accessToken  string
	phoneID      string
	graphAPIBase string
	moderators   []string
	httpClient   *http.Client
	logger       *logging.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	AccessToken string
	PhoneID     string
	// Moderators receive the unauthorized-contact notifications.
	Moderators []string
	Logger     *logging.Logger
}

// NewClient creates a new Graph API client.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		accessToken:  cfg.AccessToken,
		phoneID:      cfg.PhoneID,
		graphAPIBase: defaultGraphAPIBase,
		moderators:   cfg.Moderators,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		logger:       logger,
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = base
}

// SendMessage sends a plain text message and returns the provider-assigned
// message ID.
func (c *Client) SendMessage(ctx context.Context, to, text string) (string, error) {
	ctx, span := sendTracer.Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.to", to))

	req := SendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &SendText{PreviewURL: true, Body: text},
	}
	var resp SendResponse
	if err := c.post(ctx, fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneID), req, &resp); err != nil {
		span.RecordError(err)
		return "", err
	}
	if resp.Error != nil {
		err := fmt.Errorf("whatsapp: API error %d: %s", resp.Error.Code, resp.Error.Message)
		span.RecordError(err)
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", errors.New("whatsapp: send response carried no message id")
	}
	return resp.Messages[0].ID, nil
}

// MarkAsRead flags an inbound message as read so the sender sees the
// double blue check.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	req := MarkReadRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	}
	var resp SendResponse
	if err := c.post(ctx, fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneID), req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("whatsapp: API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return nil
}

// MediaMetadata resolves a media ID into its download descriptor.
func (c *Client) MediaMetadata(ctx context.Context, mediaID string) (*MediaMetadata, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.graphAPIBase, mediaID), nil)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create media request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: fetch media metadata: %w", err)
	}
	defer resp.Body.Close()

	var meta MediaMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("whatsapp: decode media metadata: %w", err)
	}
	if meta.Error != nil {
		return nil, fmt.Errorf("whatsapp: API error %d: %s", meta.Error.Code, meta.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whatsapp: unexpected status %d fetching media metadata", resp.StatusCode)
	}
	return &meta, nil
}

// DownloadMedia streams the binary content behind a media URL. The caller
// owns the returned reader and must close it.
func (c *Client) DownloadMedia(ctx context.Context, url string) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create download request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: download media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("whatsapp: unexpected status %d downloading media", resp.StatusCode)
	}
	return resp.Body, nil
}

// FetchMedia resolves a media ID and returns its binary stream in one step.
func (c *Client) FetchMedia(ctx context.Context, mediaID string) (io.ReadCloser, error) {
	meta, err := c.MediaMetadata(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	return c.DownloadMedia(ctx, meta.URL)
}

// NotifyUnauthorized tells every moderator that an unknown number tried to
// reach the assistant. Each send is best-effort; one failing moderator does
// not block the rest.
func (c *Client) NotifyUnauthorized(ctx context.Context, contactID string) {
	text := fmt.Sprintf("El número %s ha intentado escribirme y no está en la lista de contactos válidos. Podrias revisar?", contactID)
	for _, moderator := range c.moderators {
		if _, err := c.SendMessage(ctx, moderator, text); err != nil {
			c.logger.Warn("failed to notify moderator", "error", err, "moderator", moderator)
		}
	}
}

func (c *Client) post(ctx context.Context, url string, payload any, out *SendResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("whatsapp: perform request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("whatsapp: read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("whatsapp: unmarshal response: %w", err)
	}
	if out.Error == nil && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
