package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/garusis/marcos-assistant/internal/whatsapp"
	"github.com/garusis/marcos-assistant/pkg/logging"
)

// ErrUnsupportedContent signals a message type the relay cannot turn into
// text. Callers must treat it as "no content", which is different from an
// empty extracted string.
var ErrUnsupportedContent = errors.New("ingest: unsupported content type")

type mediaFetcher interface {
	FetchMedia(ctx context.Context, mediaID string) (io.ReadCloser, error)
}

type transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

type messenger interface {
	SendMessage(ctx context.Context, to, text string) (string, error)
}

// Extractor converts a raw inbound message into plain text, branching on
// the declared content type.
type Extractor struct {
	media       mediaFetcher
	transcriber transcriber
	messenger   messenger
	logger      *logging.Logger
}

// NewExtractor creates a content extractor.
func NewExtractor(media mediaFetcher, transcriber transcriber, messenger messenger, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{
		media:       media,
		transcriber: transcriber,
		messenger:   messenger,
		logger:      logger,
	}
}

// Extract returns the plain-text content of msg. Audio messages are
// transcribed and acknowledged to the sender with the transcript before
// the text is returned; the acknowledgment happens regardless of what the
// rest of the pipeline later does with the text.
func (e *Extractor) Extract(ctx context.Context, msg whatsapp.InboundMessage) (string, error) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return "", errors.New("ingest: text message without body")
		}
		return msg.Text.Body, nil

	case "audio":
		if msg.Audio == nil {
			return "", errors.New("ingest: audio message without media reference")
		}
		stream, err := e.media.FetchMedia(ctx, msg.Audio.ID)
		if err != nil {
			return "", fmt.Errorf("ingest: fetch audio: %w", err)
		}
		defer stream.Close()

		text, err := e.transcriber.Transcribe(ctx, stream, "audio.ogg")
		if err != nil {
			return "", fmt.Errorf("ingest: transcribe audio: %w", err)
		}

		ack := fmt.Sprintf("Esto es lo que entendí en tu mensaje:\n*%s*\nPor favor, dame un momento mientras reflexiono sobre la respuesta adecuada.", text)
		if _, err := e.messenger.SendMessage(ctx, msg.From, ack); err != nil {
			return "", fmt.Errorf("ingest: acknowledge transcription: %w", err)
		}
		e.logger.Debug("audio message transcribed", "message_id", msg.ID, "text_len", len(text))
		return text, nil

	default:
		return "", ErrUnsupportedContent
	}
}
