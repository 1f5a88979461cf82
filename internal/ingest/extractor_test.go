package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/garusis/marcos-assistant/internal/whatsapp"
	"github.com/garusis/marcos-assistant/pkg/logging"
)

type stubMedia struct {
	content string
	err     error
	fetched []string
}

func (s *stubMedia) FetchMedia(_ context.Context, mediaID string) (io.ReadCloser, error) {
	s.fetched = append(s.fetched, mediaID)
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.content)), nil
}

type stubTranscriber struct {
	text string
	err  error
	got  string
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	data, _ := io.ReadAll(audio)
	s.got = string(data)
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubMessenger struct {
	sends   []string
	to      []string
	sendErr error
}

func (s *stubMessenger) SendMessage(_ context.Context, to, text string) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.to = append(s.to, to)
	s.sends = append(s.sends, text)
	return "wamid.out", nil
}

func TestExtractText(t *testing.T) {
	messenger := &stubMessenger{}
	extractor := NewExtractor(&stubMedia{}, &stubTranscriber{}, messenger, logging.Default())

	msg := whatsapp.InboundMessage{
		From: "+100",
		ID:   "M1",
		Type: "text",
		Text: &whatsapp.InboundText{Body: "hello"},
	}
	text, err := extractor.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if text != "hello" {
		t.Fatalf("text = %q", text)
	}
	if len(messenger.sends) != 0 {
		t.Fatal("text extraction must not send anything")
	}
}

func TestExtractAudioTranscribesAndAcknowledges(t *testing.T) {
	media := &stubMedia{content: "ogg-bytes"}
	transcriber := &stubTranscriber{text: "hola desde el audio"}
	messenger := &stubMessenger{}
	extractor := NewExtractor(media, transcriber, messenger, logging.Default())

	msg := whatsapp.InboundMessage{
		From:  "+100",
		ID:    "M2",
		Type:  "audio",
		Audio: &whatsapp.InboundMedia{ID: "media123", MimeType: "audio/ogg"},
	}
	text, err := extractor.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if text != "hola desde el audio" {
		t.Fatalf("text = %q", text)
	}
	if len(media.fetched) != 1 || media.fetched[0] != "media123" {
		t.Fatalf("expected media fetch by id, got %v", media.fetched)
	}
	if transcriber.got != "ogg-bytes" {
		t.Fatalf("transcriber received %q", transcriber.got)
	}
	if len(messenger.sends) != 1 {
		t.Fatalf("expected one acknowledgment send, got %d", len(messenger.sends))
	}
	if messenger.to[0] != "+100" {
		t.Fatalf("acknowledgment sent to %s", messenger.to[0])
	}
	if !strings.Contains(messenger.sends[0], "*hola desde el audio*") {
		t.Fatalf("acknowledgment should quote the transcript, got %q", messenger.sends[0])
	}
}

func TestExtractAudioAckFailurePropagates(t *testing.T) {
	extractor := NewExtractor(
		&stubMedia{content: "ogg"},
		&stubTranscriber{text: "hola"},
		&stubMessenger{sendErr: errors.New("send failed")},
		logging.Default(),
	)

	msg := whatsapp.InboundMessage{
		From:  "+100",
		Type:  "audio",
		Audio: &whatsapp.InboundMedia{ID: "media123"},
	}
	if _, err := extractor.Extract(context.Background(), msg); err == nil {
		t.Fatal("expected acknowledgment failure to propagate")
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	messenger := &stubMessenger{}
	extractor := NewExtractor(&stubMedia{}, &stubTranscriber{}, messenger, logging.Default())

	msg := whatsapp.InboundMessage{From: "+100", ID: "M3", Type: "image"}
	_, err := extractor.Extract(context.Background(), msg)
	if !errors.Is(err, ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent, got %v", err)
	}
	if len(messenger.sends) != 0 {
		t.Fatal("extractor must not message the sender for unsupported types")
	}
}

func TestExtractAudioFetchFailure(t *testing.T) {
	extractor := NewExtractor(
		&stubMedia{err: errors.New("media gone")},
		&stubTranscriber{},
		&stubMessenger{},
		logging.Default(),
	)

	msg := whatsapp.InboundMessage{From: "+100", Type: "audio", Audio: &whatsapp.InboundMedia{ID: "x"}}
	if _, err := extractor.Extract(context.Background(), msg); err == nil {
		t.Fatal("expected fetch failure to propagate")
	}
}
