package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garusis/marcos-assistant/pkg/logging"
)

type stubTaskQueue struct {
	deleted []string
}

func (q *stubTaskQueue) Receive(context.Context, int, int) ([]queueMessage, error) {
	return nil, nil
}

func (q *stubTaskQueue) Delete(_ context.Context, receiptHandle string) error {
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func encodeTask(t *testing.T, task CallbackTask) string {
	t.Helper()
	body, err := json.Marshal(task)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestWorkerDeliversAndAcks(t *testing.T) {
	var gotAuth, gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	queue := &stubTaskQueue{}
	worker := NewWorker(queue, logging.Default())

	msg := queueMessage{
		ID:            "sqs-1",
		ReceiptHandle: "receipt-1",
		Body: encodeTask(t, CallbackTask{
			URL:         server.URL,
			Method:      http.MethodPost,
			ContentType: "application/json",
			Body:        json.RawMessage(`{"contactId":"+100","messageId":"M1"}`),
			Token:       "signed-token",
		}),
	}
	worker.handleMessage(context.Background(), msg)

	if gotAuth != "Bearer signed-token" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if gotBody != `{"contactId":"+100","messageId":"M1"}` {
		t.Fatalf("unexpected body: %s", gotBody)
	}
	if len(queue.deleted) != 1 || queue.deleted[0] != "receipt-1" {
		t.Fatalf("expected task acked after delivery, got %v", queue.deleted)
	}
}

func TestWorkerLeavesFailedDeliveryOnQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	queue := &stubTaskQueue{}
	worker := NewWorker(queue, logging.Default())

	msg := queueMessage{
		ID:            "sqs-2",
		ReceiptHandle: "receipt-2",
		Body:          encodeTask(t, CallbackTask{URL: server.URL}),
	}
	worker.handleMessage(context.Background(), msg)

	if len(queue.deleted) != 0 {
		t.Fatal("expected failed delivery to stay on the queue for redelivery")
	}
}

func TestWorkerDropsUndecodableTask(t *testing.T) {
	queue := &stubTaskQueue{}
	worker := NewWorker(queue, logging.Default())

	worker.handleMessage(context.Background(), queueMessage{
		ID:            "sqs-3",
		ReceiptHandle: "receipt-3",
		Body:          "not-json",
	})

	if len(queue.deleted) != 1 {
		t.Fatal("expected poison message to be dropped")
	}
}
