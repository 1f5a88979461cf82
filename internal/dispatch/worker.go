package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/garusis/marcos-assistant/pkg/logging"
)

const (
	defaultWorkerCount = 1
	defaultWaitSeconds = 10
	defaultBatchSize   = 5
	deliveryTimeout    = 30 * time.Second
)

type taskQueue interface {
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Worker drains the dispatch queue and performs each callback task as an
// authenticated HTTP request. Tasks that fail delivery stay on the queue
// and come back after the visibility timeout (at-least-once).
type Worker struct {
	queue      taskQueue
	httpClient *http.Client
	logger     *logging.Logger
	workers    int
	waitSecs   int
	batchSize  int
	wg         sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithHTTPClient overrides the delivery HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) WorkerOption {
	return func(w *Worker) {
		if client != nil {
			w.httpClient = client
		}
	}
}

// NewWorker creates a callback delivery worker.
func NewWorker(queue taskQueue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		queue:      queue,
		httpClient: &http.Client{Timeout: deliveryTimeout},
		logger:     logger,
		workers:    defaultWorkerCount,
		waitSecs:   defaultWaitSeconds,
		batchSize:  defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive dispatch tasks", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var task CallbackTask
	if err := json.Unmarshal([]byte(msg.Body), &task); err != nil {
		// Undecodable tasks would loop forever; drop them.
		w.logger.Error("failed to decode dispatch task", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := w.deliver(ctx, task); err != nil {
		w.logger.Error("dispatch task delivery failed", "error", err, "msg_id", msg.ID, "url", task.URL)
		return
	}

	w.deleteMessage(msg.ReceiptHandle)
	w.logger.Info("dispatch task delivered", "msg_id", msg.ID, "url", task.URL)
}

func (w *Worker) deliver(ctx context.Context, task CallbackTask) error {
	method := task.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, task.URL, bytes.NewReader(task.Body))
	if err != nil {
		return fmt.Errorf("dispatch: create callback request: %w", err)
	}
	if task.ContentType != "" {
		req.Header.Set("Content-Type", task.ContentType)
	}
	if task.Token != "" {
		req.Header.Set("Authorization", "Bearer "+task.Token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: perform callback: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dispatch: callback returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete dispatch task", "error", err)
	}
}
