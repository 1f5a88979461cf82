package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garusis/marcos-assistant/cmd/mainconfig"
	"github.com/garusis/marcos-assistant/internal/api/router"
	appconfig "github.com/garusis/marcos-assistant/internal/config"
	"github.com/garusis/marcos-assistant/internal/dispatch"
	"github.com/garusis/marcos-assistant/internal/history"
	"github.com/garusis/marcos-assistant/internal/http/handlers"
	"github.com/garusis/marcos-assistant/internal/ingest"
	observemetrics "github.com/garusis/marcos-assistant/internal/observability/metrics"
	"github.com/garusis/marcos-assistant/internal/transcription"
	"github.com/garusis/marcos-assistant/internal/whatsapp"
	"github.com/garusis/marcos-assistant/pkg/logging"
)

func main() {
	// Ignore the error: a .env file only exists in local development.
	_ = godotenv.Load()

	cfg, err := appconfig.Load()
	if err != nil {
		logging.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting marcos-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	relayMetrics := observemetrics.NewRelayMetrics(registry)

	messenger := whatsapp.NewClient(whatsapp.ClientConfig{
		AccessToken: cfg.WhatsAppMessagingToken,
		PhoneID:     cfg.WhatsAppPhoneID,
		Moderators:  cfg.ModeratorPhoneList,
		Logger:      logger,
	})

	transcriber := transcription.NewClient(transcription.ClientConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAITranscriptionModel,
		Logger: logger,
	})

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	store := history.NewStore(dynamoClient, cfg.ContactsTable, cfg.MessagesTable, logger)

	sqsClient := sqs.NewFromConfig(awsCfg)
	queue := dispatch.NewSQSQueue(sqsClient, cfg.DispatchQueueURL)
	scheduler := dispatch.NewScheduler(dispatch.SchedulerConfig{
		Queue:           queue,
		CallbackURL:     cfg.QueueProcessorURL,
		ServiceIdentity: cfg.DispatchServiceIdentity,
		SigningSecret:   cfg.DispatchSigningSecret,
		Logger:          logger,
	})

	extractor := ingest.NewExtractor(messenger, transcriber, messenger, logger)

	webhookHandler := handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{
		Extractor:      extractor,
		History:        store,
		Dispatcher:     scheduler,
		Messenger:      messenger,
		Logger:         logger,
		Metrics:        relayMetrics,
		VerifyToken:    cfg.WebhookVerifyToken,
		AccountID:      cfg.WhatsAppAccountID,
		ContactAllowed: cfg.ContactAllowed,
	})

	r := router.New(&router.Config{
		Logger:          logger,
		WhatsAppWebhook: webhookHandler,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
