package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"

	"chat-sync/internal/auth"
	"chat-sync/internal/config"
	"chat-sync/internal/debug"
	"chat-sync/internal/models"
	"chat-sync/internal/obs"
	"chat-sync/internal/observability"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/rest"
	"chat-sync/internal/session"
	"chat-sync/internal/socket"
	"chat-sync/internal/store"
	"chat-sync/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := obs.NewLogger(cfg.Env)
	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := setupTracing(ctx, cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "err", err)
		} else {
			defer func() {
				_ = shutdown(ctx)
			}()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	logger.Info("audit publisher ready", "mode", rabbitmq.PublisherMode(auditPublisher))
	observability.SetPublisher(observability.PublisherFunc(
		func(ctx context.Context, routingKey string, message interface{}, _ map[string]string) error {
			return auditPublisher.Publish(ctx, routingKey, message)
		}))

	creds := auth.NewStaticProvider(cfg.AuthToken, auth.Identity{
		UserID: cfg.UserID,
		Name:   cfg.UserName,
		Role:   models.ParseRole(cfg.UserRole),
	})

	api := rest.NewClient(cfg.APIBaseURL, creds, cfg.HTTPTimeout)
	channel := socket.NewManager(cfg.WSURL, creds)
	st := store.New(cfg.UserID)

	sess := session.New(api, channel, st, creds)
	sess.SetAudit(telemetry.NewAuditEmitter(auditPublisher, "audit.chat_sync", "chat-sync", cfg.Env))
	sess.Start()
	defer sess.Stop()

	if err := channel.Connect(ctx); err != nil {
		logger.Warn("push channel not connected yet", "err", err)
	}
	if err := sess.Refresh(ctx, rest.Filters{}); err != nil {
		logger.Warn("conversation list load failed", "err", err)
	}

	// Follow printer: tail live messages on stdout.
	channel.Subscribe("main-follow", models.EventNewMessage, func(data json.RawMessage) {
		var rm models.RawMessage
		if err := json.Unmarshal(data, &rm); err != nil {
			return
		}
		msg := rm.Normalize()
		logger.Info("message",
			"conversation", msg.ConversationID,
			"sender", msg.SenderID,
			"role", msg.SenderRole,
			"content", msg.Content,
		)
	})

	if cfg.Env != "dev" && cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := debug.NewRouter(st, sess)
	go func() {
		if err := router.Run(cfg.MetricsAddr); err != nil {
			log.Fatalf("admin server error: %v", err)
		}
	}()
	logger.Info("chat-sync running", "admin", cfg.MetricsAddr, "api", cfg.APIBaseURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	sess.Stop()
	if err := channel.Close(); err != nil {
		logger.Warn("socket close", "err", err)
	}
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("chat-sync"),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
