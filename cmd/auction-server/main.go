package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/gavel-live/internal/adapters/api"
	"github.com/floroz/gavel-live/internal/adapters/ws"
	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/config"
	"github.com/floroz/gavel-live/internal/infra/events"
	"github.com/floroz/gavel-live/internal/notify"
	"github.com/floroz/gavel-live/pkg/auth"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down auction server...")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Auction server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Auction server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 1. Core: broadcaster first, the engine publishes into it
	broadcaster := notify.NewBroadcaster(logger)

	engine, err := auction.NewEngine(
		auction.DefaultSeed(time.Now()),
		auction.WithPublisher(broadcaster),
		auction.WithResetWindow(cfg.ResetWindow),
		auction.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	// 2. Observers
	hub := ws.NewHub(engine, logger)
	broadcaster.Attach(notify.WithSink(hub))

	g, gctx := errgroup.WithContext(ctx)

	// 3. Optional external sinks
	if cfg.RabbitMQ.URL != "" {
		amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer amqpConn.Close()
		logger.Info("RabbitMQ Connected")

		rabbitPublisher, err := events.NewRabbitMQPublisher(amqpConn, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer rabbitPublisher.Close()
		broadcaster.Attach(notify.WithSink(rabbitPublisher))

		adminConsumer := events.NewAdminConsumer(amqpConn, cfg.RabbitMQ.AdminQueue, engine, logger)
		g.Go(optional(logger, "admin consumer", func() error {
			return adminConsumer.Run(gctx)
		}))
	}

	if cfg.Redis.URL != "" {
		redisPublisher, err := events.NewRedisPublisher(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		defer redisPublisher.Close()
		broadcaster.Attach(notify.WithSink(redisPublisher))
		logger.Info("Redis Connected")
	}

	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		broadcaster.Attach(notify.WithSink(natsPublisher))
		logger.Info("NATS Connected")
	}

	// 4. API
	var handlerOpts []api.HandlerOption
	if cfg.Auth.AdminEnabled() {
		signer, err := auth.LoadSigner(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, api.WithAdmin(signer, cfg.Auth.AdminPasswordHash))
		logger.Info("Admin API enabled", "can_issue_tokens", signer.CanSign())
	}
	handler := api.NewAuctionHandler(engine, logger, handlerOpts...)

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(api.NewRouter(handler, hub), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 5. Run
	g.Go(func() error {
		return broadcaster.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting auction server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		hub.Close()
		return err
	})

	return g.Wait()
}

// optional wraps a component whose failure must not stop the server.
// The error is logged and the rest of the group keeps running.
func optional(logger *slog.Logger, name string, fn func() error) func() error {
	return func() error {
		if err := fn(); err != nil {
			logger.Error("Optional component stopped", "component", name, "error", err)
		}
		return nil
	}
}
