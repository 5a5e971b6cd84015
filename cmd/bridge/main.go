// Command bridge runs the Responses-to-Chat-Completions HTTP adapter.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/responses-bridge/config"
	"goa.design/responses-bridge/httpapi"
	"goa.design/responses-bridge/orchestrator"
	"goa.design/responses-bridge/store"
	"goa.design/responses-bridge/store/memory"
	"goa.design/responses-bridge/store/mongostore"
	"goa.design/responses-bridge/store/redisstore"
	"goa.design/responses-bridge/telemetry"
	"goa.design/responses-bridge/tools"
	"goa.design/responses-bridge/translate"
	"goa.design/responses-bridge/upstream"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	registry, err := tools.New(tools.Builtins()...)
	if err != nil {
		return err
	}

	conversationStore, err := newStore(cfg)
	if err != nil {
		return err
	}

	client := upstream.New(upstream.Config{
		BaseURL:          cfg.UpstreamBaseURL,
		APIKey:           cfg.UpstreamAPIKey,
		RequestTimeout:   cfg.RequestTimeout,
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryMaxElapsed:  cfg.RetryMaxElapsed,
		DegradeFields:    cfg.DegradeFieldSet(),
		BurstRPS:         cfg.RetryBurstRPS,
	}, &http.Client{Timeout: cfg.RequestTimeout})

	opts := []orchestrator.Option{
		orchestrator.WithRequestTranslator(translate.NewRequestTranslator(registry, cfg.ModelAliasMap, cfg.MaxTokensBuffer)),
		orchestrator.WithResponseTranslator(translate.NewResponseTranslator()),
		orchestrator.WithUpstream(client),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithTracer(tracer),
	}
	if conversationStore != nil {
		opts = append(opts, orchestrator.WithStore(conversationStore, cfg.StateTTL))
	}

	orch, err := orchestrator.New(opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.New(orch, logger, version),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(cfg *config.Config) (store.Store, error) {
	if !cfg.StateEnabled {
		return nil, nil
	}
	switch cfg.StateBackend {
	case "memory":
		return memory.New(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return redisstore.New(client)
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, err
		}
		collection := client.Database(cfg.MongoDatabase).Collection("responses")
		return mongostore.New(collection)
	default:
		return nil, errors.New("config: unknown STATE_BACKEND " + cfg.StateBackend)
	}
}
