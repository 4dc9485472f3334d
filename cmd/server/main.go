package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/support-allocation/backend/internal/assistant"
	"github.com/support-allocation/backend/internal/audit"
	"github.com/support-allocation/backend/internal/config"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/feeder"
	httpapi "github.com/support-allocation/backend/internal/http"
	"github.com/support-allocation/backend/internal/http/handlers"
	"github.com/support-allocation/backend/internal/notify"
	"github.com/support-allocation/backend/internal/scheduler"
	"github.com/support-allocation/backend/internal/store"

	"github.com/go-playground/validator/v10"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "allocation-backend").Logger()

	ctx := context.Background()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		st = pg
	} else {
		mem := store.NewMemory()
		mem.SeedDemo()
		st = mem
		logger.Info().Msg("using in-memory demo store")
	}

	memBus := events.NewMemory()
	var bus events.Bus = memBus
	if cfg.RedisAddr != "" {
		redisBus := events.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		defer redisBus.Close()
		bus = events.Fanout{memBus, redisBus}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("publishing events to redis")
	}

	trail := &audit.Trail{Store: st, Bus: bus, Logger: logger}
	notifier := notify.NewMemory(logger)

	sched := scheduler.New(st, bus, trail, notifier, scheduler.Config{
		AllocationInterval: cfg.AllocationInterval,
		CompletionInterval: cfg.CompletionInterval,
		MinCompletionTime:  cfg.MinCompletionTime,
		MaxCompletionTime:  cfg.MaxCompletionTime,
	}, logger)
	fdr := feeder.New(st, bus, trail, cfg.FeederInterval, logger)

	var asst assistant.Assistant
	if cfg.AssistantBaseURL == "" {
		asst = assistant.Mock{Rules: st}
		logger.Info().Msg("using mock assistant")
	} else {
		asst = &assistant.OpenAICompat{
			BaseURL: cfg.AssistantBaseURL,
			Model:   cfg.AssistantModel,
			APIKey:  cfg.AssistantAPIKey,
		}
	}

	h := &handlers.Handler{
		Store:     st,
		Scheduler: sched,
		Feeder:    fdr,
		Bus:       bus,
		Trail:     trail,
		Notifier:  notifier,
		Assistant: asst,
		Validator: validator.New(),
		Logger:    logger,
	}
	router := httpapi.Router(cfg, h, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = fdr.Stop(ctxShutdown)
	sched.Stop(ctxShutdown)
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
