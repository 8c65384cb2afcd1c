package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/extracurricular/internal/api"
	"example.com/extracurricular/internal/config"
	"example.com/extracurricular/internal/directory"
	"example.com/extracurricular/internal/domain"
	"example.com/extracurricular/internal/events"
	"example.com/extracurricular/internal/logging"
	"example.com/extracurricular/internal/observability"
	httptransport "example.com/extracurricular/internal/transport/http"
	"example.com/extracurricular/web"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir, err := buildDirectory(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to load activity seed", zap.String("seed_file", cfg.SeedFile), zap.Error(err))
	}

	opts := []domain.Option{
		domain.WithLogger(logger.Named("directory")),
		domain.WithCapacityEnforcement(cfg.EnforceCapacity),
	}

	var dispatcher *events.Dispatcher
	if cfg.EventsEnabled() {
		writer := events.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()

		dispatcher = events.NewDispatcher(writer, events.DispatcherConfig{
			BufferSize:      cfg.EventBufferSize,
			BatchSize:       cfg.EventBatchSize,
			FlushInterval:   cfg.EventFlushInterval,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, logger)
		go dispatcher.Start(ctx)

		opts = append(opts, domain.WithPublisher(dispatcher))
		logger.Info("roster events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		logger.Info("KAFKA_BROKERS not set, roster events disabled")
	}

	service := domain.NewService(dir, opts...)

	handler := api.NewHandler(service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	api.RegisterStatic(mux, web.Static())
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, api.RequestLogger(logger)(api.CORS(cfg.CORSAllowedOrigin)(mux)), logger)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("signup-service listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Drain in-flight requests first so their roster events reach the dispatcher queue.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}

func buildDirectory(ctx context.Context, cfg config.Config, logger *zap.Logger) (*directory.Memory, error) {
	seed := directory.DefaultSeed()
	if cfg.SeedFile != "" {
		loaded, err := directory.LoadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = loaded
		logger.Info("loaded activity seed", zap.String("seed_file", cfg.SeedFile), zap.Int("activities", len(seed)))
	}

	dir := directory.NewMemory(seed)
	activities, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}
	for name, activity := range activities {
		observability.RecordRoster(name, len(activity.Participants))
	}
	return dir, nil
}
