package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/PluxCo/testing-platform-old/internal/config"
	"github.com/PluxCo/testing-platform-old/internal/db/store"
	"github.com/PluxCo/testing-platform-old/internal/logging"
	"github.com/PluxCo/testing-platform-old/internal/metrics"
	"github.com/PluxCo/testing-platform-old/internal/schedule"
	"github.com/PluxCo/testing-platform-old/internal/server"
	"github.com/PluxCo/testing-platform-old/internal/settings"
	"github.com/PluxCo/testing-platform-old/internal/stats"
	"github.com/PluxCo/testing-platform-old/internal/transport"
	"github.com/PluxCo/testing-platform-old/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, settings store,
// dispatcher, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	settingsProvider *settings.Provider
	dispatcher       *schedule.Dispatcher
	bgCancels        []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis, the scheduling core and
// the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	settingsProvider := settings.NewProvider(redisClient, logger)
	// A missing settings store is fatal here and only here; once running,
	// the dispatcher just skips ticks until settings come back.
	if err := settingsProvider.Load(ctx); err != nil {
		return nil, fmt.Errorf("initialize settings: %w", err)
	}

	personStore := store.NewPersonStore(pool)
	questionStore := store.NewQuestionStore(pool)
	answerStore := store.NewAnswerStore(pool)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	hub := ws.NewHub(logger)
	events := server.NewHubEvents(hub)

	connector := transport.NewConnector(cfg.Transport.MessagingURL, cfg.Transport.WebhookURL,
		cfg.Transport.HTTPTimeout, logger)
	table := schedule.NewCorrelationTable()

	selector := schedule.NewWeightedSelector(answerStore, questionStore, settingsProvider)
	dispatcher := schedule.NewDispatcher(personStore, answerStore, questionStore,
		selector, settingsProvider, connector, table,
		schedule.DispatcherOptions{
			Tick:      cfg.Scheduler.Tick,
			BunchSize: cfg.Scheduler.BunchSize,
			Metrics:   collector,
			Events:    events,
		}, logger)

	answerHandler := transport.NewAnswerHandler(table, questionStore, connector, collector, events, logger)

	handlers := server.NewHandlers(questionStore, answerStore, personStore, settingsProvider, logger)
	statsHandler := stats.NewHandler(stats.NewService(pool, logger), logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient,
		handlers, statsHandler, answerHandler.HandleWebhook, hub)

	return &Application{
		cfg:              cfg,
		logger:           logger,
		pool:             pool,
		redis:            redisClient,
		http:             apiServer,
		settingsProvider: settingsProvider,
		dispatcher:       dispatcher,
		bgCancels:        make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the background workers and the HTTP server, then waits for
// termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancelDispatch)
	go func() {
		if err := a.dispatcher.Run(dispatchCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Msg("dispatcher stopped")
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancelWatch)
	go func() {
		if err := a.settingsProvider.Watch(watchCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Msg("settings watcher stopped")
		}
	}()
}
