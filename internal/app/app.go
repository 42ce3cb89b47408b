// Package app wires configuration, storage, messaging and the HTTP API into
// a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nadmax/medrank/internal/analytics"
	"github.com/nadmax/medrank/internal/api"
	"github.com/nadmax/medrank/internal/auth"
	"github.com/nadmax/medrank/internal/cache"
	"github.com/nadmax/medrank/internal/config"
	"github.com/nadmax/medrank/internal/database"
	"github.com/nadmax/medrank/internal/events"
	"github.com/nadmax/medrank/internal/middleware"
	"github.com/nadmax/medrank/internal/notify"
	"github.com/nadmax/medrank/internal/repository"
	"github.com/nadmax/medrank/internal/repository/postgres"
	"github.com/nadmax/medrank/internal/service"
	"github.com/nadmax/medrank/internal/student"
	"github.com/nadmax/medrank/internal/task"
	"github.com/rs/zerolog"
)

const metricsInterval = 10 * time.Second

var taskActions = []task.Action{
	task.ActionCreated,
	task.ActionAccepted,
	task.ActionRejected,
	task.ActionCompleted,
	task.ActionScored,
}

type App struct {
	server     *http.Server
	logger     zerolog.Logger
	config     *config.Config
	repo       repository.TaskRepository
	rankings   cache.Rankings
	rabbit     *events.RabbitPublisher
	dispatcher *events.Dispatcher
	collector  *StatusCollector

	// background workers started by Run stop when ctx is cancelled
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{logger: log, config: cfg}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	directory, err := a.openStorage(cfg)
	if err != nil {
		a.cancel()
		return nil, err
	}

	a.rankings = cache.Nop{}
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.TTL)
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis, rankings cache disabled")
		} else {
			a.rankings = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Rankings cache enabled")
		}
	}

	publishers := events.Multi{}
	if cfg.RabbitMQ.URL != "" {
		rp, err := events.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to RabbitMQ, event publishing disabled")
		} else {
			a.rabbit = rp
			publishers = append(publishers, rp)
		}
	}

	a.collector = NewStatusCollector(a.repo, metricsInterval, log)
	a.dispatcher = events.NewDispatcher("medrank-events", cfg.Events.Buffer, log)
	for _, action := range taskActions {
		a.dispatcher.RegisterHandler(action, a.collector.OnEvent)
	}
	if cfg.SendGrid.APIKey != "" {
		notifier := notify.NewSendGridNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromName, cfg.SendGrid.FromAddress, directory, log)
		a.dispatcher.RegisterHandler(task.ActionCreated, notifier.TaskAssigned)
		log.Info().Msg("Assignment emails enabled")
	}
	publishers = append(publishers, a.dispatcher)

	projector := analytics.NewProjector(cfg.Analytics.Options())
	tasks := service.NewTaskService(a.repo, directory, publishers, a.rankings, log)
	reports := service.NewAnalyticsService(a.repo, directory, a.rankings, projector, log)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	handler := api.NewAPI(tasks, reports, issuer, log, api.WithMiddleware(middleware.NewCORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
		cfg.CORS.AllowCredentials,
		cfg.CORS.MaxAge,
	)))

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

func (a *App) openStorage(cfg *config.Config) (student.Directory, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.repo = postgres.NewPostgresTaskRepository(db, a.logger)
		a.logger.Info().Msg("Database connection established")
		return student.NewPostgresDirectory(db, a.logger), nil
	case config.StorageMemory:
		a.repo = repository.NewMemoryTaskRepository()
		a.logger.Info().Int("students", len(cfg.Students)).Msg("Using in-memory task store")
		return student.NewMemoryDirectory(cfg.Students), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the background workers and serves HTTP until Shutdown.
func (a *App) Run() error {
	ctx := a.ctx

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.dispatcher.Start(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.collector.Run(ctx)
	}()

	a.logger.Info().Msgf("Starting medrank on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down medrank...")

	err := a.server.Shutdown(ctx)

	a.dispatcher.Stop()
	a.cancel()
	a.wg.Wait()

	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}
	if err := a.rankings.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close rankings cache")
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close task store")
	}

	return err
}
