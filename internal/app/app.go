package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskify/backend/internal/auth"
	"taskify/backend/internal/cache"
	"taskify/backend/internal/config"
	"taskify/backend/internal/database"
	"taskify/backend/internal/middleware"
	"taskify/backend/internal/monitoring"
	"taskify/backend/internal/repositories"
	"taskify/backend/internal/router"
	"taskify/backend/internal/services"
	"taskify/backend/internal/worker"
)

// App owns every long-lived dependency of the server process.
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	DB      *database.DatabasePool
	Cache   *cache.RedisCache
	Queue   *worker.JobQueue
	Worker  *worker.Worker
	Monitor *monitoring.Monitor
	Router  *gin.Engine
}

// New connects to the datastores, migrates the schema and assembles the
// HTTP router. The caller must Close the returned App.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	pool, err := database.NewDatabasePool(database.PoolConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(cfg, pool.DB, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	redisCache := cache.NewRedisCache(cache.CacheConfigFrom(cfg))
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisCache.Health(pingCtx); err != nil {
		logger.WithError(err).Warn("redis unavailable at startup; logout and notifications are degraded")
	}

	revocations := cache.NewRevocationStore(redisCache)
	queue := worker.NewJobQueue(redisCache.Client(), nil)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	authService := services.NewAuthService(
		repositories.NewUserRepository(pool.DB), tokens, revocations, cfg.Auth.BCryptCost,
		logger.WithField("component", "auth"),
	)
	taskService := services.NewTaskService(
		repositories.NewTaskRepository(pool.DB), worker.NewQueueNotifier(queue),
		logger.WithField("component", "tasks"),
	)

	monitor := monitoring.NewMonitor()
	monitor.RegisterHealthCheck("database", pool.HealthContext)
	monitor.RegisterHealthCheck("redis", redisCache.Health)
	monitor.RegisterStats("database_pool", pool.Stats)
	monitor.RegisterStats("redis_pool", redisCache.Stats)
	monitor.RegisterStats("job_queue", func() map[string]interface{} {
		return queue.Stats(worker.QueueNotifications, worker.QueueRetry, worker.QueueDead)
	})
	monitor.RegisterStats("token_revocation", func() map[string]interface{} {
		m := revocations.Metrics()
		return map[string]interface{}{
			"lookups":      m.Lookups,
			"revoked_hits": m.Revoked,
			"revocations":  m.Revocations,
			"errors":       m.Errors,
		}
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimitConfigFrom(cfg))
	}

	w := worker.NewWorker(worker.WorkerConfig{
		RedisClient:  redisCache.Client(),
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Queues:       cfg.Worker.Queues,
		Logger:       logger,
	})
	w.RegisterHandler(worker.JobTypeTaskAssigned, worker.TaskAssignedHandler(worker.LogDeliverer{Logger: logger}))

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      pool,
		Cache:   redisCache,
		Queue:   queue,
		Worker:  w,
		Monitor: monitor,
		Router: router.New(router.Deps{
			Config:      cfg,
			Logger:      logger,
			Auth:        authService,
			Tasks:       taskService,
			Monitor:     monitor,
			RateLimiter: limiter,
		}),
	}, nil
}

// Serve runs the HTTP server, and the worker when enabled, until ctx is
// cancelled, then shuts both down gracefully.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.Worker.Enabled {
		a.Worker.Start(a.Config.Worker.Concurrency)
		defer a.Worker.Stop()
	}

	srv := &http.Server{
		Addr:         a.Config.GetServerAddr(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.Logger.Info("server exited properly")
	return nil
}

func (a *App) Close() error {
	return errors.Join(a.Cache.Close(), a.DB.Close())
}
