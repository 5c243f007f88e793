package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/lesson-scheduler/internal/api/http"
	"github.com/spec-kit/lesson-scheduler/internal/api/http/handlers"
	"github.com/spec-kit/lesson-scheduler/internal/auth"
	"github.com/spec-kit/lesson-scheduler/internal/changefeed"
	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/notify"
	"github.com/spec-kit/lesson-scheduler/internal/observability"
	"github.com/spec-kit/lesson-scheduler/internal/persistence"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	"github.com/spec-kit/lesson-scheduler/internal/store"
	"github.com/spec-kit/lesson-scheduler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, *cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.Close()

	readiness := map[string]handlers.Pinger{}
	for name, p := range st.Checks() {
		readiness[name] = p
	}

	var redis *persistence.Redis
	if cfg.UsesRedis() {
		redis, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		readiness["redis"] = redis
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	notifier, err := newNotifier(cfg.Notification, st, redis, logger, metrics)
	if err != nil {
		logger.Fatal("failed to set up notifications", zap.Error(err))
	}
	notifyWorker := worker.NewNotificationWorker(notifier.Handle, cfg.Notification.Workers, cfg.Notification.QueueSize, logger)
	notifyWorker.Subscribe(dispatcher, notify.NotifiedEvents...)
	notifyWorker.Start(ctx)

	var feed changefeed.Feed = changefeed.NewMemoryFeed()
	if cfg.ChangeFeed.Backend == "redis" {
		feed = changefeed.NewRedisFeed(redis.Client, cfg.ChangeFeed.ChannelPrefix, logger)
	}
	changefeed.Bridge(dispatcher, feed)

	deps := service.Dependencies{
		Users:      st.Users,
		Lessons:    st.Lessons,
		Rules:      st.Rules,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	authService := service.NewAuthService(cfg.Auth, deps)
	userService := service.NewUserService(deps)
	availabilityService := service.NewAvailabilityService(deps)
	lessonService := service.NewLessonService(deps)

	app := httptransport.NewApp(httptransport.AppOptions{
		Name:           cfg.App.Name,
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Profile:        handlers.NewProfileHandler(userService),
		Availability:   handlers.NewAvailabilityHandler(availabilityService),
		Calendar:       handlers.NewCalendarHandler(availabilityService, lessonService),
		Lessons:        handlers.NewLessonHandler(lessonService, feed, logger),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), st.Users),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", st.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifyWorker.Stop()
}

func newNotifier(cfg config.NotificationConfig, st *store.Store, redis *persistence.Redis, logger *zap.Logger, metrics *observability.Metrics) (*notify.Service, error) {
	catalog, err := notify.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = notify.LoadCatalog(cfg.CatalogPath)
	}
	if err != nil {
		return nil, err
	}

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.Transport == config.TransportRedis {
		sender = notify.NewRedisQueueSender(redis.Client, cfg.QueueKey)
	}
	policy := notify.NewPolicy(st.Users, catalog, cfg.ClickAction)
	return notify.NewService(policy, sender, logger, metrics), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
