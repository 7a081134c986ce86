package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/aggregation"
	"options-flow-tracker/api"
	"options-flow-tracker/cache"
	"options-flow-tracker/config"
	"options-flow-tracker/database"
	"options-flow-tracker/handlers"
	"options-flow-tracker/notifications"
	"options-flow-tracker/realtime"
	"options-flow-tracker/status"
	"options-flow-tracker/store"
	"options-flow-tracker/websocket"
)

// App represents the main application
type App struct {
	config         *config.Config
	log            *logrus.Logger
	wsManager      *websocket.ConnectionManager
	handlerManager *handlers.HandlerManager
	statusClient   *status.Client
	store          *store.Store
	broker         *realtime.Broker
	redis          *cache.RedisClient
	db             *database.Database
	archive        *database.FlowArchive
	webhooks       *notifications.WebhookManager
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	handlerManager := handlers.NewHandlerManager(logger)

	wsManager := websocket.NewConnectionManager(websocket.Options{
		URL:            cfg.StreamWSURL,
		FuturesSymbols: cfg.FuturesSymbols,
		EquitySymbols:  cfg.EquitySymbols,
		DialTimeout:    cfg.DialTimeout(),
		PingInterval:   cfg.PingInterval(),
		Reconnect: websocket.ReconnectPolicy{
			Enabled:      cfg.Reconnect.Enabled,
			InitialDelay: time.Duration(cfg.Reconnect.InitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Reconnect.MaxDelayMs) * time.Millisecond,
			Jitter:       time.Duration(cfg.Reconnect.JitterMs) * time.Millisecond,
			MaxAttempts:  cfg.Reconnect.MaxAttempts,
		},
	}, handlerManager, logger)

	statusClient := status.NewClient(cfg.APIBaseURL, status.Options{
		Timeout:        cfg.FetchTimeout(),
		CommandsPerSec: cfg.Flow.CommandRatePerSec,
	}, logger)

	return &App{
		config:         cfg,
		log:            logger,
		wsManager:      wsManager,
		handlerManager: handlerManager,
		statusClient:   statusClient,
		broker:         realtime.NewBroker(logger),
	}
}

// Start starts the application and blocks until an interrupt signal
func (a *App) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

// Run starts every component and blocks until ctx is done
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Optional Redis snapshot cache
	var snapshotCache store.SnapshotCache
	if a.config.Redis.Enabled {
		a.log.Info("🧠 Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(
			a.config.Redis.Host,
			a.config.Redis.Port,
			a.config.Redis.Password,
			time.Duration(a.config.Redis.SnapshotTTLMins)*time.Minute,
			a.log,
		)
		if err != nil {
			a.log.WithError(err).Warn("⚠️  Redis connection failed. Snapshot cache disabled.")
		} else {
			a.redis = redisClient
			snapshotCache = redisClient
		}
	}

	// 2. Optional flow archive
	if a.config.Archive.Enabled {
		a.log.Info("🗄️  Connecting to archive database...")
		db, err := database.Connect(
			a.config.Archive.Host,
			a.config.Archive.Port,
			a.config.Archive.Name,
			a.config.Archive.User,
			a.config.Archive.Password,
		)
		if err == nil {
			err = db.AutoMigrate()
		}
		if err != nil {
			a.log.WithError(err).Warn("⚠️  Archive database unavailable. Flow archive disabled.")
		} else {
			a.db = db
			a.archive = database.NewFlowArchive(db, database.ArchiveConfig{}, a.log)
		}
	}

	// 3. State store
	a.store = store.New(store.Options{
		BufferCapacity: a.config.Flow.BufferCapacity,
		Thresholds: &aggregation.Thresholds{
			Bullish: a.config.Flow.BullishThreshold,
			Bearish: a.config.Flow.BearishThreshold,
		},
		PollInterval: a.config.SnapshotPollInterval(),
	}, a.statusClient, a.statusClient, snapshotCache, a.log)

	// 4. Optional flow alerts
	if a.config.Alerts.Enabled {
		a.webhooks = notifications.NewWebhookManager(ctx, a.config.Alerts.Webhooks, a.log)
		a.log.Infof("🔔 Flow alerts enabled (%d webhook(s))", len(a.config.Alerts.Webhooks))
	}

	// 5. Setup handlers
	a.setupHandlers()

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			a.log.Debugf("%s stopped", name)
		}()
	}

	run("store", func() { _ = a.store.Run(ctx) })
	run("broker", func() { a.broker.Run(ctx) })
	var publisher readModelPublisher
	if a.redis != nil {
		publisher = a.redis
	}
	run("fanout", func() { newFanout(a.store, a.broker, publisher, a.log).Run(ctx) })
	run("reporter", func() { newStatsReporter(a.store, a.wsManager, time.Minute, a.log).Run(ctx) })
	if a.archive != nil {
		run("archive", func() { a.archive.Run(ctx) })
	}

	// 6. API server
	apiServer := api.NewServer(a.store, a.broker, a.log)
	run("api", func() {
		if err := apiServer.Start(ctx, a.config.HTTPPort); err != nil {
			a.log.WithError(err).Error("⚠️  API Server failed")
			cancel()
		}
	})

	// 7. Stream connection, reconnecting per policy
	// A stream that gives up is not fatal: the last known state keeps being served
	a.wsManager.OnStatus(a.store.SetStatus)
	run("stream", func() {
		err := a.wsManager.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, websocket.ErrClosed) {
			a.log.WithError(err).Error("❌ Stream connection ended")
		}
	})

	<-ctx.Done()
	a.log.Info("🛑 Shutdown signal received, initiating graceful shutdown...")
	return a.gracefulShutdown(&wg)
}

// gracefulShutdown waits for components with a timeout and closes connections
func (a *App) gracefulShutdown(wg *sync.WaitGroup) error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		a.log.Info("📡 Closing stream connection...")
		if err := a.wsManager.Close(); err != nil {
			a.log.WithError(err).Warn("Error closing stream")
		}
		wg.Wait()
		if a.webhooks != nil {
			a.webhooks.Wait()
		}

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("Error closing database")
			} else {
				a.log.Info("✅ Database connection closed")
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.log.WithError(err).Warn("Error closing redis")
			} else {
				a.log.Info("✅ Redis connection closed")
			}
		}
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		a.log.Info("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		a.log.Warn("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}

// setupHandlers registers all message handlers
func (a *App) setupHandlers() {
	a.handlerManager.RegisterHandler("state_store", a.store)
	if a.archive != nil {
		a.handlerManager.RegisterHandler("flow_archive", a.archive)
	}
	if a.webhooks != nil {
		thresholds := handlers.AlertThresholds{
			MinSweepPremium: a.config.Alerts.MinSweepPremium,
			MinBlockPremium: a.config.Alerts.MinBlockPremium,
			MinPremium:      a.config.Alerts.MinPremium,
		}
		a.handlerManager.RegisterHandler("flow_alerts", handlers.NewFlowAlertHandler(thresholds, a.webhooks, a.log))
	}
}

// NewLogger builds the process logger from configuration
func NewLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
