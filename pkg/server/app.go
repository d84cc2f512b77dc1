package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"OptionPulse/internal/usecase"
	pkgch "OptionPulse/pkg/clickhouse"
	"OptionPulse/pkg/config"
	xhttp "OptionPulse/pkg/http"
	pkgkafka "OptionPulse/pkg/kafka"
	applogger "OptionPulse/pkg/logger"
	"OptionPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg            *config.Config
	logger         *applogger.Logger
	collector      *usecase.SnapshotCollector
	consumer       *pkgkafka.Consumer
	kh             pkgkafka.MessageHandler
	notifyConsumer *queue.RedisQueue
	chClient       *pkgch.Client
	httpServer     *xhttp.Server
	httpHandler    xhttp.Handler
	engine         *usecase.SignalEngine
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	notifyConsumer *queue.RedisQueue,
	chClient *pkgch.Client,
	engine *usecase.SignalEngine,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:            cfg,
		logger:         logger,
		collector:      collector,
		consumer:       consumer,
		kh:             kh,
		notifyConsumer: notifyConsumer,
		chClient:       chClient,
		engine:         engine,
		httpHandler:    httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start collector (scheduler + websocket stream)
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("symbols", a.cfg.Feed.Symbols))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start in-process notification worker if configured
	if a.notifyConsumer != nil {
		if err := a.notifyConsumer.Start(); err != nil {
			l.Error("notify worker start error", applogger.Error(err))
		} else {
			l.Info("notify worker started")
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt; SIGHUP reloads the engine tuning in place.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for {
		sig := <-sigCh
		if sig == syscall.SIGHUP {
			a.reloadEngineConfig(l)
			continue
		}
		break
	}

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// reloadEngineConfig re-reads the config file and hot-swaps the engine
// tuning. Infrastructure sections (kafka, clickhouse, server) need a restart;
// a config that fails validation leaves the running tuning untouched.
func (a *App) reloadEngineConfig(l *applogger.Logger) {
	fresh, err := config.Load(a.cfg.Path())
	if err != nil {
		l.Error("config reload failed", applogger.Error(err))
		return
	}
	if a.engine == nil {
		return
	}
	if err := a.engine.UpdateConfig(&fresh.Engine); err != nil {
		l.Error("engine config rejected on reload", applogger.Error(err))
		return
	}
	l.Info("engine config reloaded", applogger.String("path", a.cfg.Path()))
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
	}
	l.Info("shutting down...")

	// Stop collector (scheduler + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop notification worker
	if a.notifyConsumer != nil {
		if err := a.notifyConsumer.Stop(ctx); err != nil {
			l.Warn("notify worker stop error", applogger.Error(err))
		}
	}

	// Flush aggregated logs before the producer goes away
	if a.logger != nil {
		a.logger.RemoveCollector()
	}

	// Close dispatch and archive resources
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			l.Warn("engine close error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
