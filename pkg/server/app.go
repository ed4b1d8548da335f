package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"BtcTrader/internal/domain/repository"
	"BtcTrader/internal/usecase"
	"BtcTrader/pkg/config"
	xhttp "BtcTrader/pkg/http"
	pkgkafka "BtcTrader/pkg/kafka"
	applogger "BtcTrader/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	scheduler  *usecase.StrategyScheduler
	collector  *usecase.TickerCollector
	consumer   *pkgkafka.Consumer
	publisher  repository.EventPublisher
	httpServer *xhttp.Server

	wg sync.WaitGroup
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	scheduler *usecase.StrategyScheduler,
	collector *usecase.TickerCollector,
	consumer *pkgkafka.Consumer,
	publisher repository.EventPublisher,
	httpServer *xhttp.Server,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        l,
		scheduler:  scheduler,
		collector:  collector,
		consumer:   consumer,
		publisher:  publisher,
		httpServer: httpServer,
	}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx ends, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Exchange.WS.Enabled && a.collector != nil {
		if err := a.collector.Start(runCtx); err != nil {
			// the scheduler falls back to REST prices, so this is not fatal
			a.log.Error("ticker collector start failed", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
		}
	}

	if a.scheduler != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.scheduler.Run(runCtx)
		}()
		a.log.Info("strategy scheduler started",
			applogger.Bool("enabled", a.cfg.Engine.Enabled),
			applogger.Duration("interval", a.cfg.Engine.Interval),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops intake first, then the scheduler, then the outbound publisher.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.cfg.Exchange.WS.Enabled && a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("scheduler did not stop in time")
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
