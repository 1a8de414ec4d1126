// Command webhookd runs the webhook subsystem as a standalone service:
// the inbound connector endpoint, the outbound retry workers, and the
// admin API. Connector adapters and business cores are registered by the
// embedding platform; run standalone, the daemon serves the outbound and
// admin surfaces.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fluxpay/webhooks"
	"github.com/fluxpay/webhooks/api"
	"github.com/fluxpay/webhooks/crypt"
	"github.com/fluxpay/webhooks/lock"
	"github.com/fluxpay/webhooks/lock/redislock"
	"github.com/fluxpay/webhooks/observability"
	"github.com/fluxpay/webhooks/scheduler/riverqueue"
	"github.com/fluxpay/webhooks/store"
	"github.com/fluxpay/webhooks/store/memory"
	redisstore "github.com/fluxpay/webhooks/store/redis"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	var (
		st     store.Store
		locker lock.Locker
	)
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		st = redisstore.New(client)
		locker = redislock.New(client)
		logger.Info("using redis store", "addr", cfg.RedisAddr)
	} else {
		st = memory.New()
		locker = lock.NewMemory()
		logger.Warn("using in-memory store; all state is lost on restart")
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}

	var encryptor crypt.Encryptor = crypt.Plain{}
	if cfg.MasterKey != "" {
		encryptor, err = crypt.NewAESGCM([]byte(cfg.MasterKey))
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no master key configured; payload snapshots are stored unencrypted")
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	opts := []webhooks.Option{
		webhooks.WithStore(st),
		webhooks.WithLocker(locker),
		webhooks.WithEncryptor(encryptor),
		webhooks.WithLogger(logger),
		webhooks.WithMetrics(metrics),
		webhooks.WithTracer(observability.NewTracer()),
		webhooks.WithAnalytics(observability.NewLogEmitter(logger)),
	}
	if cfg.Concurrency > 0 {
		opts = append(opts, webhooks.WithConcurrency(cfg.Concurrency))
	}
	if cfg.RequestTimeoutMS > 0 {
		opts = append(opts, webhooks.WithRequestTimeout(time.Duration(cfg.RequestTimeoutMS)*time.Millisecond))
	}
	if cfg.RetryBudget > 0 {
		opts = append(opts, webhooks.WithRetryBudget(cfg.RetryBudget))
	}

	pipeline, err := webhooks.New(opts...)
	if err != nil {
		return err
	}

	// With a database, retries run on River; otherwise the store poller
	// drives them.
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("create database pool: %w", err)
		}
		defer pool.Close()

		queue, err := riverqueue.New(pool, pipeline.Store(), pipeline.Engine(), cfg.Concurrency)
		if err != nil {
			return err
		}
		pipeline.Scheduler().SetNotifier(queue)

		if err := queue.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := queue.Stop(context.Background(), 30*time.Second); err != nil {
				logger.Error("queue stop failed", "error", err)
			}
		}()
		// Initial deliveries still run on the pipeline's pool; drain them
		// before the queue goes down.
		defer pipeline.Stop(context.Background())
		logger.Info("retry queue started on river")
	} else {
		pipeline.Start(ctx)
		defer pipeline.Stop(context.Background())
		logger.Info("retry poller started")
	}

	handler := api.NewHandler(pipeline.Dispatcher(), pipeline.Merchants(), pipeline.DLQ(), st)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shut down cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
