package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-bidding-api/internal/cache/redis"
	"auction-bidding-api/internal/controller"
	"auction-bidding-api/internal/events/natsbus"
	"auction-bidding-api/internal/fanout"
	"auction-bidding-api/internal/repo"
	"auction-bidding-api/internal/repo/memdb"
	"auction-bidding-api/internal/service"
	"auction-bidding-api/internal/transport/ws"
	"auction-bidding-api/internal/worker"
	"auction-bidding-api/pkg/http_server"
	"auction-bidding-api/pkg/postgres"

	"github.com/google/uuid"
	"github.com/labstack/echo"
	"github.com/sirupsen/logrus"
)

// setupRepositories picks the storage backend. The returned func releases it.
func setupRepositories(cfg *Config) (*repo.Repositories, func(), error) {
	switch cfg.StorageDriver {
	case storageDriverMemory:
		store := memdb.NewStore(cfg.LockTimeout)
		if cfg.MemorySeedFile != "" {
			if err := seedMemoryStore(store, cfg.MemorySeedFile); err != nil {
				return nil, nil, err
			}
			logrus.WithField("file", cfg.MemorySeedFile).Info("memory store seeded")
		}

		return repo.NewMemoryRepositories(store), func() {}, nil

	case storageDriverPostgres:
		logrus.Info("Connecting database...")
		postgresDB, err := postgres.NewDB(cfg.PostgresConn, postgres.PoolConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("error occurred while connecting to db: %w", err)
		}

		logrus.Info("Running migrations...")
		if err := runMigrations(postgresDB, cfg.MigrationsUrl, cfg.PostgresDatabase); err != nil {
			postgresDB.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}

		return repo.NewRepositories(postgresDB, cfg.LockTimeout), func() { postgresDB.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// sinkSet holds the optional consumers of committed outcomes.
type sinkSet struct {
	sinks      []fanout.Sink
	cache      *redis.HighestBidCache
	subscriber *redis.Subscriber
	close      func()
}

// setupDownstream connects Redis and NATS when configured. origin tags the
// events this instance publishes on Redis.
func setupDownstream(cfg *Config, origin string, notifications *fanout.Fanout) (*sinkSet, error) {
	d := &sinkSet{}
	closers := make([]func(), 0, 2)
	d.close = func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { client.Close() })
		d.cache = redis.NewHighestBidCache(client, 0, origin)
		d.subscriber = redis.NewSubscriber(client, origin, notifications)
		d.sinks = append(d.sinks, d.cache)
		logrus.WithField("addr", cfg.RedisAddr).Info("redis read model enabled")
	}

	if cfg.NatsUrl != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err := natsbus.NewArchive(ctx, cfg.NatsUrl)
		cancel()
		if err != nil {
			d.close()
			return nil, err
		}
		closers = append(closers, archive.Close)
		d.sinks = append(d.sinks, archive)
		logrus.WithField("url", cfg.NatsUrl).Info("nats event archive enabled")
	}

	return d, nil
}

func Run() {
	cfg := LoadConfig()
	setupLogging(cfg)

	repositories, closeStorage, err := setupRepositories(cfg)
	if err != nil {
		logrus.Fatal(err)
	}
	defer closeStorage()

	notifications := fanout.New()
	instanceId := uuid.NewString()

	downstream, err := setupDownstream(cfg, instanceId, notifications)
	if err != nil {
		logrus.Fatal(err)
	}
	defer downstream.close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dispatcher := fanout.NewDispatcher(notifications, fanout.DispatcherConfig{QueueSize: cfg.DispatchQueueSize}, downstream.sinks...)
	go dispatcher.Run(ctx)
	if downstream.subscriber != nil {
		go downstream.subscriber.Run(ctx)
	}

	opts := service.Options{
		RetryAttempts:  cfg.BidRetryAttempts,
		RetryBackoff:   cfg.BidRetryBackoff,
		NotifyOnCancel: cfg.NotifyOnCancel,
		Dispatcher:     dispatcher,
	}
	// a nil *HighestBidCache must not end up inside the interface
	if downstream.cache != nil {
		opts.HighestBidCache = downstream.cache
	}
	services := service.NewServices(repositories, opts)

	lifecycle := worker.NewLifecycleWorker(services.Auction, cfg.LifecycleInterval)
	go lifecycle.Run(ctx)

	handler := echo.New()
	handler.HideBanner = true

	logrus.Info("Setup routes...")
	controller.SetupRoutesHandlers(handler, services)
	ws.NewHandler(notifications, services.Auction, cfg.AllowedOrigin).SetupRoutes(handler)

	logrus.WithField("address", cfg.ServerAddress).Info("Starting server...")
	httpServer := http_server.New(handler, cfg.ServerAddress)

	logrus.Info("Ready to process requests...")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		logrus.Info("Got signal: " + s.String())
	case err = <-httpServer.Notify():
		if err != nil {
			logrus.WithError(err).Error("server stopped")
		}
	}

	logrus.Info("Shutting down...")
	if err := httpServer.Shutdown(); err != nil {
		logrus.WithError(err).Error("shutdown error")
	}

	// committed outcomes still in the queue are delivered before exit
	stop()
	<-lifecycle.Done()
	<-dispatcher.Done()
	if downstream.subscriber != nil {
		<-downstream.subscriber.Done()
	}
	logrus.Info("Successful shutdown")
}
