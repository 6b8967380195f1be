package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"azsnap/internal/azure"
	"azsnap/internal/common/cache"
	"azsnap/internal/common/db"
	"azsnap/internal/common/http/middleware"
	"azsnap/internal/common/mq"
	"azsnap/internal/common/storage"
	"azsnap/internal/scheduler"
	"azsnap/internal/snapshot/controller"
	"azsnap/internal/snapshot/repository"
	"azsnap/internal/snapshot/service"
	"azsnap/pkg/utils/logger"
)

func main() {
	configPath := flag.String("config", "configs/snapshot-service.yaml", "path to config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Fatal(context.Background(), "snapshot-service exited", zap.Error(err))
	}
}

func run(cfg *Config) error {
	ctx := context.Background()

	redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisCache.Close() }()

	records := repository.NewRecordRepositoryWithRetention(redisCache, cfg.Sweep.TerminalRetention)

	var archive *repository.ArchiveRepository
	if cfg.Database.Enabled {
		database, err := db.NewMySQLWithConfig(&cfg.Database.MySQLConfig)
		if err != nil {
			return fmt.Errorf("connect mysql: %w", err)
		}
		defer func() { _ = database.Close() }()
		archive = repository.NewArchiveRepository(database)
	}

	var producer mq.Producer
	if cfg.Kafka.Enabled {
		queue, err := mq.NewKafkaQueue(cfg.Kafka.KafkaConfig)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer func() { _ = queue.Close() }()
		producer = queue
	}
	events := service.NewEventPublisher(producer, cfg.Kafka.Topic)

	var summaries *service.SummaryStore
	if cfg.MinIO.Enabled {
		objectStore, err := storage.NewMinIOStorage(cfg.MinIO.MinIOConfig)
		if err != nil {
			return fmt.Errorf("connect minio: %w", err)
		}
		summaries = service.NewSummaryStore(objectStore, cfg.MinIO.Bucket, cfg.MinIO.PresignTTL)
	}

	azClient := azure.NewClient(azure.NewCLIRunner(cfg.Azure))

	snapshots := newSnapshotService(cfg, azClient, records, archive, events)
	sweeper := newSweepService(cfg, azClient, records, archive, events)

	sched, err := scheduler.New(cfg.Scheduler, sweeper)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.TraceContextMiddleware(), middleware.RequestLoggerMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := redisCache.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	if cfg.Auth.Enabled {
		api.Use(middleware.BearerAuthMiddleware(cfg.Auth.AuthConfig))
	}
	controller.NewSnapshotController(snapshots, sweeper, summaries).RegisterRoutes(api)

	server := &http.Server{
		Addr:         cfg.Server.addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "snapshot-service listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info(ctx, "shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newSnapshotService keeps the typed-nil archive out of the service when
// the database is disabled.
func newSnapshotService(cfg *Config, az *azure.Client, records *repository.RecordRepository, archive *repository.ArchiveRepository, events *service.EventPublisher) *service.SnapshotService {
	if archive == nil {
		return service.NewSnapshotService(cfg.Snapshot, az, records, nil, events)
	}
	return service.NewSnapshotService(cfg.Snapshot, az, records, archive, events)
}

func newSweepService(cfg *Config, az *azure.Client, records *repository.RecordRepository, archive *repository.ArchiveRepository, events *service.EventPublisher) *service.SweepService {
	if archive == nil {
		return service.NewSweepService(az, records, nil, events, cfg.Sweep.LockTTL)
	}
	return service.NewSweepService(az, records, archive, events, cfg.Sweep.LockTTL)
}
