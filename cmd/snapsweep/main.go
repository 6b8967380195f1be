// snapsweep runs one expiry sweep and exits. It exists for environments
// that drive the sweep from an external cron instead of the long-running
// service, and for operators who want a manual sweep from a shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"azsnap/internal/azure"
	"azsnap/internal/common/cache"
	"azsnap/internal/common/db"
	"azsnap/internal/snapshot/repository"
	"azsnap/internal/snapshot/service"
	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/logger"
)

// sweepConfig is the subset of the service configuration snapsweep needs.
type sweepConfig struct {
	Logger logger.Config     `yaml:"logger"`
	Redis  cache.RedisConfig `yaml:"redis"`

	Database struct {
		Enabled        bool `yaml:"enabled"`
		db.MySQLConfig `yaml:",inline"`
	} `yaml:"database"`

	Azure azure.CLIConfig `yaml:"azure"`

	Sweep struct {
		LockTTL           time.Duration `yaml:"lockTTL"`
		TerminalRetention time.Duration `yaml:"terminalRetention"`
	} `yaml:"sweep"`
}

func main() {
	configPath := flag.String("config", "configs/snapshot-service.yaml", "path to config file")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall sweep deadline")
	flag.Parse()

	raw, err := os.ReadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		os.Exit(1)
	}
	var cfg sweepConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := sweep(ctx, &cfg)
	if err != nil {
		if appErr.GetCode(err) == appErr.SweepInProgress {
			logger.Info(ctx, "another sweep is already running, nothing to do")
			return
		}
		logger.Error(ctx, "sweep failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("checked %d, expired %d, deleted %d, failed %d\n",
		result.Checked, result.Expired, result.Deleted, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func sweep(ctx context.Context, cfg *sweepConfig) (*service.SweepResult, error) {
	redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisCache.Close() }()

	records := repository.NewRecordRepositoryWithRetention(redisCache, cfg.Sweep.TerminalRetention)

	var sweeper *service.SweepService
	azClient := azure.NewClient(azure.NewCLIRunner(cfg.Azure))
	events := service.NewEventPublisher(nil, "")

	if cfg.Database.Enabled {
		database, err := db.NewMySQLWithConfig(&cfg.Database.MySQLConfig)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		defer func() { _ = database.Close() }()
		sweeper = service.NewSweepService(azClient, records, repository.NewArchiveRepository(database), events, cfg.Sweep.LockTTL)
	} else {
		sweeper = service.NewSweepService(azClient, records, nil, events, cfg.Sweep.LockTTL)
	}

	return sweeper.Sweep(ctx)
}
