package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"azsnap/internal/azure"
	"azsnap/internal/common/cache"
	"azsnap/internal/common/db"
	"azsnap/internal/common/http/middleware"
	"azsnap/internal/common/mq"
	"azsnap/internal/common/storage"
	"azsnap/internal/scheduler"
	"azsnap/internal/snapshot/service"
	"azsnap/pkg/utils/logger"
)

// Config is the full snapshot-service configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Logger    logger.Config     `yaml:"logger"`
	Redis     cache.RedisConfig `yaml:"redis"`
	Database  DatabaseConfig    `yaml:"database"`
	Kafka     KafkaConfig       `yaml:"kafka"`
	MinIO     MinIOConfig       `yaml:"minio"`
	Auth      AuthConfig        `yaml:"auth"`
	Azure     azure.CLIConfig   `yaml:"azure"`
	Snapshot  service.Config    `yaml:"snapshot"`
	Scheduler scheduler.Config  `yaml:"scheduler"`
	Sweep     SweepConfig       `yaml:"sweep"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig wraps the MySQL archive settings. Archiving is optional.
type DatabaseConfig struct {
	Enabled        bool `yaml:"enabled"`
	db.MySQLConfig `yaml:",inline"`
}

// KafkaConfig wraps broker settings plus the lifecycle topic. Optional.
type KafkaConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Topic          string `yaml:"topic"`
	mq.KafkaConfig `yaml:",inline"`
}

// MinIOConfig wraps object storage settings for run reports. Optional.
type MinIOConfig struct {
	Enabled             bool `yaml:"enabled"`
	storage.MinIOConfig `yaml:",inline"`
}

// AuthConfig wraps bearer token settings. When disabled the API is open,
// which is only acceptable on trusted operator networks.
type AuthConfig struct {
	Enabled               bool `yaml:"enabled"`
	middleware.AuthConfig `yaml:",inline"`
}

// SweepConfig holds sweep lock and retention settings.
type SweepConfig struct {
	LockTTL time.Duration `yaml:"lockTTL"`

	// TerminalRetention is how long deleted/failed records stay queryable
	// in Redis after the archive has them. Zero keeps them forever.
	TerminalRetention time.Duration `yaml:"terminalRetention"`
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute, // runs shell out to az per VM
			ShutdownTimeout: 30 * time.Second,
		},
		Logger:    logger.Config{Level: "info", Format: "json", OutputPath: "stdout"},
		Redis:     *cache.DefaultRedisConfig(),
		Snapshot:  service.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
		Sweep:     SweepConfig{LockTTL: 10 * time.Minute, TerminalRetention: 7 * 24 * time.Hour},
	}
}

func (c *Config) validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Snapshot.InventoryPath == "" {
		return fmt.Errorf("snapshot.inventoryPath is required")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("minio.endpoint and minio.bucket are required when minio is enabled")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth is enabled")
	}
	return nil
}

func (c *ServerConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
