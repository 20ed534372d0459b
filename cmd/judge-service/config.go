package main

import (
	"fmt"
	"os"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/common/http/middleware"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/internal/judge/profile"
	"codearena/internal/judge/sandbox/engine"
	"codearena/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStatusTopic     = "judge.status"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ClientID      string        `yaml:"clientID"`
	BatchSize     int           `yaml:"batchSize"`
	BatchTimeout  time.Duration `yaml:"batchTimeout"`
	MinBytes      int           `yaml:"minBytes"`
	MaxBytes      int           `yaml:"maxBytes"`
	MaxWait       time.Duration `yaml:"maxWait"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	RequiredAcks  int           `yaml:"requiredAcks"`
	StatusTopic   string        `yaml:"statusTopic"`
	ConsumerGroup string        `yaml:"consumerGroup"`
}

// ImageCacheConfig holds rootfs image cache settings.
type ImageCacheConfig struct {
	RootDir  string        `yaml:"rootDir"`
	Bucket   string        `yaml:"bucket"`
	TTL      time.Duration `yaml:"ttl"`
	LockWait time.Duration `yaml:"lockWait"`
}

// JudgeConfig holds judging settings.
type JudgeConfig struct {
	WorkRoot      string        `yaml:"workRoot"`
	PoolSize      int           `yaml:"poolSize"`
	MaxCodeBytes  int           `yaml:"maxCodeBytes"`
	DBTimeout     time.Duration `yaml:"dbTimeout"`
	StatusTimeout time.Duration `yaml:"statusTimeout"`
	StatusTTL     time.Duration `yaml:"statusTTL"`
}

// SandboxConfig holds sandbox engine settings.
type SandboxConfig struct {
	CgroupRoot           string `yaml:"cgroupRoot"`
	SeccompDir           string `yaml:"seccompDir"`
	HelperPath           string `yaml:"helperPath"`
	StdoutStderrMaxBytes int64  `yaml:"stdoutStderrMaxBytes"`
	EnableSeccomp        bool   `yaml:"enableSeccomp"`
	EnableCgroup         bool   `yaml:"enableCgroup"`
	EnableNamespaces     bool   `yaml:"enableNamespaces"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server     ServerConfig          `yaml:"server"`
	Logger     logger.Config         `yaml:"logger"`
	Auth       middleware.AuthConfig `yaml:"auth"`
	Kafka      KafkaConfig           `yaml:"kafka"`
	Database   db.MySQLConfig        `yaml:"database"`
	Redis      cache.RedisConfig     `yaml:"redis"`
	MinIO      storage.MinIOConfig   `yaml:"minio"`
	ImageCache ImageCacheConfig      `yaml:"imageCache"`
	Judge      JudgeConfig           `yaml:"judge"`
	Sandbox    SandboxConfig         `yaml:"sandbox"`
	Languages  []profile.Profile     `yaml:"languages"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Judge.WorkRoot == "" {
		return nil, fmt.Errorf("judge workRoot is required")
	}
	if cfg.ImageCache.RootDir == "" {
		return nil, fmt.Errorf("imageCache rootDir is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		// judging is synchronous; the write timeout bounds a whole run
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Kafka.StatusTopic == "" {
		cfg.Kafka.StatusTopic = defaultStatusTopic
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "judge-notify"
	}
	if cfg.ImageCache.Bucket == "" {
		cfg.ImageCache.Bucket = cfg.MinIO.Bucket
	}
	return &cfg, nil
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		DialTimeout:  k.DialTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
	}
}

func (s SandboxConfig) toEngineConfig() engine.Config {
	return engine.Config{
		CgroupRoot:           s.CgroupRoot,
		SeccompDir:           s.SeccompDir,
		HelperPath:           s.HelperPath,
		StdoutStderrMaxBytes: s.StdoutStderrMaxBytes,
		EnableSeccomp:        s.EnableSeccomp,
		EnableCgroup:         s.EnableCgroup,
		EnableNamespaces:     s.EnableNamespaces,
	}
}
