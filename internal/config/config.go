package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// Storage backend names accepted by the storage key.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageBolt   = "bolt"
	StorageMinio  = "minio"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string   `yaml:"port"`
	LogLevel                string   `yaml:"logLevel"`
	Storage                 string   `yaml:"storage"`
	Capacity                int      `yaml:"capacity"`
	KeyPrefix               string   `yaml:"keyPrefix"`
	APITokenSecret          string   `yaml:"apiTokenSecret"`
	CORSOrigins             []string `yaml:"corsOrigins"`
	RedisAddr               string   `yaml:"redisAddr"`
	RedisPassword           string   `yaml:"redisPassword"`
	BoltPath                string   `yaml:"boltPath"`
	MinioEndpoint           string   `yaml:"minioEndpoint"`
	MinioAccessKey          string   `yaml:"minioAccessKey"`
	MinioSecretKey          string   `yaml:"minioSecretKey"`
	MinioBucket             string   `yaml:"minioBucket"`
	MinioUseSSL             bool     `yaml:"minioUseSSL"`
	AMQPURL                 string   `yaml:"amqpURL"`
	WriteRateLimitPerMinute int      `yaml:"writeRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("HISTORY_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("HISTORY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("HISTORY_STORAGE"); v != "" {
		cfg.Storage = strings.TrimSpace(v)
	}
	if v := os.Getenv("HISTORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Capacity = n
		}
	}
	if v := os.Getenv("HISTORY_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = strings.TrimSpace(v)
	}
	if v := os.Getenv("HISTORY_API_TOKEN_SECRET"); v != "" {
		cfg.APITokenSecret = v
	}
	if v := os.Getenv("HISTORY_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("HISTORY_BOLT_PATH"); v != "" {
		cfg.BoltPath = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("HISTORY_WRITE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.WriteRateLimitPerMinute = n
		}
	}
	if cfg.Storage == "" {
		cfg.Storage = StorageMemory
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.Storage {
	case StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for redis storage (set in config.yaml or REDIS_ADDR)")
		}
	case StorageBolt:
		if strings.TrimSpace(cfg.BoltPath) == "" {
			return errors.New("config: boltPath is required for bolt storage (set in config.yaml or HISTORY_BOLT_PATH)")
		}
	case StorageMinio:
		if strings.TrimSpace(cfg.MinioEndpoint) == "" || strings.TrimSpace(cfg.MinioBucket) == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for minio storage")
		}
	default:
		return fmt.Errorf("config: unknown storage %q (memory, redis, bolt, minio)", cfg.Storage)
	}
	if cfg.Capacity < 0 {
		return errors.New("config: capacity must be >= 0")
	}
	if cfg.WriteRateLimitPerMinute < 0 {
		return errors.New("config: writeRateLimitPerMinute must be >= 0")
	}
	if cfg.WriteRateLimitPerMinute > 0 && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for distributed rate limiting")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
