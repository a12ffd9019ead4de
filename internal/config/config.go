// Package config loads the client configuration from a TOML file.
//
// Resolution order for the file: the path given to Load, otherwise
// ~/.config/vidtube/config.toml. A missing file is not an error; every field
// falls back to its default. VIDTUBE_API_URL, when set, replaces api_url.
//
// Example config.toml:
//
//	api_url = "http://localhost:8000/api/v1"
//
//	[cache]
//	capacity = 67108864
//	policy = "sieve"
//	redis_addr = "127.0.0.1:6379"
//	redis_prefix = "vidtube"
//	redis_ttl = "10m"
//
//	[worker]
//	strategy = "pool"
//	pool_size = 1
//	queue_size = 500
//	job_timeout = "30s"
//
//	[log]
//	level = "info"
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// EnvAPIURL overrides api_url.
const EnvAPIURL = "VIDTUBE_API_URL"

const (
	defaultConfigPath  = "~/.config/vidtube/config.toml"
	defaultAPIURL      = "http://localhost:8000/api/v1"
	defaultCapacity    = 64 << 20
	defaultPolicy      = "lru"
	defaultRedisPrefix = "vidtube"
	defaultStrategy    = "pool"
	defaultPoolSize    = 1
	defaultQueueSize   = 500
	defaultJobTimeout  = 30 * time.Second
	defaultLogLevel    = "info"
)

type Config struct {
	APIURL string
	Cache  CacheConfig
	Worker WorkerConfig
	Log    LogConfig
}

// CacheConfig sizes the in-memory tier and optionally enables the redis
// tier. An empty RedisAddr disables redis.
type CacheConfig struct {
	Capacity    int64
	Policy      string
	RedisAddr   string
	RedisPrefix string
	RedisTTL    time.Duration
}

type WorkerConfig struct {
	Strategy   string
	PoolSize   int
	QueueSize  int
	JobTimeout time.Duration
}

type LogConfig struct {
	Level string
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL: defaultAPIURL,
		Cache: CacheConfig{
			Capacity:    defaultCapacity,
			Policy:      defaultPolicy,
			RedisPrefix: defaultRedisPrefix,
		},
		Worker: WorkerConfig{
			Strategy:   defaultStrategy,
			PoolSize:   defaultPoolSize,
			QueueSize:  defaultQueueSize,
			JobTimeout: defaultJobTimeout,
		},
		Log: LogConfig{Level: defaultLogLevel},
	}
}

type rawConfig struct {
	APIURL string `toml:"api_url"`
	Cache  struct {
		Capacity    int64  `toml:"capacity"`
		Policy      string `toml:"policy"`
		RedisAddr   string `toml:"redis_addr"`
		RedisPrefix string `toml:"redis_prefix"`
		RedisTTL    string `toml:"redis_ttl"`
	} `toml:"cache"`
	Worker struct {
		Strategy   string `toml:"strategy"`
		PoolSize   int    `toml:"pool_size"`
		QueueSize  int    `toml:"queue_size"`
		JobTimeout string `toml:"job_timeout"`
	} `toml:"worker"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load reads the config at path, or at the default location when path is
// blank.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
		applyEnv(&cfg)
		return cfg, nil
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := merge(&cfg, raw); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func merge(cfg *Config, raw rawConfig) error {
	setString(&cfg.APIURL, raw.APIURL)

	if raw.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", raw.Cache.Capacity)
	}
	if raw.Cache.Capacity > 0 {
		cfg.Cache.Capacity = raw.Cache.Capacity
	}
	setString(&cfg.Cache.Policy, strings.ToLower(raw.Cache.Policy))
	setString(&cfg.Cache.RedisAddr, raw.Cache.RedisAddr)
	setString(&cfg.Cache.RedisPrefix, raw.Cache.RedisPrefix)
	if err := setDuration(&cfg.Cache.RedisTTL, "cache.redis_ttl", raw.Cache.RedisTTL); err != nil {
		return err
	}

	setString(&cfg.Worker.Strategy, strings.ToLower(raw.Worker.Strategy))
	if raw.Worker.PoolSize > 0 {
		cfg.Worker.PoolSize = raw.Worker.PoolSize
	}
	if raw.Worker.QueueSize > 0 {
		cfg.Worker.QueueSize = raw.Worker.QueueSize
	}
	if err := setDuration(&cfg.Worker.JobTimeout, "worker.job_timeout", raw.Worker.JobTimeout); err != nil {
		return err
	}

	setString(&cfg.Log.Level, strings.ToLower(raw.Log.Level))
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.APIURL, os.Getenv(EnvAPIURL))
}

// setString replaces dst with v unless v is blank.
func setString(dst *string, v string) {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		*dst = trimmed
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative, got %s", field, d)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
