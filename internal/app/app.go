// Package app wires the configured cache tiers, the request client, the
// session and the views into one client, and drives the command-line
// front end.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mrchypark/vidtube"
	"github.com/mrchypark/vidtube/internal/config"
	"github.com/mrchypark/vidtube/pkg/api"
	"github.com/mrchypark/vidtube/pkg/mutation"
	"github.com/mrchypark/vidtube/pkg/policy"
	"github.com/mrchypark/vidtube/pkg/session"
	"github.com/mrchypark/vidtube/pkg/store/memstore"
	"github.com/mrchypark/vidtube/pkg/store/redisstore"
	"github.com/mrchypark/vidtube/pkg/views"
	"github.com/redis/go-redis/v9"
)

// App is a wired client.
type App struct {
	Deps  views.Deps
	redis *redis.Client
}

// New builds the client described by cfg. The redis tier is used only when
// cfg.Cache.RedisAddr is set and the server answers a ping.
func New(ctx context.Context, cfg config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	evict, err := policy.New(cfg.Cache.Policy)
	if err != nil {
		return nil, err
	}
	opts := []vidtube.Option{
		vidtube.WithHotStore(memstore.New(cfg.Cache.Capacity, evict)),
		vidtube.WithWorker(cfg.Worker.Strategy, cfg.Worker.PoolSize, cfg.Worker.QueueSize, cfg.Worker.JobTimeout),
	}

	a := &App{}
	if addr := cfg.Cache.RedisAddr; addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", addr, err)
		}
		a.redis = client
		cold := redisstore.New(client, log.With(logger, "tier", "redis"),
			redisstore.WithPrefix(cfg.Cache.RedisPrefix),
			redisstore.WithTTL(cfg.Cache.RedisTTL),
		)
		opts = append(opts, vidtube.WithColdStore(cold))
	}

	cache, err := vidtube.New(log.With(logger, "component", "cache"), opts...)
	if err != nil {
		a.closeRedis()
		return nil, err
	}

	client, err := api.NewClient(cfg.APIURL, api.WithLogger(log.With(logger, "component", "api")))
	if err != nil {
		cache.Close()
		a.closeRedis()
		return nil, err
	}

	notifier := mutation.LogNotifier{Logger: log.With(logger, "component", "notice")}
	a.Deps = views.Deps{
		API:      client,
		Cache:    cache,
		Session:  session.New(client, log.With(logger, "component", "session")),
		Runner:   mutation.NewRunner(cache, mutation.WithNotifier(notifier), mutation.WithLogger(logger)),
		Notifier: notifier,
		Logger:   logger,
	}
	level.Debug(logger).Log("msg", "client ready", "api", client.BaseURL(), "redis", cfg.Cache.RedisAddr != "")
	return a, nil
}

// Close releases the cache and the redis connection.
func (a *App) Close() {
	a.Deps.Cache.Close()
	a.closeRedis()
}

func (a *App) closeRedis() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// NewLogger returns a logfmt logger on w that drops entries below lvl.
// Unknown levels mean info.
func NewLogger(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(logger, levelOption(lvl))
}

func levelOption(lvl string) level.Option {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none", "off":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

// Options are the command-line inputs of Run.
type Options struct {
	ConfigPath string
	APIURL     string
	LogLevel   string
	Email      string
	Password   string
	Args       []string
	Out        io.Writer
	Err        io.Writer
}

// Run loads the configuration, builds the client, signs in when credentials
// are given and executes the command in opts.Args.
func Run(ctx context.Context, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	logger := NewLogger(opts.Err, cfg.Log.Level)

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Deps.Session.Init(ctx)
	if opts.Email != "" {
		if _, err := views.NewAuth(a.Deps).Login(ctx, opts.Email, opts.Password); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}
	return a.Exec(ctx, opts.Out, opts.Args)
}
