// Juicer scrapes the latest headlines off the FinancialJuice live feed and
// keeps them in MongoDB for 48 hours.
//
// It runs forever: render the page, parse the headlines, upsert them, and
// sleep for a few minutes before going again.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/juicer/internal/cycle"
	"github.com/jdholdren/juicer/internal/juicer"
	"github.com/jdholdren/juicer/internal/metrics"
	juicemongo "github.com/jdholdren/juicer/internal/mongo"
	"github.com/jdholdren/juicer/internal/reconcile"
	"github.com/jdholdren/juicer/internal/render"
	"github.com/jdholdren/juicer/logger"
)

type config struct {
	MongoURI        string `env:"MONGODB_URI, required"`
	MongoDatabase   string `env:"MONGODB_DATABASE, default=financialjuice"`
	MongoCollection string `env:"MONGODB_COLLECTION, default=news"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	DisplayTimePolicy string        `env:"DISPLAY_TIME_POLICY, default=preserve"`
	MinSleep          time.Duration `env:"CYCLE_MIN_SLEEP, default=151s"`
	MaxSleep          time.Duration `env:"CYCLE_MAX_SLEEP, default=299s"`

	Headless          bool          `env:"HEADLESS, default=true"`
	NoSandbox         bool          `env:"CHROME_NO_SANDBOX, default=false"`
	DebugDir          string        `env:"DEBUG_DIR"`
	NavigationTimeout time.Duration `env:"NAVIGATION_TIMEOUT, default=90s"`
	FeedTimeout       time.Duration `env:"FEED_TIMEOUT, default=60s"`

	// Zero turns the metrics listener off
	MetricsPort int `env:"METRICS_PORT, default=0"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loadDotEnv(".env.local", ".env")

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat))

	policy, renderCfg, cycleCfg, err := settings(cfg)
	if err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	cli, err := juicemongo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("error connecting to mongo: %s", err)
	}
	defer func() {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := cli.Disconnect(downCtx); err != nil {
			slog.Error("error disconnecting from mongo", "error", err)
		}
	}()
	repo := juicemongo.New(cli.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection))

	// Start the application
	if err := run(ctx, cfg, repo, policy, renderCfg, cycleCfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

// Turns the env config into the settings of each component, checking them
// all before anything starts.
func settings(cfg config) (juicer.DisplayTimePolicy, render.Config, cycle.Config, error) {
	policy, err := juicer.ParseDisplayTimePolicy(cfg.DisplayTimePolicy)
	if err != nil {
		return "", render.Config{}, cycle.Config{}, err
	}

	cycleCfg := cycle.DefaultConfig()
	cycleCfg.Interval = juicer.Jitter{Min: cfg.MinSleep, Max: cfg.MaxSleep}
	if err := cycleCfg.Interval.Validate(); err != nil {
		return "", render.Config{}, cycle.Config{}, err
	}

	renderCfg := render.DefaultConfig()
	renderCfg.Headless = cfg.Headless
	renderCfg.NoSandbox = cfg.NoSandbox
	renderCfg.DebugDir = cfg.DebugDir
	renderCfg.NavigationTimeout = cfg.NavigationTimeout
	renderCfg.FeedTimeout = cfg.FeedTimeout
	if err := renderCfg.Validate(); err != nil {
		return "", render.Config{}, cycle.Config{}, err
	}

	return policy, renderCfg, cycleCfg, nil
}

// Loads the given env files when they exist. Values already in the
// environment win.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("error loading %s: %s", f, err)
		}
	}
}

func run(ctx context.Context, cfg config, repo juicemongo.Repo, policy juicer.DisplayTimePolicy, renderCfg render.Config, cycleCfg cycle.Config) error {
	slog.Info("running",
		"database", cfg.MongoDatabase,
		"collection", cfg.MongoCollection,
		"display_time_policy", policy,
		"headless", cfg.Headless,
		"metrics_port", cfg.MetricsPort,
	)

	reconciler := reconcile.New(repo, policy)

	// Give the store a few chances to come up before the first cycle. If it
	// never does, the reconciler tries again on every cycle.
	b := retry.WithMaxRetries(4, retry.NewFibonacci(1*time.Second))
	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := repo.EnsureExpiry(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		slog.Warn("error ensuring expiry index at startup", "error", err)
	} else {
		reconciler.MarkExpiryEnsured()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	scheduler := cycle.New(cycleCfg, render.New(renderCfg), reconciler, m)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := scheduler.Run(gCtx); err != nil {
			return fmt.Errorf("error running scheduler: %s", err)
		}

		return nil
	})

	if cfg.MetricsPort > 0 {
		s := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			Handler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}

		g.Go(func() error {
			// Start the metrics server
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("error listening: %s", err)
			}

			return nil
		})
		g.Go(func() error {
			// Block from shutting down until the group is canceled
			<-gCtx.Done()

			downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := s.Shutdown(downCtx); err != nil {
				slog.Error("error shutting down metrics server", "error", err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
