// Api serves the stored headlines over HTTP.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	_ "golang.org/x/crypto/x509roots/fallback"

	juicemongo "github.com/jdholdren/juicer/internal/mongo"
	"github.com/jdholdren/juicer/internal/server"
	"github.com/jdholdren/juicer/logger"
)

type config struct {
	MongoURI        string `env:"MONGODB_URI, required"`
	MongoDatabase   string `env:"MONGODB_DATABASE, default=financialjuice"`
	MongoCollection string `env:"MONGODB_COLLECTION, default=news"`

	Port         int    `env:"PORT, default=4444"`
	CorsOrigin   string `env:"CORS_ORIGIN, default=*"`
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("error loading %s: %s", f, err)
		}
	}

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat))

	cli, err := juicemongo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("error connecting to mongo: %s", err)
	}
	repo := juicemongo.New(cli.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection))

	// Retry until mongo is reachable
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		if err := repo.Ping(ctx); err != nil {
			slog.Warn("waiting for mongo", "error", err)
			return retry.RetryableError(err)
		}

		return nil
	}); err != nil {
		log.Fatalf("error reaching mongo: %s", err)
	}

	// Start the application
	fx.New(
		fx.Supply(
			server.ServerConfig{
				Port:       cfg.Port,
				CorsOrigin: cfg.CorsOrigin,
			},
			fx.Annotate(repo, fx.As(new(server.Reader))),
		),
		server.Module,
		fx.Invoke(func(server.Server) {}), // Start the read API
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.StopHook(func(ctx context.Context) error {
				return cli.Disconnect(ctx)
			}))
		}),
	).Run()
}
