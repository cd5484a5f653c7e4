// Readnews prints the latest stored headlines.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback"

	juicemongo "github.com/jdholdren/juicer/internal/mongo"
)

type config struct {
	MongoURI        string `env:"MONGODB_URI, required"`
	MongoDatabase   string `env:"MONGODB_DATABASE, default=financialjuice"`
	MongoCollection string `env:"MONGODB_COLLECTION, default=news"`
}

var (
	limit  int
	format string
)

var rootCmd = &cobra.Command{
	Use:   "readnews",
	Short: "Print the latest scraped headlines",
	Long: `readnews prints the most recently seen headlines, newest first.

Examples:
  readnews                     # Latest 10 as a table
  readnews --limit 25          # Latest 25
  readnews --format json       # As JSON`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReadNews,
}

func init() {
	rootCmd.Flags().IntVar(&limit, "limit", 10, "how many headlines to print")
	rootCmd.Flags().StringVar(&format, "format", formatTable, "output format: table or json")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func runReadNews(cmd *cobra.Command, args []string) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	if format != formatTable && format != formatJSON {
		return fmt.Errorf("unknown format %q", format)
	}

	// Missing files are fine, the environment might already be set
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}

	ctx := cmd.Context()
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	cli, err := juicemongo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = cli.Disconnect(downCtx)
	}()

	repo := juicemongo.New(cli.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection))
	headlines, err := repo.LatestHeadlines(ctx, limit)
	if err != nil {
		return err
	}

	return write(cmd.OutOrStdout(), format, headlines)
}
