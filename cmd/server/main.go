// Command server runs the EncyclopedAI HTTP server and its maintenance
// commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/encyclopedai/encyclopedai/internal/cache"
	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/database"
	"github.com/encyclopedai/encyclopedai/internal/generator"
	"github.com/encyclopedai/encyclopedai/internal/generator/gemini"
	"github.com/encyclopedai/encyclopedai/internal/generator/openai"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/encyclopedai/encyclopedai/internal/service"
	"github.com/encyclopedai/encyclopedai/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "encyclopedai",
	Short: "Lazily generated encyclopedia server",
	Long: `encyclopedai serves an encyclopedia whose articles are written by a
language model the first time a patron asks for them.

Example usage:
  encyclopedai serve              # Run migrations and start the HTTP server
  encyclopedai migrate up         # Apply pending migrations
  encyclopedai migrate version    # Print the schema version
  encyclopedai links rebuild      # Recompute outgoing links for every article`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log = logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDatabase connects using the loaded configuration
func openDatabase() (*database.DB, error) {
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newGenerator builds the configured content provider, wrapped with
// tracing and metrics.
func newGenerator(ctx context.Context) (generator.ContentGenerator, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:          cfg.LLM.APIKey,
			Model:           cfg.LLM.Model,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Temperature:     cfg.LLM.Temperature,
		}, log)
		if err != nil {
			return nil, err
		}
		return generator.Instrument(g, "gemini"), nil
	default:
		g := openai.New(openai.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         cfg.LLM.Timeout,
		}, log)
		return generator.Instrument(g, "openai"), nil
	}
}

// newSearchCache returns the Redis cache when REDIS_URL is set. A cache that
// cannot be reached is logged and replaced by the no-op cache.
func newSearchCache(ctx context.Context) (cache.SearchCache, func()) {
	if cfg.Cache.RedisURL == "" {
		return cache.NoopSearchCache{}, func() {}
	}

	c, err := cache.NewRedisSearchCache(cfg.Cache.RedisURL, cfg.Cache.SearchCacheTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid REDIS_URL, search cache disabled")
		return cache.NoopSearchCache{}, func() {}
	}
	if err := c.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, search cache disabled")
		c.Close()
		return cache.NoopSearchCache{}, func() {}
	}

	log.Info().Msg("Search cache enabled")
	return c, func() { c.Close() }
}

// buildServices wires repositories, provider and cache into the services
func buildServices(ctx context.Context, db *database.DB) (*service.Services, func(), error) {
	gen, err := newGenerator(ctx)
	if err != nil {
		return nil, nil, err
	}
	searchCache, closeCache := newSearchCache(ctx)

	services := service.NewServices(service.Deps{
		Repos:     repository.New(db),
		Generator: gen,
		Cache:     searchCache,
	}, cfg, log)
	return services, closeCache, nil
}
