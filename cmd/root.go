package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/taxassign/internal/cache"
	"github.com/abhisek/taxassign/internal/config"
	"github.com/abhisek/taxassign/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "taxassign",
	Short:        "Taxonomic assignment of sequence search hits",
	Long:         "taxassign assigns each query sequence to the most specific taxon its BLAST hits agree on.",
	SilenceUsage: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to taxassign.toml (overrides TAXASSIGN_CONFIG env var)")
	pf.String("db", "", "Path to SQLite database file (overrides TAXASSIGN_DB env var)")
	pf.String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(taxonomyCmd)
	rootCmd.AddCommand(assignmentsCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration file and applies persistent flag
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if _, err := config.ParseLevel(level); err != nil {
			return nil, err
		}
		cfg.Log.Level = level
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return cfg.Log.Logger(cmd.ErrOrStderr())
}

// resolveDBPath returns the driver and DSN using --db flag (highest
// priority), then the configured DSN, then TAXASSIGN_DB env var, then the
// default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (driver, dsn string, err error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return store.DriverSQLite, p, store.EnsureDir(p)
	}
	if cfg.Database.DSN != "" {
		return cfg.Database.Driver, cfg.Database.DSN, nil
	}
	p, err := store.DefaultDBPath()
	return store.DriverSQLite, p, err
}

// openStore opens the taxonomy store with the Redis row cache when one is
// configured. The returned func releases both.
func openStore(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*store.Store, func(), error) {
	ctx := cmd.Context()

	driver, dsn, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database path: %w", err)
	}

	opts := []store.Option{store.WithLogger(logger)}
	closeCache := func() {}
	if cfg.Cache.Enabled() {
		client, err := cache.Dial(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect cache: %w", err)
		}
		closeCache = func() { client.Close() }
		opts = append(opts, store.WithCache(cache.NewRedis(client, cache.WithTTL(cfg.Cache.TTLDuration()))))
		logger.Debug("taxonomy cache enabled", "ttl", cfg.Cache.TTL)
	}

	s, err := store.Open(ctx, driver, dsn, opts...)
	if err != nil {
		closeCache()
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return s, func() {
		s.Close()
		closeCache()
	}, nil
}

// setup loads the configuration, builds the logger and opens the store.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, *store.Store, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := newLogger(cmd, cfg)
	s, closeFn, err := openStore(cmd, cfg, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, logger, s, closeFn, nil
}
