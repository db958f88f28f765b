package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/busdle/internal/buses"
	"github.com/robalobadob/busdle/internal/database"
	"github.com/robalobadob/busdle/internal/game"
	"github.com/robalobadob/busdle/internal/httpserver"
	"github.com/robalobadob/busdle/internal/store"
)

const releaseVersion = "0.1.0"

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("busdle exited")
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "busdle",
		Short:         "Bus ride log and the daily Busdle guessing game.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
			return cfg.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database (env: DB_PATH)")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "zerolog level (env: LOG_LEVEL)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	for _, c := range []*cobra.Command{root, serveCmd} {
		fs := c.Flags()
		fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: PORT)")
		fs.StringVar(&cfg.StateBackend, "state-backend", cfg.StateBackend, "game state store: sqlite, memory or redis (env: STATE_BACKEND)")
		fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the redis state backend (env: REDIS_ADDR)")
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.OpenMigrated(cfg.DBPath)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}

	bankCmd := &cobra.Command{
		Use:   "bank",
		Short: "Print the fallback bus bank in display order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := buses.DefaultBank()
			if err != nil {
				return err
			}
			for _, b := range bank {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd, bankCmd)
	root.CompletionOptions.HiddenDefaultCmd = true
	return root
}

func serve(ctx context.Context, cfg *Config) error {
	bank, err := buses.DefaultBank()
	if err != nil {
		return fmt.Errorf("load bus bank: %w", err)
	}

	db, err := database.OpenMigrated(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	states, closeStates, err := openStateStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStates()

	srv := httpserver.New(cfg.HTTP, db, states, bank)
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().
		Str("addr", addr).
		Str("db", cfg.DBPath).
		Str("stateBackend", cfg.StateBackend).
		Int("bank", len(bank)).
		Msg("starting busdle")
	return srv.Start(ctx, addr)
}

func openStateStore(ctx context.Context, cfg *Config, db *sql.DB) (game.StateStore, func(), error) {
	switch cfg.StateBackend {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(cfg.redisOptions())
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return store.NewRedisStore(client, cfg.RedisTTL), func() { _ = client.Close() }, nil
	default:
		return store.NewSQLiteStore(db), func() {}, nil
	}
}
