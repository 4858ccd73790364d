package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/signalnest/magpie/internal/db"
	"github.com/signalnest/magpie/internal/util"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/logger/console"
	"github.com/signalnest/magpie/pkg/store"
	"github.com/signalnest/magpie/pkg/store/lite"
	pgxstore "github.com/signalnest/magpie/pkg/store/pgx"

	_ "github.com/lib/pq"
)

var dbFlag string

var rootCmd = &cobra.Command{
	Use:   "magpie",
	Short: "Inspect and maintain the signal knowledge graph",
	Long: `magpie talks directly to a knowledge graph store, either a Postgres
DSN or a SQLite file. It covers the read paths (search, entity detail,
funding and hiring queries) and the operator paths (resolution,
validation, export, snapshots).`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// openStore connects to whatever --db points at. Postgres DSNs get the
// pooled store with migrations applied; anything else is treated as a
// SQLite path.
func openStore(ctx context.Context) (store.GraphStore, func(), error) {
	dsn := dbFlag
	if dsn == "" {
		dsn = util.GetEnv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, nil, errors.New("no database configured: pass --db or set DATABASE_URL")
	}
	return openDSN(ctx, dsn)
}

func openDSN(ctx context.Context, dsn string) (store.GraphStore, func(), error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if err := db.Migrate(dsn); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return pgxstore.NewGraphDBStore(pool), pool.Close, nil
	}

	s, err := lite.NewGraphLiteStore(dsn)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func main() {
	util.LoadEnv()

	// Keep stdout clean for command output; store and job logs only
	// show up when debugging.
	if util.GetEnvBool("DEBUG", false) {
		logger.Init(console.New(console.Params{Debug: true, Prefix: "magpie"}))
	}

	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "store DSN (postgres:// or a SQLite file path)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
