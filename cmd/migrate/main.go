package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"skill-exchange/internal/config"
	"skill-exchange/internal/database/migration"
	dbpostgres "skill-exchange/internal/database/postgres"
	"skill-exchange/internal/database/seeder"
	"skill-exchange/internal/pkg/logger"
	"skill-exchange/migrations"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	status := flag.Bool("status", false, "print applied and pending migrations, then exit")
	seed := flag.Bool("seed", true, "run seeders after migrating")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		fmt.Fprintf(os.Stderr, "migrations need STORE_DRIVER=%s, got %q\n", config.StoreDriverPostgres, cfg.Store.Driver)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel, cfg.App.IsDevelopment())

	if err := run(cfg, log, *dir, *status, *seed); err != nil {
		log.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
}

func run(cfg config.Config, log zerolog.Logger, dir string, status, seed bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if dir == "" {
		dir = cfg.Database.MigrationsDir
	}
	runner := migration.Runner{Dir: dir, FS: migrations.FS, Log: log}

	if status {
		rows, err := runner.Status(ctx, db.SQLDB())
		if err != nil {
			return fmt.Errorf("read migration status: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, s := range rows {
			applied := "pending"
			if s.Applied {
				applied = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
		}
		return w.Flush()
	}

	if err := runner.Run(ctx, db.SQLDB()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if seed {
		sr := seeder.Runner{Seeders: seeder.Defaults(), Log: log}
		if err := sr.Run(ctx, db); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	log.Info().Msg("database is up to date")
	return nil
}
