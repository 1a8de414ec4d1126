// Command migrate prepares the Postgres schema the River retry queue
// needs. It is only required when webhookd runs with DATABASE_URL set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
		down        = flag.Bool("down", false, "Migrate down instead of up")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if *databaseURL == "" {
		log.Error("database URL required (flag -database-url or env DATABASE_URL)")
		os.Exit(1)
	}

	if err := run(context.Background(), *databaseURL, *down, log); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, down bool, log *slog.Logger) error {
	dbPool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(dbPool), nil)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	direction := rivermigrate.DirectionUp
	if down {
		direction = rivermigrate.DirectionDown
	}

	res, err := migrator.Migrate(ctx, direction, &rivermigrate.MigrateOpts{})
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	for _, v := range res.Versions {
		log.Info("applied migration", "version", v.Version, "name", v.Name)
	}
	if len(res.Versions) == 0 {
		log.Info("database already up to date")
	}
	return nil
}
