package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-envconfig"

	"blockhost/internal/config"
	"blockhost/internal/infra/postgres"
	"blockhost/migrations"
)

func main() {
	var (
		down  = flag.Bool("down", false, "roll back the most recent migration instead of migrating up")
		reset = flag.Bool("reset", false, "roll back all migrations")
	)
	flag.Parse()

	ctx := context.Background()

	_ = godotenv.Load()

	var cfg config.PostgresConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper("DB_", envconfig.OsLookuper()),
	}); err != nil {
		log.Fatalf("env processing: %v", err)
	}

	db, err := postgres.New(ctx, postgres.WithDSN(cfg.DSN))
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set goose dialect: %v", err)
	}

	switch {
	case *reset:
		err = goose.DownToContext(ctx, db.DB.DB, ".", 0)
	case *down:
		err = goose.DownContext(ctx, db.DB.DB, ".")
	default:
		err = goose.UpContext(ctx, db.DB.DB, ".")
	}
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}

	fmt.Fprintln(os.Stdout, "migrations complete")
}
