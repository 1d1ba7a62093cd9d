package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"vending-kernel/config"
	"vending-kernel/migrations"
	"vending-kernel/pkg/logger"
	"vending-kernel/pkg/migrate"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|validate")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if *cmd == "validate" {
		if err := migrate.Validate(migrations.FS); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Component(logger.New(cfg.Log.Level, cfg.Log.Pretty), "migrate")

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx := context.Background()
	log.Info().Str("cmd", *cmd).Msg("migrate ready")

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, db, migrations.FS, *cmd)
	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		err = migrate.MigrateToVersion(ctx, db, migrations.FS, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Str("cmd", *cmd).Msg("migration failed")
		os.Exit(1)
	}
}
