// Package main is the entry point for the Vaultbox database migration tool.
// It applies the embedded schema migrations to the configured database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/vaultbox/internal/app"
	"github.com/prn-tf/vaultbox/internal/config"
	"github.com/prn-tf/vaultbox/internal/logging"
	"github.com/prn-tf/vaultbox/internal/repository"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Vaultbox Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	case "up", "down", "status", "schema-version":

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(os.Args[2:])

	if err := run(command, *configPath); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration command failed")
	}
}

func run(command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false

	ctx := context.Background()
	db, err := app.OpenDatabase(ctx, dbCfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	switch command {
	case "up":
		return db.Migrator.Migrate(ctx)
	case "down":
		return db.Migrator.MigrateDown(ctx)
	case "status":
		states, err := db.Migrator.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		printStatus(states)
	case "schema-version":
		v, err := db.Migrator.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
	}
	return nil
}

func printStatus(states []repository.MigrationState) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSOURCE\tSTATE")
	for _, s := range states {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Source, state)
	}
	_ = w.Flush()
}

func printUsage() {
	fmt.Println(`Vaultbox Migration Tool

Usage:
  vaultbox-migrate <command> [-config path]

Commands:
  up              Apply all pending migrations
  down            Roll back the last migration
  status          Show the state of every migration
  schema-version  Print the current schema version
  version         Print version information
  help            Show this help message

The database is selected by the same configuration as vaultbox-server
(config file or VAULTBOX_DATABASE_* environment variables).

Examples:
  vaultbox-migrate up
  vaultbox-migrate status -config /etc/vaultbox/config.yaml
  VAULTBOX_DATABASE_DRIVER=postgres vaultbox-migrate up`)
}
