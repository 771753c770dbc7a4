// Package main is the entry point for the Vaultbox admin CLI.
// It manages users and runs maintenance tasks directly against the
// configured database and storage backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/app"
	"github.com/prn-tf/vaultbox/internal/config"
	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/logging"
	"github.com/prn-tf/vaultbox/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// operator is the identity the CLI acts as. It never matches a stored user,
// so self-deletion checks cannot trigger.
var operator = &domain.Identity{
	UserID:   "vaultbox-admin",
	Username: "vaultbox-admin",
	Role:     domain.RoleAdmin,
}

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("Vaultbox Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		err = userCommand(args)

	case "reconcile":
		err = reconcileCommand(args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// withApp loads configuration, builds the application and passes it to fn.
func withApp(configPath string, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Keep CLI output readable: only warnings and worse go to the log.
	logger := logging.New(cfg.Logging).Level(zerolog.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func userCommand(args []string) error {
	if len(args) < 1 {
		printUserUsage()
		return errUsage
	}

	sub := args[0]
	fs := flag.NewFlagSet("user "+sub, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")

	switch sub {
	case "create":
		username := fs.String("username", "", "username (required)")
		role := fs.String("role", string(domain.RoleUser), "role: admin or user")
		password := fs.String("password", "", "password (prompted when omitted)")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		if *username == "" {
			fmt.Fprintln(os.Stderr, "--username is required")
			return errUsage
		}
		if *password == "" {
			pw, err := promptPassword(os.Stderr)
			if err != nil {
				return err
			}
			*password = pw
		}

		return withApp(*configPath, func(ctx context.Context, a *app.App) error {
			out, err := a.UserService.CreateUser(ctx, operator, service.CreateUserInput{
				Username: *username,
				Password: *password,
				Role:     *role,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (%s)\n", *username, out.UserID)
			return nil
		})

	case "list":
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		return withApp(*configPath, func(ctx context.Context, a *app.App) error {
			users, err := a.UserService.ListUsers(ctx, operator)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, u.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		})

	case "delete":
		userID := fs.String("id", "", "user ID (required)")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		if *userID == "" {
			fmt.Fprintln(os.Stderr, "--id is required")
			return errUsage
		}
		return withApp(*configPath, func(ctx context.Context, a *app.App) error {
			out, err := a.UserService.DeleteUser(ctx, operator, *userID)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted user %s, removed %d file(s)\n", *userID, out.PurgedObjects)
			if out.OrphanedObjects {
				fmt.Println("Some files could not be removed; run 'vaultbox-admin reconcile' to clean them up")
			}
			return nil
		})

	default:
		fmt.Fprintf(os.Stderr, "Unknown user command: %s\n\n", sub)
		printUserUsage()
		return errUsage
	}
}

func reconcileCommand(args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	dryRun := fs.Bool("dry-run", false, "report orphaned files without deleting them")
	batchSize := fs.Int("batch-size", 0, "maximum orphaned owners to process (default from config)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	return withApp(*configPath, func(ctx context.Context, a *app.App) error {
		rc := service.ReconcileConfig{
			Interval:  a.Config.Reconcile.Interval,
			BatchSize: a.Config.Reconcile.BatchSize,
			DryRun:    *dryRun,
		}
		if *batchSize > 0 {
			rc.BatchSize = *batchSize
		}

		r := service.NewReconciler(a.DB.Repos.Object, a.FileService, a.Locker, a.Metrics, a.Logger, rc)
		result := r.RunOnce(ctx)

		switch {
		case result.Skipped:
			fmt.Println("Another reconciler holds the lock; nothing done")
		case *dryRun:
			fmt.Printf("Dry run: %d orphaned owner(s), %d file(s) would be removed\n", result.OrphanOwners, result.ObjectsPurged)
		default:
			fmt.Printf("Reconciled %d orphaned owner(s), removed %d file(s) in %s\n",
				result.OrphanOwners, result.ObjectsPurged, result.Duration)
		}
		if result.Errors > 0 {
			return fmt.Errorf("reconciliation finished with %d error(s)", result.Errors)
		}
		return nil
	})
}

func printUsage() {
	fmt.Println(`Vaultbox Admin CLI

Usage:
  vaultbox-admin <command> [arguments]

Commands:
  user        Manage users (create, list, delete)
  reconcile   Remove files whose owner no longer exists
  version     Print version information
  help        Show this help message

Examples:
  vaultbox-admin user create --username alice --role user
  vaultbox-admin user list
  vaultbox-admin user delete --id <uuid>
  vaultbox-admin reconcile --dry-run

Every command accepts --config <path>.`)
}

func printUserUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  vaultbox-admin user create --username <name> [--role admin|user] [--password <pw>]
  vaultbox-admin user list
  vaultbox-admin user delete --id <uuid>`)
}
