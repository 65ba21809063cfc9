// Package main provides a CLI tool for CineFlix database migrations.
// Migrations are embedded in the binary and tracked in schema_migrations.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cineflix/cineflix/internal/config"
	"github.com/cineflix/cineflix/internal/logger"
	"github.com/cineflix/cineflix/migrations"
)

// Version is set at build time
var Version = "dev"

const defaultMigrationTimeout = 5 * time.Minute

// Options holds migration run options
type Options struct {
	DatabaseURL string
	Timeout     time.Duration
	DryRun      bool
}

func main() {
	var (
		timeout = flag.Duration("timeout", defaultMigrationTimeout, "Lock and connect timeout")
		dryRun  = flag.Bool("dry-run", false, "Show what would be done without executing")
		version = flag.Bool("version", false, "Print version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Database migration tool for CineFlix\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  up [N]     Apply all or N up migrations\n")
		fmt.Fprintf(os.Stderr, "  down [N]   Roll back all or N migrations\n")
		fmt.Fprintf(os.Stderr, "  goto V     Migrate to version V\n")
		fmt.Fprintf(os.Stderr, "  force V    Set version V without running migrations\n")
		fmt.Fprintf(os.Stderr, "  version    Print current migration version\n")
		fmt.Fprintf(os.Stderr, "  drop       Drop all tables (asks for confirmation)\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nThe database is configured with DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME and DB_SSLMODE.\n")
	}

	flag.Parse()

	if *version {
		fmt.Printf("migrate version %s\n", Version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	log := logger.New(logger.DefaultConfig())
	cfg := config.Load()

	opts := &Options{
		DatabaseURL: cfg.Database.URL(),
		Timeout:     *timeout,
		DryRun:      *dryRun,
	}

	if err := runCommand(opts, log, args[0], args[1:]); err != nil {
		log.Error("Migration command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

// runCommand executes the specified migration command
func runCommand(opts *Options, log *slog.Logger, cmd string, args []string) error {
	switch cmd {
	case "version":
		return showVersion(opts, log)
	case "up", "down":
		steps, err := optionalInt(args)
		if err != nil {
			return err
		}
		if cmd == "down" {
			steps = -steps
		}
		return migrateSteps(opts, log, cmd, steps)
	case "goto":
		if len(args) < 1 {
			return errors.New("goto requires a version number")
		}
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		return migrateGoto(opts, log, uint(v))
	case "force":
		if len(args) < 1 {
			return errors.New("force requires a version number")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		return migrateForce(opts, log, v)
	case "drop":
		return migrateDrop(opts, log)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func optionalInt(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number of steps: %s", args[0])
	}
	return n, nil
}

// showVersion displays the current migration version
func showVersion(opts *Options, log *slog.Logger) error {
	m, err := newMigrate(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations have been applied yet")
			return nil
		}
		return fmt.Errorf("failed to get version: %w", err)
	}

	log.Info("Current migration version", "version", version, "dirty", dirty)
	return nil
}

// migrateSteps applies steps migrations; 0 means all up or all down
func migrateSteps(opts *Options, log *slog.Logger, direction string, steps int) error {
	if opts.DryRun {
		log.Info("[DRY RUN] Would apply migrations", "direction", direction, "steps", steps)
		return nil
	}

	m, err := newMigrate(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	currentVersion, _, _ := m.Version()
	log.Info("Starting migration", "direction", direction, "from", currentVersion)

	switch {
	case steps != 0:
		err = m.Steps(steps)
	case direction == "down":
		err = m.Down()
	default:
		err = m.Up()
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No migrations to apply", "direction", direction)
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	newVersion, _, _ := m.Version()
	log.Info("Migration completed", "from", currentVersion, "to", newVersion)
	return nil
}

// migrateGoto migrates to a specific version
func migrateGoto(opts *Options, log *slog.Logger, version uint) error {
	if opts.DryRun {
		log.Info("[DRY RUN] Would migrate", "to", version)
		return nil
	}

	m, err := newMigrate(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	currentVersion, _, _ := m.Version()
	if err := m.Migrate(version); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Already at version", "version", version)
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("Migration completed", "from", currentVersion, "to", version)
	return nil
}

// migrateForce sets the version without running migrations
func migrateForce(opts *Options, log *slog.Logger, version int) error {
	if opts.DryRun {
		log.Info("[DRY RUN] Would force version", "version", version)
		return nil
	}

	m, err := newMigrate(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Force(version); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}

	log.Info("Version forced", "version", version)
	return nil
}

// migrateDrop drops all tables after an interactive confirmation
func migrateDrop(opts *Options, log *slog.Logger) error {
	if opts.DryRun {
		log.Info("[DRY RUN] Would drop all tables")
		return nil
	}

	fmt.Fprint(os.Stderr, "This drops ALL tables, including users and login history. Type 'yes' to confirm: ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(answer) != "yes" {
		log.Info("Drop aborted")
		return nil
	}

	m, err := newMigrate(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Drop(); err != nil {
		return fmt.Errorf("drop failed: %w", err)
	}

	log.Info("All tables dropped")
	return nil
}

// newMigrate opens the database and builds a migrate instance over the
// embedded migration files
func newMigrate(opts *Options) (*migrate.Migrate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	db, err := sql.Open("pgx", opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.LockTimeout = opts.Timeout
	return m, nil
}
