package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ordering-backend/pkg/config"
	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
	"github.com/angelmondragon/ordering-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

var errUsage = errors.New("usage: migrate -cmd up|down|status|version|create|validate|automigrate [-dir DIR] [-name NAME] [-version TS]")

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(context.Background(), opts, os.Stdout, logg); err != nil {
		logg.Error(context.Background(), "migrate.failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate|automigrate")
	fs.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	fs.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	fs.StringVar(&opts.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	if err := fs.Parse(args); err != nil {
		return opts, errUsage
	}
	return opts, nil
}

// run dispatches offline commands before touching config or the database.
func run(ctx context.Context, opts options, out io.Writer, logg *logger.Logger) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("create: -name is required")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created", path)
		return nil
	case "validate":
		names, err := migrate.ValidateDir(opts.dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d migrations ok\n", len(names))
		return nil
	}

	command, ok := migrate.ParseCommand(opts.cmd)
	if !ok && opts.cmd != "automigrate" {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd, "dir": opts.dir})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	if opts.cmd == "automigrate" {
		if err := migrate.AutoMigrateModels(client.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.automigrate.done")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if err := migrate.Apply(ctx, sqlDB, opts.dir, command, opts.version); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.done")
	return nil
}
