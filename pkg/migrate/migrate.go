package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations"
	// SQL files rely on jsonb and partial indexes, so goose always speaks
	// postgres. SQLite schemas come from AutoMigrateModels.
	dialect = "postgres"
)

// Command names a goose operation the migrate CLI can run against a live DB.
type Command string

const (
	CommandUp      Command = "up"
	CommandDown    Command = "down"
	CommandStatus  Command = "status"
	CommandVersion Command = "version"
)

// ErrVersionRequired is returned when CommandVersion has no target.
var ErrVersionRequired = errors.New("target version is required")

// ParseCommand accepts the goose commands that need a database.
func ParseCommand(raw string) (Command, bool) {
	switch c := Command(raw); c {
	case CommandUp, CommandDown, CommandStatus, CommandVersion:
		return c, true
	}
	return "", false
}

// Apply runs cmd against db. target is only read by CommandVersion.
func Apply(ctx context.Context, db *sql.DB, dir string, cmd Command, target string) error {
	if db == nil {
		return errors.New("db is required")
	}
	if dir == "" {
		return errors.New("migrations dir is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if cmd == CommandVersion {
		return migrateTo(ctx, db, dir, target)
	}
	if err := goose.RunContext(ctx, string(cmd), db, dir); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// migrateTo moves the schema up or down until it sits at target.
func migrateTo(ctx context.Context, db *sql.DB, dir, target string) error {
	if target == "" {
		return ErrVersionRequired
	}
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("version %q is not a goose timestamp: %w", target, err)
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case current < version:
		err = goose.UpToContext(ctx, db, dir, version)
	case current > version:
		err = goose.DownToContext(ctx, db, dir, version)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, version, err)
	}
	return nil
}
