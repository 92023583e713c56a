package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	// EmbeddedDir is the directory name inside Migrations.
	EmbeddedDir = "migrations"

	dialect = "postgres"
)

// Migrations carries the SQL files compiled into every binary.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Source names a set of goose migrations. A nil FS means Dir is a path on disk.
type Source struct {
	FS  fs.FS
	Dir string
}

// Embedded returns the migrations compiled into the binary.
func Embedded() Source {
	return Source{FS: Migrations, Dir: EmbeddedDir}
}

// OnDisk returns the migrations under dir, for iterating on new files
// without rebuilding.
func OnDisk(dir string) Source {
	return Source{Dir: dir}
}

func (s Source) String() string {
	if s.FS == nil {
		return s.Dir
	}
	return "embedded:" + s.Dir
}

// files returns a filesystem rooted so that Dir can be read with fs helpers.
func (s Source) files() (fs.FS, string) {
	if s.FS == nil {
		return os.DirFS(s.Dir), "."
	}
	return s.FS, s.Dir
}

// use points goose at the source; the returned func restores the default.
func (s Source) use() (func(), error) {
	if s.Dir == "" {
		return nil, fmt.Errorf("migration dir is required")
	}
	goose.SetBaseFS(s.FS)
	if err := goose.SetDialect(dialect); err != nil {
		goose.SetBaseFS(nil)
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return func() { goose.SetBaseFS(nil) }, nil
}

// Run executes a standard goose command (up, down, status, ...).
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	restore, err := src.use()
	if err != nil {
		return err
	}
	defer restore()

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, db, src.Dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up or down to the requested version.
func MigrateToVersion(ctx context.Context, db *sql.DB, src Source, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	target, err := ParseVersion(targetVersion)
	if err != nil {
		return err
	}
	restore, err := src.use()
	if err != nil {
		return err
	}
	defer restore()

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, src.Dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, src.Dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

// ParseVersion parses a YYYYMMDDHHMMSS migration version.
func ParseVersion(version string) (int64, error) {
	if len(version) != 14 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	return target, nil
}
