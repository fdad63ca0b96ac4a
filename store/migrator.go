package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migration
var migrationFS embed.FS

// dialects maps a profile driver name to its sql-migrate dialect.
var dialects = map[string]string{
	"postgres": "postgres",
	"sqlite":   "sqlite3",
}

func (s *Store) migrationSource() (*migrate.EmbedFileSystemMigrationSource, string, error) {
	dialect, ok := dialects[s.profile.Driver]
	if !ok {
		return nil, "", errors.Errorf("unsupported driver %q", s.profile.Driver)
	}
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migration/" + s.profile.Driver,
	}, dialect, nil
}

// Migrate applies every pending schema migration.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		slog.Info("database is empty, creating schema", "driver", s.profile.Driver)
	}

	source, dialect, err := s.migrationSource()
	if err != nil {
		return err
	}
	n, err := migrate.Exec(s.driver.GetDB(), dialect, source, migrate.Up)
	if err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	if n > 0 {
		slog.Info("applied migrations", "count", n)
	}
	return nil
}

// MigrationStatus lists applied and pending migrations, one line each.
func (s *Store) MigrationStatus() ([]string, error) {
	source, dialect, err := s.migrationSource()
	if err != nil {
		return nil, err
	}
	plan, _, err := migrate.PlanMigration(s.driver.GetDB(), dialect, source, migrate.Up, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to plan migrations")
	}
	records, err := migrate.GetMigrationRecords(s.driver.GetDB(), dialect)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read migration records")
	}

	lines := make([]string, 0, len(records)+len(plan))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("applied  %s  %s", r.Id, r.AppliedAt.Format("2006-01-02 15:04:05")))
	}
	for _, m := range plan {
		lines = append(lines, fmt.Sprintf("pending  %s", m.Id))
	}
	return lines, nil
}
