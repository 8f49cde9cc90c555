package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

const (
	migrationsDir   = "sql/migrations"
	migrationsTable = "schema_migrations"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("migrate up: negative steps %d", steps)
	}
	return s.withMigrate(ctx, func(m *migrate.Migrate) error {
		if steps == 0 {
			return ignoreNoChange(m.Up())
		}
		return ignoreNoChange(m.Steps(steps))
	})
}

// MigrateDown откатывает миграции.
// steps<=0 интерпретируется как 1 шаг для безопасного поведения.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrate(ctx, func(m *migrate.Migrate) error {
		return ignoreNoChange(m.Steps(-steps))
	})
}

// MigrationStatus возвращает текущую версию схемы и признак dirty.
// Пустая база даёт версию 0.
func (s *Store) MigrationStatus(ctx context.Context) (int64, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := s.withMigrate(ctx, func(m *migrate.Migrate) error {
		v, d, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query migration status: %w", err)
		}
		version, dirty = int64(v), d
		return nil
	})
	return version, dirty, err
}

// withMigrate открывает отдельное подключение: migrate.Close закрывает базу драйвера.
func (s *Store) withMigrate(ctx context.Context, fn func(m *migrate.Migrate) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("open migration connection: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{entry: s.logger}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			s.logger.WithFields(log.Fields{
				"source_error": srcErr,
				"db_error":     dbErr,
			}).Warn("close migrate instance")
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	return fn(m)
}

// ignoreNoChange считает успехом отсутствие изменений и неполный шаг.
func ignoreNoChange(err error) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	var short migrate.ErrShortLimit
	if errors.As(err, &short) {
		return nil
	}
	return fmt.Errorf("run migrations: %w", err)
}

// migrateLogger направляет лог golang-migrate в logrus.
type migrateLogger struct {
	entry *log.Entry
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return l.entry.Logger.IsLevelEnabled(log.DebugLevel)
}
