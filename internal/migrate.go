package internal

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Server and worker both migrate on startup; the lock serialises them.
const migrationLockID = 4180533201

// Advisory locks belong to a session, so lock and unlock share one connection.
func withMigrationLock(ctx context.Context, pool *pgxpool.Pool, fn func() error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()
	return fn()
}

func newLessonMigrator(pool *pgxpool.Pool) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, "pgx5://"+pool.Config().ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// MigrateUp applies the river queue schema and then the lessons schema.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) error {
	return withMigrationLock(ctx, pool, func() error {
		riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			return fmt.Errorf("failed to create river migrator: %w", err)
		}
		res, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
		if err != nil {
			return fmt.Errorf("failed to migrate river schema: %w", err)
		}
		for _, v := range res.Versions {
			log.WithField("version", v.Version).Info("applied river migration")
		}

		m, err := newLessonMigrator(pool)
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to migrate lessons schema: %w", err)
		}
		version, _, _ := m.Version()
		log.WithField("version", version).Info("lessons schema up to date")
		return nil
	})
}

// MigrateDown removes the lessons schema and then the river queue schema.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool) error {
	return withMigrationLock(ctx, pool, func() error {
		m, err := newLessonMigrator(pool)
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back lessons schema: %w", err)
		}

		riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			return fmt.Errorf("failed to create river migrator: %w", err)
		}
		if _, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionDown, &rivermigrate.MigrateOpts{TargetVersion: -1}); err != nil {
			return fmt.Errorf("failed to roll back river schema: %w", err)
		}
		return nil
	})
}
