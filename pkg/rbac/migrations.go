package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all group role migrations. The statements stay
// within the SQL shared by PostgreSQL and SQLite.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create rbac_group_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS rbac_group_roles (
					group_id VARCHAR(64) PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					group_type VARCHAR(32) NOT NULL,
					department VARCHAR(255),
					problem_type_sub VARCHAR(255),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)
			`,
		},
		{
			Version:     2,
			Description: "Index rbac_group_roles by type",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_rbac_group_roles_group_type ON rbac_group_roles(group_type)`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, log *logrus.Logger) error {
	if log == nil {
		log = logrus.New()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		log.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SeedFallbackRoles writes the built-in group roles when the table is empty,
// so a fresh database starts out equivalent to the fallback configuration
func SeedFallbackRoles(ctx context.Context, store *Store) error {
	existing, err := store.FetchGroupRoles(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, role := range FallbackGroupRoles() {
		raw := RawGroupRole{
			Title:     role.Title,
			GroupID:   role.GroupID,
			GroupType: string(role.Kind),
			IsActive:  role.IsActive,
		}
		if role.Kind == KindSubtype {
			raw.GroupType = string(KindDepartment)
		}
		if role.Department != nil {
			raw.Department = *role.Department
		}
		if role.Subtype != nil {
			raw.ProblemTypeSub = *role.Subtype
		}

		if err := store.UpsertGroupRole(ctx, raw); err != nil {
			return fmt.Errorf("failed to seed group role %s: %w", role.Title, err)
		}
	}

	return nil
}
