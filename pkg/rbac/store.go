package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store keeps the group role configuration in a SQL table. It serves as
// the loader's row source and as the admin-facing editor of that table.
type Store struct {
	db *sql.DB
}

// NewStore creates a new group role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchGroupRoles returns every configured row, active or not
func (s *Store) FetchGroupRoles(ctx context.Context) ([]RawGroupRole, error) {
	query := `
		SELECT title, group_id, group_type, department, problem_type_sub, is_active
		FROM rbac_group_roles
		ORDER BY title, group_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query group roles: %w", err)
	}
	defer rows.Close()

	var roles []RawGroupRole
	for rows.Next() {
		var role RawGroupRole
		var department, subtype sql.NullString

		if err := rows.Scan(
			&role.Title,
			&role.GroupID,
			&role.GroupType,
			&department,
			&subtype,
			&role.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group role: %w", err)
		}

		role.Department = department.String
		role.ProblemTypeSub = subtype.String
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group roles: %w", err)
	}

	return roles, nil
}

// UpsertGroupRole inserts a row or replaces the row with the same group id
func (s *Store) UpsertGroupRole(ctx context.Context, role RawGroupRole) error {
	if _, err := role.ToGroupRole(); err != nil {
		return fmt.Errorf("invalid group role: %w", err)
	}

	query := `
		INSERT INTO rbac_group_roles (group_id, title, group_type, department, problem_type_sub, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_id) DO UPDATE SET
			title = excluded.title,
			group_type = excluded.group_type,
			department = excluded.department,
			problem_type_sub = excluded.problem_type_sub,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		role.GroupID,
		role.Title,
		role.GroupType,
		nullString(role.Department),
		nullString(role.ProblemTypeSub),
		role.IsActive,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group role %s: %w", role.GroupID, err)
	}

	return nil
}

// SetActive toggles a row without removing it
func (s *Store) SetActive(ctx context.Context, groupID string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE rbac_group_roles SET is_active = $1, updated_at = $2 WHERE group_id = $3",
		active, time.Now().UTC(), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group role %s: %w", groupID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("group role not found: %s", groupID)
	}

	return nil
}

// DeleteGroupRole removes a row
func (s *Store) DeleteGroupRole(ctx context.Context, groupID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rbac_group_roles WHERE group_id = $1", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group role %s: %w", groupID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
