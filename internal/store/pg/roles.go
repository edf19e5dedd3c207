package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"contactdesk.org/internal/directory"
)

func (s *Store) CreateRole(ctx context.Context, r *directory.Role, permissionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, r.ID, r.Name, nullIfEmpty(r.Description)).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	for _, permID := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
			on conflict do nothing
		`, r.ID, permID); err != nil {
			return mapPgError(err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetRole(ctx context.Context, id string) (directory.Role, error) {
	var r directory.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name, coalesce(description, ''), created_at, updated_at
		from roles
		where id = $1
	`, id).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context, page directory.Page) ([]directory.Role, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from roles`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, coalesce(description, ''), created_at, updated_at
		from roles
		order by name
		limit $1 offset $2
	`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var roles []directory.Role
	for rows.Next() {
		var r directory.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd directory.RoleUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return mapPgError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if aff == 0 {
			return directory.ErrNotFound
		}
	}
	if upd.PermissionIDs != nil {
		if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
			return err
		}
		for _, permID := range *upd.PermissionIDs {
			if _, err := tx.ExecContext(ctx, `
				insert into role_permissions (role_id, permission_id)
				values ($1, $2)
				on conflict do nothing
			`, id, permID); err != nil {
				return mapPgError(err)
			}
		}
		if _, err := tx.ExecContext(ctx, `update roles set updated_at = now() where id = $1`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) RoleNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from roles where name = $1 and id <> $2)
	`, name, excludeID).Scan(&taken)
	return taken, err
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (directory.Role, error) {
	var r directory.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name, coalesce(description, ''), created_at, updated_at
		from roles
		where name = $1
	`, name).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}
	return r, nil
}

func (s *Store) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from user_roles where role_id = $1
	`, roleID).Scan(&count)
	return count, err
}

func (s *Store) ListPermissionsForRole(ctx context.Context, roleID string) ([]directory.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, coalesce(p.description, ''), p.category_id, p.status, p.created_at, p.updated_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) AddRolePermission(ctx context.Context, roleID, permissionID string) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id)
		values ($1, $2)
		on conflict do nothing
	`, roleID, permissionID); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) RemoveRolePermission(ctx context.Context, roleID, permissionID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_permissions
		where role_id = $1 and permission_id = $2
	`, roleID, permissionID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) HasRolePermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	var has bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from role_permissions where role_id = $1 and permission_id = $2)
	`, roleID, permissionID).Scan(&has)
	return has, err
}
