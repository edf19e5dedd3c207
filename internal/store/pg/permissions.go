package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"contactdesk.org/internal/directory"
)

func (s *Store) CreatePermission(ctx context.Context, p *directory.Permission) error {
	err := s.db.QueryRowContext(ctx, `
		insert into permissions (id, name, description, category_id, status)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, p.ID, p.Name, nullIfEmpty(p.Description), p.CategoryID, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (directory.Permission, error) {
	var p directory.Permission
	err := s.db.QueryRowContext(ctx, `
		select id, name, coalesce(description, ''), category_id, status, created_at, updated_at
		from permissions
		where id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Permission{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Permission{}, err
	}
	return p, nil
}

func (s *Store) GetPermissionsByIDs(ctx context.Context, ids []string) ([]directory.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, coalesce(description, ''), category_id, status, created_at, updated_at
		from permissions
		where id = any($1)
		order by name
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) ListPermissions(ctx context.Context, filter directory.PermissionFilter, page directory.Page) ([]directory.Permission, int, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.CategoryID != "" {
		where = append(where, fmt.Sprintf("category_id = $%d", idx))
		args = append(args, filter.CategoryID)
		idx++
	}
	if filter.NameSearch != "" {
		where = append(where, fmt.Sprintf("name ilike $%d", idx))
		args = append(args, "%"+filter.NameSearch+"%")
		idx++
	}
	cond := ""
	if len(where) > 0 {
		cond = " where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from permissions`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		select id, name, coalesce(description, ''), category_id, status, created_at, updated_at
		from permissions%s
		order by name
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, page.PerPage, page.Offset())
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	perms, err := scanPermissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

func (s *Store) UpdatePermission(ctx context.Context, id string, upd directory.PermissionUpdate) error {
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
	if upd.CategoryID != nil {
		if *upd.CategoryID == "" {
			sets = append(sets, "category_id = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("category_id = $%d", idx))
			args = append(args, *upd.CategoryID)
			idx++
		}
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update permissions set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, query, args...)
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

func (s *Store) DeletePermission(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from permissions where id = $1`, id)
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

func (s *Store) PermissionNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from permissions where name = $1 and id <> $2)
	`, name, excludeID).Scan(&taken)
	return taken, err
}

func (s *Store) CountRolesWithPermission(ctx context.Context, permissionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from role_permissions where permission_id = $1
	`, permissionID).Scan(&count)
	return count, err
}

func scanPermissions(rows *sql.Rows) ([]directory.Permission, error) {
	var perms []directory.Permission
	for rows.Next() {
		var p directory.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}
