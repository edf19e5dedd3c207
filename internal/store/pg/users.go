package pg

import (
	"context"
	"database/sql"
	"errors"

	"contactdesk.org/internal/directory"
)

func (s *Store) CreateUser(ctx context.Context, u *directory.User) error {
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (directory.User, error) {
	var u directory.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, email, password_hash, created_at, updated_at
		from users
		where id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	return u, nil
}

func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (directory.User, error) {
	var u directory.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, email, password_hash, created_at, updated_at
		from users
		where username = $1 or lower(email) = lower($1)
	`, identifier).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, page directory.Page) ([]directory.User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, username, email, password_hash, created_at, updated_at
		from users
		order by username
		limit $1 offset $2
	`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []directory.User
	for rows.Next() {
		var u directory.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from users where username = $1 and id <> $2)
	`, username, excludeID).Scan(&taken)
	return taken, err
}

func (s *Store) UserEmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from users where lower(email) = lower($1) and id <> $2)
	`, email, excludeID).Scan(&taken)
	return taken, err
}

func (s *Store) ListRolesForUser(ctx context.Context, userID string) ([]directory.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, coalesce(r.description, ''), r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []directory.Role
	for rows.Next() {
		var r directory.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from users where id = $1`, userID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id)
			values ($1, $2)
			on conflict do nothing
		`, userID, roleID); err != nil {
			return mapPgError(err)
		}
	}
	return tx.Commit()
}
