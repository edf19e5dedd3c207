package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"contactdesk.org/internal/directory"
)

func (s *Store) CreateContact(ctx context.Context, c *directory.Contact) error {
	err := s.db.QueryRowContext(ctx, `
		insert into contacts (id, first_name, last_name, email, user_id)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, c.ID, c.FirstName, c.LastName, c.Email, c.OwnerID).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) GetContact(ctx context.Context, id string) (directory.Contact, error) {
	var c directory.Contact
	err := s.db.QueryRowContext(ctx, `
		select id, first_name, last_name, email, user_id, created_at, updated_at
		from contacts
		where id = $1
	`, id).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Contact{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Contact{}, err
	}
	return c, nil
}

func (s *Store) ListContacts(ctx context.Context, page directory.Page) ([]directory.Contact, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from contacts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, first_name, last_name, email, user_id, created_at, updated_at
		from contacts
		order by last_name, first_name
		limit $1 offset $2
	`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []directory.Contact
	for rows.Next() {
		var c directory.Contact
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (s *Store) UpdateContact(ctx context.Context, id string, upd directory.ContactUpdate) error {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.FirstName != nil {
		sets = append(sets, fmt.Sprintf("first_name = $%d", idx))
		args = append(args, *upd.FirstName)
		idx++
	}
	if upd.LastName != nil {
		sets = append(sets, fmt.Sprintf("last_name = $%d", idx))
		args = append(args, *upd.LastName)
		idx++
	}
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update contacts set %s where id = $%d`, strings.Join(sets, ", "), idx)
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

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from contacts where id = $1`, id)
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

func (s *Store) ContactEmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from contacts where lower(email) = lower($1) and id <> $2)
	`, email, excludeID).Scan(&taken)
	return taken, err
}
