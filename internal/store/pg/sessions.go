package pg

import (
	"context"
	"database/sql"
	"errors"

	"contactdesk.org/internal/directory"
)

func (s *Store) CreateSession(ctx context.Context, sess *directory.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, created_at, expires_at, ip, user_agent)
		values ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt, sess.IP, sess.UserAgent)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (directory.Session, error) {
	var sess directory.Session
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, created_at, expires_at, revoked_at, coalesce(ip, ''), coalesce(user_agent, '')
		from sessions
		where id = $1
	`, id).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt, &sess.IP, &sess.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Session{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Session{}, err
	}
	return sess, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update sessions set revoked_at = now()
		where id = $1 and revoked_at is null
	`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		// Already revoked counts as done; a missing row does not.
		var exists bool
		if err := s.db.QueryRowContext(ctx, `select exists(select 1 from sessions where id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return directory.ErrNotFound
		}
	}
	return nil
}
