package pg

import (
	"context"
	"fmt"
	"strings"

	"contactdesk.org/internal/audit"
	"contactdesk.org/internal/directory"
)

func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs
			(id, timestamp, user_id, action_type, entity_type, entity_id,
			 field_name, old_value, new_value, description, ip_address, user_agent)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, e.Timestamp, e.UserID, e.ActionType, e.EntityType, e.EntityID,
		nullIfEmpty(e.FieldName), nullIfEmpty(e.OldValue), nullIfEmpty(e.NewValue),
		e.Description, e.IPAddress, e.UserAgent)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// auditSortColumns maps accepted sort keys to order-by expressions. Username
// comes from the users join so system entries (null actor) sort last.
var auditSortColumns = map[string]string{
	audit.SortTimestamp:  "a.timestamp",
	audit.SortUsername:   "u.username",
	audit.SortActionType: "a.action_type",
	audit.SortEntityType: "a.entity_type",
}

func (s *Store) Query(ctx context.Context, filter audit.Filter, sort audit.Sort, page directory.Page) ([]audit.Entry, int, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	add := func(clause string, value any) {
		where = append(where, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}
	if filter.EntityType != "" {
		add("a.entity_type ilike $%d", "%"+filter.EntityType+"%")
	}
	if filter.ActionType != "" {
		add("a.action_type ilike $%d", "%"+filter.ActionType+"%")
	}
	if filter.EntityID != "" {
		add("a.entity_id = $%d", filter.EntityID)
	}
	if filter.UserID != "" {
		add("a.user_id = $%d", filter.UserID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, fmt.Sprintf(
			"(coalesce(u.username, '') ilike $%d or a.description ilike $%d or a.entity_type ilike $%d or coalesce(a.field_name, '') ilike $%d)",
			idx, idx+1, idx+2, idx+3))
		args = append(args, pattern, pattern, pattern, pattern)
		idx += 4
	}
	if !filter.From.IsZero() {
		add("a.timestamp >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("a.timestamp <= $%d", filter.To)
	}
	cond := ""
	if len(where) > 0 {
		cond = " where " + strings.Join(where, " and ")
	}

	base := `
		from audit_logs a
		left join users u on u.id = a.user_id`

	var total int
	if err := s.db.QueryRowContext(ctx, "select count(*)"+base+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := auditSortColumns[sort.Key]
	if !ok {
		column = "a.timestamp"
	}
	direction := "asc"
	if sort.Desc {
		direction = "desc"
	}
	orderBy := fmt.Sprintf(" order by %s %s nulls last, a.timestamp desc", column, direction)

	query := fmt.Sprintf(`
		select a.id, a.timestamp, a.user_id, coalesce(u.username, ''),
		       a.action_type, a.entity_type, a.entity_id,
		       coalesce(a.field_name, ''), coalesce(a.old_value, ''), coalesce(a.new_value, ''),
		       a.description, a.ip_address, a.user_agent%s%s%s
		limit $%d offset $%d
	`, base, cond, orderBy, idx, idx+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserID, &e.Username,
			&e.ActionType, &e.EntityType, &e.EntityID,
			&e.FieldName, &e.OldValue, &e.NewValue,
			&e.Description, &e.IPAddress, &e.UserAgent); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
