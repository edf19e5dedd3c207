// Package audit records an append-only trail of entity mutations. Entries are
// written best effort after the primary operation commits; a failed audit
// write never fails the request that triggered it.
package audit

import (
	"context"
	"time"

	"contactdesk.org/internal/directory"
)

// Action kinds stored in audit entries.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Entry is one immutable audit row. An update that touches N fields produces
// N entries, each carrying a single field's before and after value.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      *string   `json:"user_id"`
	Username    string    `json:"username"`
	ActionType  string    `json:"action_type"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	FieldName   string    `json:"field_name,omitempty"`
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	Description string    `json:"description"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
}

// Filter narrows an audit query. Zero values mean "no constraint".
type Filter struct {
	EntityType string // case-insensitive substring
	ActionType string // case-insensitive substring
	EntityID   string // exact
	UserID     string // exact
	Search     string // case-insensitive substring across username, description, entity type and field name
	From       time.Time
	To         time.Time
}

// Sort keys accepted by Query.
const (
	SortTimestamp  = "timestamp"
	SortUsername   = "username"
	SortActionType = "action_type"
	SortEntityType = "entity_type"
)

// Sort describes result ordering. The zero value means timestamp descending.
type Sort struct {
	Key  string
	Desc bool
}

// ParseSort validates a sort key and direction from query parameters.
// An empty key falls back to timestamp; an empty direction is descending
// whatever the key.
func ParseSort(key, direction string) (Sort, bool) {
	switch key {
	case "":
		key = SortTimestamp
	case SortTimestamp, SortUsername, SortActionType, SortEntityType:
	default:
		return Sort{}, false
	}
	switch direction {
	case "", "desc":
		return Sort{Key: key, Desc: true}, true
	case "asc":
		return Sort{Key: key}, true
	default:
		return Sort{}, false
	}
}

// StartOfDay returns midnight UTC of t's date, for inclusive "from" bounds.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of t's date in UTC, for
// inclusive "to" bounds.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// Store persists audit entries. The Postgres implementation lives in
// internal/store/pg.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Query(ctx context.Context, filter Filter, sort Sort, page directory.Page) ([]Entry, int, error)
}
