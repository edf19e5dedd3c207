package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"contactdesk.org/internal/directory"
	"contactdesk.org/internal/ids"
	"contactdesk.org/internal/obs"
	"contactdesk.org/internal/stream"
)

// Event describes one auditable action. OldValue and NewValue may be any
// JSON-serializable value; a blank Description is synthesized from the rest.
type Event struct {
	Action      string
	EntityType  string
	EntityID    string
	FieldName   string
	OldValue    any
	NewValue    any
	Description string
}

// Recorder writes audit entries. Record never returns an error: audit is a
// secondary operation and its failures are reported to the operational log
// only, so the primary mutation's response is unaffected.
type Recorder struct {
	store  Store
	stream *stream.Stream[Entry]
	now    func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithStream publishes every recorded entry to the given fan-out for live
// subscribers.
func WithStream(s *stream.Stream[Entry]) RecorderOption {
	return func(r *Recorder) { r.stream = s }
}

// WithRecorderClock overrides the time source (useful for tests).
func WithRecorderClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists one audit entry. The acting user comes from the request
// principal on the context, the client attributes from the request info.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	oldValue, err := stringify(ev.OldValue)
	if err != nil {
		obs.Logger().Error("audit: encode old value",
			zap.String("entity_type", ev.EntityType),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err))
		return
	}
	newValue, err := stringify(ev.NewValue)
	if err != nil {
		obs.Logger().Error("audit: encode new value",
			zap.String("entity_type", ev.EntityType),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err))
		return
	}

	entry := Entry{
		ID:          ids.New(),
		Timestamp:   r.now().UTC(),
		ActionType:  ev.Action,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		FieldName:   ev.FieldName,
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: ev.Description,
	}
	if principal, ok := directory.PrincipalFromContext(ctx); ok {
		userID := principal.User.ID
		entry.UserID = &userID
		entry.Username = principal.User.Username
	}
	info := requestInfoFromContext(ctx)
	entry.IPAddress = info.IP
	entry.UserAgent = info.UserAgent
	if entry.Description == "" {
		entry.Description = describe(ev.Action, ev.EntityType, ev.EntityID, ev.FieldName, oldValue, newValue)
	}

	if err := r.store.Append(ctx, &entry); err != nil {
		obs.Logger().Error("audit: append entry",
			zap.String("action", ev.Action),
			zap.String("entity_type", ev.EntityType),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err))
		return
	}
	if r.stream != nil {
		r.stream.Publish(entry)
	}
}

// Created records a CREATE action.
func (r *Recorder) Created(ctx context.Context, entityType, entityID string) {
	r.Record(ctx, Event{Action: ActionCreate, EntityType: entityType, EntityID: entityID})
}

// Updated records one UPDATE entry per changed field.
func (r *Recorder) Updated(ctx context.Context, entityType, entityID string, changes []directory.Change) {
	for _, change := range changes {
		r.Record(ctx, Event{
			Action:     ActionUpdate,
			EntityType: entityType,
			EntityID:   entityID,
			FieldName:  change.Field,
			OldValue:   change.Old,
			NewValue:   change.New,
		})
	}
}

// Deleted records a DELETE action.
func (r *Recorder) Deleted(ctx context.Context, entityType, entityID string) {
	r.Record(ctx, Event{Action: ActionDelete, EntityType: entityType, EntityID: entityID})
}

func describe(action, entityType, entityID, field, oldValue, newValue string) string {
	switch action {
	case ActionCreate:
		return fmt.Sprintf("Created %s (ID: %s)", entityType, entityID)
	case ActionUpdate:
		if field != "" {
			return fmt.Sprintf("Updated %s (ID: %s) - '%s' changed from '%s' to '%s'", entityType, entityID, field, oldValue, newValue)
		}
		return fmt.Sprintf("Updated %s (ID: %s)", entityType, entityID)
	case ActionDelete:
		return fmt.Sprintf("Deleted %s (ID: %s)", entityType, entityID)
	default:
		return fmt.Sprintf("%s action on %s", action, entityType)
	}
}

// stringify renders a value for storage. Strings pass through unquoted and
// times use RFC 3339; everything else is JSON-encoded.
func stringify(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	case time.Time:
		return value.UTC().Format(time.RFC3339), nil
	case fmt.Stringer:
		return value.String(), nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
