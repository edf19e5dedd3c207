package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mssola/useragent"

	"contactdesk.org/internal/audit"
)

// auditLogItem is an audit entry decorated with a readable client summary
// derived from the stored user agent.
type auditLogItem struct {
	audit.Entry
	Client string `json:"client"`
}

func (a *API) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sort, ok := audit.ParseSort(q.Get("sort_by"), q.Get("sort_order"))
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid sort key or order")
		return
	}
	filter := audit.Filter{
		EntityType: q.Get("entity_type"),
		ActionType: q.Get("action_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
		Search:     q.Get("search"),
	}
	if v := q.Get("date_from"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date_from. Expected YYYY-MM-DD")
			return
		}
		filter.From = audit.StartOfDay(day)
	}
	if v := q.Get("date_to"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date_to. Expected YYYY-MM-DD")
			return
		}
		filter.To = audit.EndOfDay(day)
	}
	page := parsePage(r)

	entries, total, err := a.auditStore.Query(r.Context(), filter, sort, page)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items := make([]auditLogItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, auditLogItem{Entry: e, Client: clientSummary(e.UserAgent)})
	}
	writeList(w, items, total, page)
}

// streamAuditLogs pushes new audit entries to the client over SSE.
func (a *API) streamAuditLogs(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		respondError(w, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.events.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for entry := range ch {
		payload, err := json.Marshal(auditLogItem{Entry: entry, Client: clientSummary(entry.UserAgent)})
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// clientSummary condenses a raw user agent into "Browser version (OS)".
// Unparseable agents pass through untouched.
func clientSummary(raw string) string {
	if raw == "" || raw == "unknown" {
		return "unknown"
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s (%s)", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}
