package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"contactdesk.org/internal/directory"
)

type pagination struct {
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

func paginationFor(total int, page directory.Page) pagination {
	page = page.Normalize()
	totalPages := (total + page.PerPage - 1) / page.PerPage
	return pagination{
		TotalItems:  total,
		TotalPages:  totalPages,
		CurrentPage: page.Number,
		PerPage:     page.PerPage,
		HasNext:     page.Number < totalPages,
		HasPrev:     page.Number > 1 && total > 0,
	}
}

// parsePage reads page and per_page query parameters; out-of-range values
// are clamped by Page.Normalize.
func parsePage(r *http.Request) directory.Page {
	page := directory.Page{Number: 1, PerPage: 10}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page.Number = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil {
		page.PerPage = v
	}
	return page.Normalize()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}

func writeList(w http.ResponseWriter, items any, total int, page directory.Page) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": paginationFor(total, page),
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// handleServiceError maps the directory sentinels onto HTTP statuses. The
// error message is exposed verbatim, matching the original API contract.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrUnauthenticated):
		msg := "Authentication required"
		var de *directory.Error
		if errors.As(err, &de) {
			msg = de.Message
		}
		respondError(w, http.StatusUnauthorized, msg)
	case errors.Is(err, directory.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "You don't have permission to perform this action")
	case errors.Is(err, directory.ErrProtected):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, directory.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
