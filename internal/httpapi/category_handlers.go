package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"contactdesk.org/internal/directory"
)

type categoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := directory.CategoryFilter{
		Status:     q.Get("status"),
		NameSearch: q.Get("search"),
	}
	includeUsage := q.Get("include_usage") == "true"
	includeAffected := q.Get("include_affected_permissions") == "true"
	page := parsePage(r)

	categories, total, err := a.svc.ListCategories(r.Context(), filter, page, includeUsage, includeAffected)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, categories, total, page)
}

func (a *API) getCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, err := a.svc.GetCategory(r.Context(), chi.URLParam(r, "id"),
		q.Get("include_usage") == "true", q.Get("include_affected_permissions") == "true")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, err := a.svc.CreateCategory(r.Context(), directory.CategoryInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Status:      deref(req.Status),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Created(r.Context(), "Category", category.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Category created successfully",
		"category": category,
	})
}

func (a *API) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	category, changes, err := a.svc.UpdateCategory(r.Context(), id, directory.CategoryUpdate{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(changes) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "No changes detected",
			"category": category,
		})
		return
	}
	a.recorder.Updated(r.Context(), "Category", id, changes)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Category updated successfully",
		"category": category,
	})
}

func (a *API) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	category, err := a.svc.DeleteCategory(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Deleted(r.Context(), "Category", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Category deleted successfully",
		"category": category,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
