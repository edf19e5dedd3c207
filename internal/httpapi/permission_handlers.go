package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"contactdesk.org/internal/directory"
)

type permissionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	CategoryID  *string `json:"category_id"`
	Status      *string `json:"status"`
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := directory.PermissionFilter{
		Status:     q.Get("status"),
		NameSearch: q.Get("search"),
		CategoryID: q.Get("category_id"),
	}
	page := parsePage(r)

	perms, total, err := a.svc.ListPermissions(r.Context(), filter, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, perms, total, page)
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request) {
	permission, err := a.svc.GetPermission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, permission)
}

func (a *API) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	permission, err := a.svc.CreatePermission(r.Context(), directory.PermissionInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		CategoryID:  deref(req.CategoryID),
		Status:      deref(req.Status),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Created(r.Context(), "Permission", permission.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Permission created successfully",
		"permission": permission,
	})
}

func (a *API) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	permission, changes, err := a.svc.UpdatePermission(r.Context(), id, directory.PermissionUpdate{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(changes) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":    "No changes detected",
			"permission": permission,
		})
		return
	}
	a.recorder.Updated(r.Context(), "Permission", id, changes)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Permission updated successfully",
		"permission": permission,
	})
}

func (a *API) deletePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	permission, err := a.svc.DeletePermission(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Deleted(r.Context(), "Permission", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Permission deleted successfully",
		"permission": permission,
	})
}
