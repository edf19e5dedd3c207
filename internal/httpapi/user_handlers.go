package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type replaceRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	users, total, err := a.svc.ListUsers(r.Context(), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, users, total, page)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) replaceUserRoles(w http.ResponseWriter, r *http.Request) {
	var req replaceRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	user, changes, err := a.svc.ReplaceUserRoles(r.Context(), id, req.RoleIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(changes) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "No changes detected",
			"user":    user,
		})
		return
	}
	a.recorder.Updated(r.Context(), "User", id, changes)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User roles updated successfully",
		"user":    user,
	})
}
