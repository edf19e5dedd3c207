package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"contactdesk.org/internal/audit"
	"contactdesk.org/internal/directory"
)

type roleRequest struct {
	Name          *string   `json:"name"`
	Description   *string   `json:"description"`
	PermissionIDs *[]string `json:"permission_ids"`
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	roles, total, err := a.svc.ListRoles(r.Context(), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, roles, total, page)
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.svc.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var permIDs []string
	if req.PermissionIDs != nil {
		permIDs = *req.PermissionIDs
	}
	role, err := a.svc.CreateRole(r.Context(), directory.RoleInput{
		Name:          deref(req.Name),
		Description:   deref(req.Description),
		PermissionIDs: permIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Created(r.Context(), "Role", role.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Role created successfully",
		"role":    role,
	})
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	role, changes, err := a.svc.UpdateRole(r.Context(), id, directory.RoleUpdate{
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(changes) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "No changes detected",
			"role":    role,
		})
		return
	}
	a.recorder.Updated(r.Context(), "Role", id, changes)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Role updated successfully",
		"role":    role,
	})
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	role, err := a.svc.DeleteRole(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Deleted(r.Context(), "Role", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Role deleted successfully",
		"role":    role,
	})
}

func (a *API) addRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	permissionID := chi.URLParam(r, "permissionID")
	role, permission, err := a.svc.AddPermissionToRole(r.Context(), roleID, permissionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Record(r.Context(), audit.Event{
		Action:     audit.ActionUpdate,
		EntityType: "Role",
		EntityID:   roleID,
		FieldName:  "permissions",
		NewValue:   permission.Name,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Permission added to role successfully",
		"role":    role,
	})
}

func (a *API) removeRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	permissionID := chi.URLParam(r, "permissionID")
	role, permission, err := a.svc.RemovePermissionFromRole(r.Context(), roleID, permissionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Record(r.Context(), audit.Event{
		Action:     audit.ActionUpdate,
		EntityType: "Role",
		EntityID:   roleID,
		FieldName:  "permissions",
		OldValue:   permission.Name,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Permission removed from role successfully",
		"role":    role,
	})
}
