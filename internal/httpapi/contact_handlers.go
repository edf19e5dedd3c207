package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"contactdesk.org/internal/directory"
)

type contactRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

func (a *API) listContacts(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	contacts, total, err := a.svc.ListContacts(r.Context(), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, contacts, total, page)
}

func (a *API) getContact(w http.ResponseWriter, r *http.Request) {
	contact, err := a.svc.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (a *API) createContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	principal, _ := directory.PrincipalFromContext(r.Context())
	contact, err := a.svc.CreateContact(r.Context(), principal.User.ID, directory.ContactInput{
		FirstName: deref(req.FirstName),
		LastName:  deref(req.LastName),
		Email:     deref(req.Email),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Created(r.Context(), "Contact", contact.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Contact created successfully",
		"contact": contact,
	})
}

func (a *API) updateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	principal, _ := directory.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")
	contact, changes, err := a.svc.UpdateContact(r.Context(), principal, id, directory.ContactUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(changes) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "No changes detected",
			"contact": contact,
		})
		return
	}
	a.recorder.Updated(r.Context(), "Contact", id, changes)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Contact updated successfully",
		"contact": contact,
	})
}

func (a *API) deleteContact(w http.ResponseWriter, r *http.Request) {
	principal, _ := directory.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")
	contact, err := a.svc.DeleteContact(r.Context(), principal, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.recorder.Deleted(r.Context(), "Contact", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Contact deleted successfully",
		"contact": contact,
	})
}
