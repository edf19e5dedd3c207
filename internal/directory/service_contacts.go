package directory

import (
	"context"
	"strings"

	"contactdesk.org/internal/ids"
)

// Permission tokens consulted for contact ownership checks.
const (
	PermContactEditOwn   = "contact.edit.own"
	PermContactEditAll   = "contact.edit.all"
	PermContactDeleteOwn = "contact.delete.own"
	PermContactDeleteAll = "contact.delete.all"
)

// ContactInput carries the fields of a contact create request.
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
}

// CreateContact validates and persists a contact owned by ownerID.
func (s *Service) CreateContact(ctx context.Context, ownerID string, in ContactInput) (Contact, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.FirstName == "" || in.LastName == "" || in.Email == "" {
		return Contact{}, invalidf("You must include a first name, last name and email")
	}
	if taken, err := s.store.ContactEmailTaken(ctx, in.Email, ""); err != nil {
		return Contact{}, err
	} else if taken {
		return Contact{}, conflictf("A contact with email '%s' already exists", in.Email)
	}
	contact := Contact{
		ID:        ids.New(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		OwnerID:   ownerID,
	}
	if err := s.store.CreateContact(ctx, &contact); err != nil {
		return Contact{}, err
	}
	return contact, nil
}

// GetContact fetches one contact.
func (s *Service) GetContact(ctx context.Context, id string) (Contact, error) {
	return s.store.GetContact(ctx, id)
}

// ListContacts returns a page of contacts.
func (s *Service) ListContacts(ctx context.Context, page Page) ([]Contact, int, error) {
	return s.store.ListContacts(ctx, page.Normalize())
}

// UpdateContact applies a partial update on behalf of the principal.
// Owners need contact.edit.own; everyone else needs contact.edit.all.
func (s *Service) UpdateContact(ctx context.Context, principal Principal, id string, upd ContactUpdate) (Contact, []Change, error) {
	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		return Contact{}, nil, err
	}
	if err := authorizeContact(principal, contact, PermContactEditOwn, PermContactEditAll); err != nil {
		return Contact{}, nil, err
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" {
			return Contact{}, nil, invalidf("Email is required")
		}
		upd.Email = &email
		if email != contact.Email {
			if taken, err := s.store.ContactEmailTaken(ctx, email, id); err != nil {
				return Contact{}, nil, err
			} else if taken {
				return Contact{}, nil, conflictf("A contact with email '%s' already exists", email)
			}
		}
	}

	var changes []Change
	if upd.FirstName != nil && *upd.FirstName != contact.FirstName {
		changes = append(changes, Change{Field: "first_name", Old: contact.FirstName, New: *upd.FirstName})
	}
	if upd.LastName != nil && *upd.LastName != contact.LastName {
		changes = append(changes, Change{Field: "last_name", Old: contact.LastName, New: *upd.LastName})
	}
	if upd.Email != nil && *upd.Email != contact.Email {
		changes = append(changes, Change{Field: "email", Old: contact.Email, New: *upd.Email})
	}
	if len(changes) == 0 {
		return contact, nil, nil
	}
	if err := s.store.UpdateContact(ctx, id, upd); err != nil {
		return Contact{}, nil, err
	}
	updated, err := s.store.GetContact(ctx, id)
	if err != nil {
		return Contact{}, nil, err
	}
	return updated, changes, nil
}

// DeleteContact removes a contact on behalf of the principal.
func (s *Service) DeleteContact(ctx context.Context, principal Principal, id string) (Contact, error) {
	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	if err := authorizeContact(principal, contact, PermContactDeleteOwn, PermContactDeleteAll); err != nil {
		return Contact{}, err
	}
	if err := s.store.DeleteContact(ctx, id); err != nil {
		return Contact{}, err
	}
	return contact, nil
}

func authorizeContact(principal Principal, contact Contact, ownPerm, allPerm string) error {
	if principal.HasPermission(allPerm) {
		return nil
	}
	if contact.OwnerID == principal.User.ID && principal.HasPermission(ownPerm) {
		return nil
	}
	return ErrPermissionDenied
}
