package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"contactdesk.org/internal/ids"
)

const defaultSessionTTL = 12 * time.Hour

// DefaultRoleName is assigned to newly registered users when it exists.
const DefaultRoleName = "User"

// ProtectedRoleNames cannot be deleted through the API.
var ProtectedRoleNames = []string{"Admin", "User", "Guest"}

// Service provides validated directory operations over a Store. Mutations
// return the field-level changes they made so callers can audit them.
type Service struct {
	store      Store
	now        func() time.Time
	sessionTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithSessionTTL configures login session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Principal resolves a user's roles and permissions from current store
// state. No caching: concurrent role changes are visible on the next call.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	roles, err := s.store.ListRolesForUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	for i := range roles {
		perms, err := s.store.ListPermissionsForRole(ctx, roles[i].ID)
		if err != nil {
			return Principal{}, err
		}
		roles[i].Permissions = perms
	}
	return NewPrincipal(user, roles), nil
}

// HasPermission reports whether the user holds the permission token through
// any of their roles. Missing users fail closed.
func (s *Service) HasPermission(ctx context.Context, userID, token string) bool {
	principal, err := s.Principal(ctx, userID)
	if err != nil {
		return false
	}
	return principal.HasPermission(token)
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a user account, assigns the default role when present,
// and opens a session so the caller is logged in immediately.
func (s *Service) Register(ctx context.Context, in RegisterInput, clientIP, userAgent string) (User, Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return User{}, Session{}, invalidf("Missing username, email, or password")
	}
	if !strings.Contains(in.Email, "@") {
		return User{}, Session{}, invalidf("A valid email is required")
	}
	if taken, err := s.store.UsernameTaken(ctx, in.Username, ""); err != nil {
		return User{}, Session{}, err
	} else if taken {
		return User{}, Session{}, conflictf("Username already exists")
	}
	if taken, err := s.store.UserEmailTaken(ctx, in.Email, ""); err != nil {
		return User{}, Session{}, err
	} else if taken {
		return User{}, Session{}, conflictf("Email already registered")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, Session{}, err
	}
	user := User{
		ID:           ids.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return User{}, Session{}, err
	}

	// Default role assignment is best effort: a missing "User" role is a
	// deployment gap, not a registration failure.
	if role, err := s.store.FindRoleByName(ctx, DefaultRoleName); err == nil {
		if err := s.store.ReplaceUserRoles(ctx, user.ID, []string{role.ID}); err == nil {
			user.Roles = []Role{role}
		}
	}

	session, err := s.openSession(ctx, user.ID, clientIP, userAgent)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

// Login authenticates by username or email plus password and opens a session.
func (s *Service) Login(ctx context.Context, identifier, password, clientIP, userAgent string) (User, Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return User{}, Session{}, invalidf("Missing identifier or password")
	}
	user, err := s.store.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, Session{}, &Error{Err: ErrUnauthenticated, Message: "Invalid credentials"}
		}
		return User{}, Session{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, Session{}, &Error{Err: ErrUnauthenticated, Message: "Invalid credentials"}
	}
	session, err := s.openSession(ctx, user.ID, clientIP, userAgent)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

// Logout revokes the session. Unknown sessions are already logged out.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	err := s.store.RevokeSession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// SessionPrincipal resolves the principal behind a session cookie. Invalid,
// expired and revoked sessions all fail closed with ErrUnauthenticated.
func (s *Service) SessionPrincipal(ctx context.Context, sessionID string) (Principal, error) {
	if sessionID == "" {
		return Principal{}, ErrUnauthenticated
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}
	if session.Expired(s.now()) {
		return Principal{}, ErrUnauthenticated
	}
	return s.Principal(ctx, session.UserID)
}

func (s *Service) openSession(ctx context.Context, userID, clientIP, userAgent string) (Session, error) {
	now := s.now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
		IP:        clientIP,
		UserAgent: userAgent,
	}
	if err := s.store.CreateSession(ctx, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// ListUsers returns a page of users with their roles attached.
func (s *Service) ListUsers(ctx context.Context, page Page) ([]User, int, error) {
	users, total, err := s.store.ListUsers(ctx, page.Normalize())
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		roles, err := s.store.ListRolesForUser(ctx, users[i].ID)
		if err != nil {
			return nil, 0, err
		}
		users[i].Roles = roles
	}
	return users, total, nil
}

// GetUser returns one user with roles attached.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	roles, err := s.store.ListRolesForUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Roles = roles
	return user, nil
}

// ReplaceUserRoles swaps a user's role set and reports the change for audit.
func (s *Service) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) (User, []Change, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, nil, err
	}
	before, err := s.store.ListRolesForUser(ctx, userID)
	if err != nil {
		return User{}, nil, err
	}
	for _, roleID := range roleIDs {
		if _, err := s.store.GetRole(ctx, roleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return User{}, nil, invalidf("One or more role IDs are invalid")
			}
			return User{}, nil, err
		}
	}
	if err := s.store.ReplaceUserRoles(ctx, userID, roleIDs); err != nil {
		return User{}, nil, err
	}
	after, err := s.store.ListRolesForUser(ctx, userID)
	if err != nil {
		return User{}, nil, err
	}
	user.Roles = after

	var changes []Change
	if !sameRoleSet(before, after) {
		changes = append(changes, Change{Field: "roles", Old: roleNames(before), New: roleNames(after)})
	}
	return user, changes, nil
}

func roleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names
}

func sameRoleSet(a, b []Role) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, r := range a {
		set[r.ID] = struct{}{}
	}
	for _, r := range b {
		if _, ok := set[r.ID]; !ok {
			return false
		}
	}
	return true
}
