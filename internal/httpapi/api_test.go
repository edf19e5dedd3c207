package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"contactdesk.org/internal/audit"
	"contactdesk.org/internal/directory"
	"contactdesk.org/internal/stream"
)

// fakeStore is an in-memory directory.Store for API tests.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]directory.User
	roles      map[string]directory.Role
	perms      map[string]directory.Permission
	categories map[string]directory.Category
	contacts   map[string]directory.Contact
	sessions   map[string]directory.Session

	userRoles map[string][]string
	rolePerms map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]directory.User),
		roles:      make(map[string]directory.Role),
		perms:      make(map[string]directory.Permission),
		categories: make(map[string]directory.Category),
		contacts:   make(map[string]directory.Contact),
		sessions:   make(map[string]directory.Session),
		userRoles:  make(map[string][]string),
		rolePerms:  make(map[string][]string),
	}
}

func notFound(msg string) error {
	return &directory.Error{Err: directory.ErrNotFound, Message: msg}
}

func (f *fakeStore) CreateUser(_ context.Context, u *directory.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return directory.User{}, notFound("User not found")
	}
	return u, nil
}

func (f *fakeStore) FindUserByIdentifier(_ context.Context, identifier string) (directory.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) {
			return u, nil
		}
	}
	return directory.User{}, notFound("User not found")
}

func (f *fakeStore) ListUsers(_ context.Context, page directory.Page) ([]directory.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]directory.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageSlice(all, page), len(all), nil
}

func (f *fakeStore) UsernameTaken(_ context.Context, username, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UserEmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListRolesForUser(_ context.Context, userID string) ([]directory.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var roles []directory.Role
	for _, roleID := range f.userRoles[userID] {
		if r, ok := f.roles[roleID]; ok {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (f *fakeStore) ReplaceUserRoles(_ context.Context, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userRoles[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (f *fakeStore) CreateRole(_ context.Context, r *directory.Role, permissionIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[r.ID] = *r
	f.rolePerms[r.ID] = append([]string(nil), permissionIDs...)
	return nil
}

func (f *fakeStore) GetRole(_ context.Context, id string) (directory.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return directory.Role{}, notFound("Role not found")
	}
	return r, nil
}

func (f *fakeStore) ListRoles(_ context.Context, page directory.Page) ([]directory.Role, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]directory.Role, 0, len(f.roles))
	for _, r := range f.roles {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageSlice(all, page), len(all), nil
}

func (f *fakeStore) UpdateRole(_ context.Context, id string, upd directory.RoleUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return notFound("Role not found")
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.PermissionIDs != nil {
		f.rolePerms[id] = append([]string(nil), *upd.PermissionIDs...)
	}
	f.roles[id] = r
	return nil
}

func (f *fakeStore) DeleteRole(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[id]; !ok {
		return notFound("Role not found")
	}
	delete(f.roles, id)
	delete(f.rolePerms, id)
	return nil
}

func (f *fakeStore) RoleNameTaken(_ context.Context, name, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name && r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindRoleByName(_ context.Context, name string) (directory.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return directory.Role{}, notFound("Role not found")
}

func (f *fakeStore) CountUsersWithRole(_ context.Context, roleID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, roleIDs := range f.userRoles {
		for _, id := range roleIDs {
			if id == roleID {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeStore) ListPermissionsForRole(_ context.Context, roleID string) ([]directory.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var perms []directory.Permission
	for _, permID := range f.rolePerms[roleID] {
		if p, ok := f.perms[permID]; ok {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func (f *fakeStore) AddRolePermission(_ context.Context, roleID, permissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolePerms[roleID] = append(f.rolePerms[roleID], permissionID)
	return nil
}

func (f *fakeStore) RemoveRolePermission(_ context.Context, roleID, permissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rolePerms[roleID][:0]
	for _, id := range f.rolePerms[roleID] {
		if id != permissionID {
			kept = append(kept, id)
		}
	}
	f.rolePerms[roleID] = kept
	return nil
}

func (f *fakeStore) HasRolePermission(_ context.Context, roleID, permissionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.rolePerms[roleID] {
		if id == permissionID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreatePermission(_ context.Context, p *directory.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms[p.ID] = *p
	return nil
}

func (f *fakeStore) GetPermission(_ context.Context, id string) (directory.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.perms[id]
	if !ok {
		return directory.Permission{}, notFound("Permission not found")
	}
	return p, nil
}

func (f *fakeStore) GetPermissionsByIDs(_ context.Context, ids []string) ([]directory.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var perms []directory.Permission
	for _, id := range ids {
		if p, ok := f.perms[id]; ok {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func (f *fakeStore) ListPermissions(_ context.Context, filter directory.PermissionFilter, page directory.Page) ([]directory.Permission, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []directory.Permission
	for _, p := range f.perms {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageSlice(all, page), len(all), nil
}

func (f *fakeStore) UpdatePermission(_ context.Context, id string, upd directory.PermissionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.perms[id]
	if !ok {
		return notFound("Permission not found")
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	f.perms[id] = p
	return nil
}

func (f *fakeStore) DeletePermission(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.perms[id]; !ok {
		return notFound("Permission not found")
	}
	delete(f.perms, id)
	return nil
}

func (f *fakeStore) PermissionNameTaken(_ context.Context, name, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.perms {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CountRolesWithPermission(_ context.Context, permissionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, permIDs := range f.rolePerms {
		for _, id := range permIDs {
			if id == permissionID {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c *directory.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[c.ID] = *c
	return nil
}

func (f *fakeStore) GetCategory(_ context.Context, id string) (directory.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return directory.Category{}, notFound("Category not found")
	}
	return c, nil
}

func (f *fakeStore) ListCategories(_ context.Context, filter directory.CategoryFilter, page directory.Page) ([]directory.Category, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []directory.Category
	for _, c := range f.categories {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageSlice(all, page), len(all), nil
}

func (f *fakeStore) UpdateCategory(_ context.Context, id string, upd directory.CategoryUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return notFound("Category not found")
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Description != nil {
		c.Description = *upd.Description
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	f.categories[id] = c
	return nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return notFound("Category not found")
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeStore) CategoryNameTaken(_ context.Context, name, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Name == name && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CountPermissionsInCategory(_ context.Context, categoryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.perms {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListPermissionsInCategory(_ context.Context, categoryID string) ([]directory.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var perms []directory.Permission
	for _, p := range f.perms {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func (f *fakeStore) CreateContact(_ context.Context, c *directory.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts[c.ID] = *c
	return nil
}

func (f *fakeStore) GetContact(_ context.Context, id string) (directory.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return directory.Contact{}, notFound("Contact not found")
	}
	return c, nil
}

func (f *fakeStore) ListContacts(_ context.Context, page directory.Page) ([]directory.Contact, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]directory.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return pageSlice(all, page), len(all), nil
}

func (f *fakeStore) UpdateContact(_ context.Context, id string, upd directory.ContactUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return notFound("Contact not found")
	}
	if upd.FirstName != nil {
		c.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		c.LastName = *upd.LastName
	}
	if upd.Email != nil {
		c.Email = *upd.Email
	}
	f.contacts[id] = c
	return nil
}

func (f *fakeStore) DeleteContact(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[id]; !ok {
		return notFound("Contact not found")
	}
	delete(f.contacts, id)
	return nil
}

func (f *fakeStore) ContactEmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.Email == email && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *directory.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (directory.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return directory.Session{}, notFound("Session not found")
	}
	return s, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return notFound("Session not found")
	}
	now := time.Now()
	s.RevokedAt = &now
	f.sessions[id] = s
	return nil
}

func pageSlice[T any](all []T, page directory.Page) []T {
	start := page.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + page.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// spyAuditStore records appended entries and serves canned query results.
type spyAuditStore struct {
	mu      sync.Mutex
	entries []audit.Entry

	queryEntries []audit.Entry
	queryTotal   int
	lastFilter   audit.Filter
	lastSort     audit.Sort
	lastPage     directory.Page
}

func (s *spyAuditStore) Append(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *spyAuditStore) Query(_ context.Context, filter audit.Filter, sort audit.Sort, page directory.Page) ([]audit.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	s.lastSort = sort
	s.lastPage = page
	return s.queryEntries, s.queryTotal, nil
}

func (s *spyAuditStore) recorded() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	store  *fakeStore
	audits *spyAuditStore
	api    *API
	seq    int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	svc, err := directory.NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	audits := &spyAuditStore{}
	api := New(Options{
		Service:    svc,
		Recorder:   audit.NewRecorder(audits),
		AuditStore: audits,
		Events:     stream.New[audit.Entry](),
		Tokens:     directory.NewTokenIssuer("test-secret", "contactdesk", time.Hour),
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, store: store, audits: audits, api: api}
}

// seedActor creates a user holding the given permission tokens through a
// single role and opens a session. Returns the session cookie.
func (e *testEnv) seedActor(username string, tokens ...string) *http.Cookie {
	e.t.Helper()
	e.seq++
	suffix := fmt.Sprintf("%s-%d", username, e.seq)
	now := time.Now().UTC()

	var permIDs []string
	for i, token := range tokens {
		id := fmt.Sprintf("perm-%s-%d", suffix, i)
		e.store.perms[id] = directory.Permission{ID: id, Name: token, Status: directory.StatusActive, CreatedAt: now, UpdatedAt: now}
		permIDs = append(permIDs, id)
	}
	roleID := "role-" + suffix
	e.store.roles[roleID] = directory.Role{ID: roleID, Name: "role for " + username, CreatedAt: now, UpdatedAt: now}
	e.store.rolePerms[roleID] = permIDs

	userID := "user-" + suffix
	e.store.users[userID] = directory.User{ID: userID, Username: username, Email: username + "@example.com", CreatedAt: now, UpdatedAt: now}
	e.store.userRoles[userID] = []string{roleID}

	sessionID := "sess-" + suffix
	e.store.sessions[sessionID] = directory.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	return &http.Cookie{Name: "session_id", Value: sessionID}
}

func (e *testEnv) request(method, path string, body any, cookie *http.Cookie, headers map[string]string) *http.Response {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}
