package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"contactdesk.org/internal/directory"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth resolves the caller's principal from the session cookie or a
// bearer access token and attaches it to the context. Resolution failures
// leave the request anonymous; requireAuth decides whether that matters.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
			principal, err := a.svc.SessionPrincipal(r.Context(), cookie.Value)
			if err == nil {
				ctx := directory.ContextWithPrincipal(r.Context(), principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if !errors.Is(err, directory.ErrUnauthenticated) {
				respondError(w, http.StatusInternalServerError, "authentication error")
				return
			}
		}

		if a.tokens != nil {
			if token, ok := extractBearerToken(r.Header.Get(authHeader)); ok {
				userID, err := a.tokens.Verify(token)
				if err != nil {
					respondError(w, http.StatusUnauthorized, "Invalid or expired token")
					return
				}
				principal, err := a.svc.Principal(r.Context(), userID)
				if err != nil {
					respondError(w, http.StatusUnauthorized, "Invalid or expired token")
					return
				}
				ctx := directory.ContextWithPrincipal(r.Context(), principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects anonymous requests.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := directory.PrincipalFromContext(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// require gates a route on a permission token. Fails closed: no principal is
// 401, a principal without the token is 403.
func (a *API) require(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := directory.PrincipalFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !principal.HasPermission(token) {
				respondError(w, http.StatusForbidden, "You don't have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	return token, token != ""
}
