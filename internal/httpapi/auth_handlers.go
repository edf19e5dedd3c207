package httpapi

import (
	"net/http"
	"time"

	"contactdesk.org/internal/audit"
	"contactdesk.org/internal/directory"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, session, err := a.svc.Register(r.Context(), directory.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, clientIP(r), r.UserAgent())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.setSessionCookie(w, session)

	// Audit as the freshly created principal so the row carries an actor.
	ctx := directory.ContextWithPrincipal(r.Context(), directory.NewPrincipal(user, user.Roles))
	a.recorder.Created(ctx, "User", user.ID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	user, session, err := a.svc.Login(r.Context(), identifier, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	a.setSessionCookie(w, session)

	principal, perr := a.svc.Principal(r.Context(), user.ID)
	if perr == nil {
		ctx := directory.ContextWithPrincipal(r.Context(), principal)
		a.recorder.Record(ctx, audit.Event{Action: "LOGIN", EntityType: "User", EntityID: user.ID})
		user.Roles = principal.Roles
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    user,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		if err := a.svc.Logout(r.Context(), cookie.Value); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	principal, _ := directory.PrincipalFromContext(r.Context())
	a.recorder.Record(r.Context(), audit.Event{Action: "LOGOUT", EntityType: "User", EntityID: principal.User.ID})
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (a *API) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	principal, _ := directory.PrincipalFromContext(r.Context())
	user := principal.User
	user.Roles = principal.Roles
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAuthToken mints a short-lived bearer token for API clients that
// already hold a session.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if a.tokens == nil {
		respondError(w, http.StatusServiceUnavailable, "Token issuance is not configured")
		return
	}
	principal, _ := directory.PrincipalFromContext(r.Context())
	token, expiresAt, err := a.tokens.Issue(principal.User.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (a *API) setSessionCookie(w http.ResponseWriter, session directory.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
