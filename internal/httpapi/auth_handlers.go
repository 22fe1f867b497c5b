package httpapi

import (
	"net/http"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/audit"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/desk"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      auth.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, tok, err := a.desk.Login(r.Context(), &auth.Session{}, req.Email, req.Password)
	if err != nil {
		_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{"email": req.Email})
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user_id":    user.ID,
		"role":       user.Role,
		"expires_at": tok.ExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: tok.Value, ExpiresAt: tok.ExpiresAt})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req desk.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, tok, err := a.desk.Register(r.Context(), &auth.Session{}, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.registered", map[string]any{"user_id": user.ID})
	writeJSON(w, http.StatusCreated, sessionResponse{User: user, Token: tok.Value, ExpiresAt: tok.ExpiresAt})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok, err := a.desk.CurrentUser(r.Context(), session(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !ok {
		handleError(w, r, auth.ErrInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleLogout is stateless: tokens are not revoked, the client drops its copy.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.desk.Logout(session(r))
	w.WriteHeader(http.StatusNoContent)
}
