package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/audit"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.desk.ListUsers(r.Context(), session(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (a *API) setUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		handleError(w, r, err)
		return
	}
	user, err := a.desk.SetUserRole(r.Context(), session(r), chi.URLParam(r, "id"), role)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.desk.DeleteUser(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.desk.DashboardStats(r.Context(), session(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) recentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), audit.DefaultLimit, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	activities, err := a.desk.RecentActivity(r.Context(), session(r), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}
