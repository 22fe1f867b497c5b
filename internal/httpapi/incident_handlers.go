package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/incident"
)

func (a *API) listIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		reports []incident.Report
		err     error
	)
	switch {
	case q.Get("critical") == "true":
		reports, err = a.desk.ListCritical(r.Context())
	case q.Get("reporter") != "":
		reports, err = a.desk.ListReportsByReporter(r.Context(), session(r), q.Get("reporter"))
	case q.Get("status") != "":
		reports, err = a.desk.ListReportsByStatus(r.Context(), incident.Status(q.Get("status")))
	default:
		reports, err = a.desk.ListReports(r.Context())
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": reports})
}

func (a *API) myIncidents(w http.ResponseWriter, r *http.Request) {
	reports, err := a.desk.MyReports(r.Context(), session(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": reports})
}

// createIncidentRequest accepts, and discards, the server-assigned fields
// some clients echo back.
type createIncidentRequest struct {
	incident.Draft
	ID             any `json:"id,omitempty"`
	TrackingNumber any `json:"tracking_number,omitempty"`
	Timestamp      any `json:"timestamp,omitempty"`
}

func (a *API) createIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.desk.CreateReport(r.Context(), session(r), req.Draft)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(report))
	writeJSON(w, http.StatusCreated, report)
}

func (a *API) getIncident(w http.ResponseWriter, r *http.Request) {
	report, err := a.desk.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(report))
	writeJSON(w, http.StatusOK, report)
}

// patchIncident applies a partial update. An If-Match header carrying the
// report version makes the write conditional.
func (a *API) patchIncident(w http.ResponseWriter, r *http.Request) {
	var patch incident.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if raw := r.Header.Get("If-Match"); raw != "" {
		v, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(strings.TrimSpace(raw), "W/"), `"`))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "If-Match must carry a report version")
			return
		}
		patch.ExpectedVersion = &v
	}
	report, err := a.desk.UpdateReport(r.Context(), session(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(report))
	writeJSON(w, http.StatusOK, report)
}

func (a *API) deleteIncident(w http.ResponseWriter, r *http.Request) {
	if err := a.desk.DeleteReport(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (a *API) appendNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.desk.AppendNote(r.Context(), session(r), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

func (a *API) assignIncident(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.desk.Assign(r.Context(), session(r), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func etag(r incident.Report) string {
	return fmt.Sprintf("%q", strconv.Itoa(r.Version))
}
