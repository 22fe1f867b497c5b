package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/incident"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stream"
)

const streamHeartbeat = 25 * time.Second

// Stream serves incident changes as Server-Sent Events. Optional filters:
// kind=created|updated|deleted and critical=true.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	q := r.URL.Query()
	kind := stream.Kind(q.Get("kind"))
	switch kind {
	case "", stream.KindCreated, stream.KindUpdated, stream.KindDeleted:
	default:
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown event kind %q", kind))
		return
	}
	criticalOnly := q.Get("critical") == "true"

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := a.stream.Subscribe(r.Context())
	_, _ = fmt.Fprint(w, ": stream started\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	var seq int
	for {
		select {
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case evt, open := <-events:
			if !open {
				return
			}
			if kind != "" && evt.Kind != kind {
				continue
			}
			if criticalOnly && !(incident.Report{Type: evt.Type, Severity: evt.Severity}).Critical() {
				continue
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			seq++
			_, _ = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, evt.Kind, payload)
			flusher.Flush()
		}
	}
}
