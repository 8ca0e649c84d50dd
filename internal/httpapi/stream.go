package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"tasklane.app/internal/tenant"
)

// handleTaskStream serves the tenant's task events over Server-Sent
// Events. The subscription is bound to the resolved organization; other
// tenants' events never reach this connection.
func (a *API) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	if a.broker == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	org, ok := tenant.OrgFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusBadRequest, "organization context required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.broker.Subscribe(ctx, org.ID)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
