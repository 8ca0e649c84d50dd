package httpapi

import (
	"errors"
	"net/http"
	"time"

	"tasklane.app/internal/auth"
	"tasklane.app/internal/stream"
	"tasklane.app/internal/tasks"
	"tasklane.app/internal/tenant"
)

type createTaskRequest struct {
	Title string `json:"title"`
}

type listTasksResponse struct {
	Items []tasks.Task `json:"items"`
	AsOf  time.Time    `json:"as_of"`
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTasks(w, r)
	case http.MethodPost:
		a.createTask(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// listTasks returns the resolved tenant's tasks only. withAuth has
// already checked that the token's org matches the resolved org.
func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.OrgFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusBadRequest, "organization context required")
		return
	}

	items, err := a.tasks.ListByOrg(r.Context(), org.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []tasks.Task{}
	}
	writeJSON(w, http.StatusOK, listTasksResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	org, ok := tenant.OrgFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusBadRequest, "organization context required")
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task := &tasks.Task{
		OrgID:     org.ID,
		Title:     req.Title,
		CreatedBy: claims.UserID,
	}
	if err := a.tasks.Create(r.Context(), task); err != nil {
		if errors.Is(err, tasks.ErrInvalidTitle) {
			writeError(w, r, http.StatusBadRequest, "title is required")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if a.broker != nil {
		a.broker.Publish(stream.TaskEvent{
			Type:   "task.created",
			OrgID:  org.ID,
			TaskID: task.ID,
			Title:  task.Title,
			Status: task.Status,
		})
	}
	writeJSON(w, http.StatusCreated, task)
}
