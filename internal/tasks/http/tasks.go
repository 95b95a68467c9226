package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/pkg/httpx"
)

type TasksHandler struct {
	Tasks *service.TaskService
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

func (tr taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:       tr.Title,
		Description: tr.Description,
		Status:      domain.TaskStatus(tr.Status),
		Priority:    domain.TaskPriority(tr.Priority),
	}
}

type taskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	UserEmail   string    `json:"user_email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTaskResponse(t domain.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		UserEmail:   t.UserEmail,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTaskResponses(tasks []domain.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskResponse(t)
	}
	return out
}

// HandleList returns the caller's tasks; ?all=true returns every task and
// is admin only.
func (h *TasksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var (
		tasks []domain.Task
		err   error
	)
	if r.URL.Query().Get("all") == "true" {
		tasks, err = h.Tasks.ListAll(r.Context(), sess)
	} else {
		tasks, err = h.Tasks.List(r.Context(), sess)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tasks": toTaskResponses(tasks)})
}

func (h *TasksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	task, err := h.Tasks.Create(r.Context(), sessionFrom(r.Context()), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *TasksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.Tasks.Get(r.Context(), sessionFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TasksHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	task, err := h.Tasks.Update(r.Context(), sessionFrom(r.Context()), r.PathValue("id"), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TasksHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	task, err := h.Tasks.UpdateStatus(r.Context(), sessionFrom(r.Context()), r.PathValue("id"), domain.TaskStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TasksHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.Delete(r.Context(), sessionFrom(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TasksHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Tasks.Stats(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, stats)
}
