package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/pkg/httpx"
)

type AdminHandler struct {
	Tasks *service.TaskService
	Audit *service.AuditService
}

type auditResponse struct {
	ID           string    `json:"id"`
	ActorEmail   string    `json:"actor_email"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Details      string    `json:"details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (h *AdminHandler) HandleAllTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListAll(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tasks": toTaskResponses(tasks)})
}

// HandleAuditLog returns recent audit entries, newest first. The limit
// query parameter is optional and clamped server-side.
func (h *AdminHandler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Audit.Recent(r.Context(), sessionFrom(r.Context()), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]auditResponse, len(entries))
	for i, e := range entries {
		out[i] = auditResponse{
			ID:           e.ID,
			ActorEmail:   e.ActorEmail,
			Action:       string(e.Action),
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Details:      e.Details,
			Timestamp:    e.Timestamp,
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *AdminHandler) HandleUserCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Tasks.UserCounts(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if counts == nil {
		counts = []domain.UserTaskCount{}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": counts})
}
