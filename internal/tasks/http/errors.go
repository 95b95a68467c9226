package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
	"github.com/nimbusworks/taskhive/pkg/httpx"
	"github.com/nimbusworks/taskhive/pkg/slogx"
)

// writeServiceError maps service-layer errors onto transport responses.
// Internal detail is logged, never sent to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteJSONError(w, http.StatusUnauthorized, "unauthenticated", "login required")
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteJSONError(w, http.StatusForbidden, "forbidden", "insufficient rights")
	case errors.Is(err, service.ErrValidation):
		httpx.WriteJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteJSONError(w, http.StatusNotFound, "not_found", "no such task")
	default:
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
		httpx.WriteJSONError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
