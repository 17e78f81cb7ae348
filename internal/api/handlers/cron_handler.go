package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/service"
)

type TaskDispatcher interface {
	Run(ctx context.Context, token string) (service.Summary, error)
}

type CheckTasksResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Stats    service.Stats `json:"stats"`
	Errors   []string      `json:"errors,omitempty"`
	Duration string        `json:"duration"`
}

// NewCheckTasksResponse is the JSON form of a completed run.
func NewCheckTasksResponse(summary service.Summary) CheckTasksResponse {
	return CheckTasksResponse{
		Success:  true,
		Message:  summary.Message,
		Stats:    summary.Stats,
		Errors:   summary.Errors,
		Duration: fmt.Sprintf("%dms", summary.Duration.Milliseconds()),
	}
}

type CronHandler struct {
	dispatcher TaskDispatcher
}

func NewCronHandler(dispatcher TaskDispatcher) *CronHandler {
	return &CronHandler{
		dispatcher: dispatcher,
	}
}

func (h *CronHandler) CheckTasks(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Erro interno no processamento de notificações",
				"details": fmt.Sprint(rec),
			})
		}
	}()

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		token = ""
	}

	summary, err := h.dispatcher.Run(r.Context(), token)

	var cfgErr *apperr.ConfigurationError
	var authErr *apperr.AuthorizationError
	switch {
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusInternalServerError, "CRON_SECRET não configurado no servidor")
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, "Não autorizado. Token inválido.")
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Erro interno no processamento de notificações",
			"details": err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, NewCheckTasksResponse(summary))
	}
}

func (h *CronHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	writeError(w, http.StatusMethodNotAllowed, "Método não permitido. Use GET.")
}
