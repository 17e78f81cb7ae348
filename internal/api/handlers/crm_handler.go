package handlers

import (
	"errors"
	"net/http"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/service"
)

type listMeta struct {
	Total int    `json:"total"`
	Role  string `json:"role"`
}

type CRMHandler struct {
	crmService *service.CRMService
}

func NewCRMHandler(crmService *service.CRMService) *CRMHandler {
	return &CRMHandler{
		crmService: crmService,
	}
}

func (h *CRMHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	identity := access.IdentityFromContext(r.Context())
	contacts, err := h.crmService.Contacts(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contacts": contacts,
		"meta":     listMeta{Total: len(contacts), Role: access.RoleName(identity)},
	})
}

func (h *CRMHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	identity := access.IdentityFromContext(r.Context())
	opps, err := h.crmService.Opportunities(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"meta":          listMeta{Total: len(opps), Role: access.RoleName(identity)},
	})
}

func (h *CRMHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	identity := access.IdentityFromContext(r.Context())
	tasks, err := h.crmService.Tasks(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"meta":  listMeta{Total: len(tasks), Role: access.RoleName(identity)},
	})
}

func (h *CRMHandler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.crmService.Dashboard(r.Context(), access.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var authErr *apperr.AuthorizationError
	if errors.As(err, &authErr) {
		writeError(w, http.StatusUnauthorized, "Não autenticado. Faça login para continuar.")
		return
	}
	writeError(w, http.StatusInternalServerError, "Error trying to load data: "+err.Error())
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
