package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/service"
)

const maxSendBody = 64 << 10

type WhatsAppHandler struct {
	whatsappService *service.WhatsAppService
}

func NewWhatsAppHandler(whatsappService *service.WhatsAppService) *WhatsAppHandler {
	return &WhatsAppHandler{
		whatsappService: whatsappService,
	}
}

func (h *WhatsAppHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity := access.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Não autenticado. Faça login para continuar.")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSendBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error trying to read the body: "+err.Error())
		return
	}

	var reqBody service.SendMessageInput
	if err := json.Unmarshal(body, &reqBody); err != nil {
		writeError(w, http.StatusBadRequest, "Body da requisição inválido. Envie um JSON válido.")
		return
	}

	out, err := h.whatsappService.Send(r.Context(), identity, reqBody)
	if err != nil {
		writeSendError(w, err)
		return
	}

	if out.RecordErr != nil {
		if out.Send.OK() {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":  true,
				"warning":  "Mensagem enviada, mas houve erro ao salvar no banco de dados.",
				"whatsapp": out.Send.Data,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Erro ao processar mensagem.",
			"details": out.RecordErr.Error(),
		})
		return
	}

	if !out.Send.OK() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Falha ao enviar mensagem via WhatsApp.",
			"error":   out.Send.Err.Error(),
			"data": map[string]any{
				"id":      out.Record.ID,
				"status":  out.Record.Status,
				"savedAt": out.Record.SentAt,
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Mensagem enviada com sucesso!",
		"data":     out.Record,
		"whatsapp": out.Send.Data,
	})
}

func writeSendError(w http.ResponseWriter, err error) {
	var authErr *apperr.AuthorizationError
	var valErr *apperr.ValidationError
	switch {
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, "Não autenticado. Faça login para continuar.")
	case errors.As(err, &valErr):
		switch {
		case valErr.Field == "phone" && valErr.Message == "must not be empty":
			writeError(w, http.StatusBadRequest, "Campo 'phone' é obrigatório e não pode estar vazio.")
		case valErr.Field == "phone":
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "Número de telefone inválido. Use o formato brasileiro: (DDD) 99999-9999",
				"details": valErr.Message,
			})
		case valErr.Field == "message":
			writeError(w, http.StatusBadRequest, "Campo 'message' é obrigatório e não pode estar vazio.")
		default:
			writeError(w, http.StatusBadRequest, valErr.Error())
		}
	case errors.Is(err, service.ErrContactNotFound):
		writeError(w, http.StatusNotFound, "Contato não encontrado.")
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Erro interno no servidor.",
			"details": err.Error(),
		})
	}
}

func (h *WhatsAppHandler) Status(w http.ResponseWriter, r *http.Request) {
	if access.IdentityFromContext(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "Não autenticado. Faça login para continuar.")
		return
	}
	writeJSON(w, http.StatusOK, h.whatsappService.Status(r.Context()))
}
