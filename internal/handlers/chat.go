package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"xpert-backend/internal/models"
	"xpert-backend/internal/services"
)

type chatGateway interface {
	HandleChatRequest(ctx context.Context, req *models.ChatRequest, image *models.Attachment) (*models.ChatResponse, error)
}

type ChatHandler struct {
	gateway chatGateway
}

func NewChatHandler(gateway chatGateway) *ChatHandler {
	return &ChatHandler{gateway: gateway}
}

// Completions serves POST /v1/chat/completions. Only malformed payloads
// produce a non-200 status.
func (h *ChatHandler) Completions(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, services.InvalidChatResponse(err))
		return
	}

	resp, err := h.gateway.HandleChatRequest(r.Context(), &req, req.Attachment())
	if err != nil {
		var invalid *services.InvalidRequestError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, services.InvalidChatResponse(err))
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
