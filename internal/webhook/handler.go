package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salesvox/conversa/internal/config"
	"github.com/salesvox/conversa/internal/conversation"
	"github.com/salesvox/conversa/internal/model"
)

// CallbackProcessor applies a verified callback payload.
type CallbackProcessor interface {
	Process(ctx context.Context, payload *model.CallbackPayload) error
}

// Handler serves the workflow engine's conversation callback endpoint.
type Handler struct {
	cfg       config.WebhookConfig
	processor CallbackProcessor
	now       func() time.Time
}

// NewHandler creates the callback handler.
func NewHandler(cfg config.WebhookConfig, processor CallbackProcessor) *Handler {
	return &Handler{cfg: cfg, processor: processor, now: time.Now}
}

type callbackResponse struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP verifies signature and timestamp over the raw body before any
// JSON parsing, then dispatches to the processor. Authentication failures
// return 401 with no detail about which check failed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		zap.L().Warn("webhook: body read failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if !VerifySignature(h.cfg.Secret, body, r.Header.Get(h.cfg.SignatureHeader)) {
		zap.L().Warn("webhook: signature verification failed",
			zap.String("remote_addr", r.RemoteAddr),
		)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	if err := VerifyTimestamp(r.Header.Get(h.cfg.TimestampHeader), h.now(), h.cfg.ReplayWindow()); err != nil {
		zap.L().Warn("webhook: replay check failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	payload, err := decodePayload(body)
	if err != nil {
		zap.L().Warn("webhook: invalid payload", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	if err := h.processor.Process(r.Context(), payload); err != nil {
		if eris.Is(err, conversation.ErrConversationNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "conversation not found"})
			return
		}
		zap.L().Error("webhook: callback processing failed",
			zap.String("conversation_id", payload.ConversationID),
			zap.String("tenant_id", payload.TenantID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, callbackResponse{
		Success:        true,
		ConversationID: payload.ConversationID,
		Status:         string(payload.Status),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
