package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"whatsapp-outbound-gateway/internal/model"
	"whatsapp-outbound-gateway/internal/service"
	"whatsapp-outbound-gateway/pkg/logger"
)

// SendHandler exposes the outbound send pipeline over HTTP
type SendHandler struct {
	api           *service.SendAPI
	maxMediaBytes int64
	textLimit     int
	logger        *logger.Logger
}

// NewSendHandler creates a new send handler
func NewSendHandler(api *service.SendAPI, maxMediaBytes int64, textLimit int, log *logger.Logger) *SendHandler {
	return &SendHandler{
		api:           api,
		maxMediaBytes: maxMediaBytes,
		textLimit:     textLimit,
		logger:        log,
	}
}

// SendText handles POST /api/v1/send/text
func (h *SendHandler) SendText(w http.ResponseWriter, r *http.Request) {
	var req model.SendTextRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.To == "" || req.Text == "" {
		h.sendErrorResponse(w, "ERR_MISSING_PARAMETER", "Missing required parameters: to, text", http.StatusBadRequest)
		return
	}
	if h.textLimit > 0 && len(req.Text) > h.textLimit {
		h.sendErrorResponse(w, "ERR_INVALID_PARAMETER", "Text too long", http.StatusBadRequest)
		return
	}

	result, err := h.api.SendMessage(r.Context(), req.To, req.Text, nil, "", &model.SendOptions{
		ReplyToID: req.ReplyToID,
		AccountID: req.AccountID,
	})
	if err != nil {
		h.logger.WithJID(req.To).Error("Failed to send text", "error", err)
		h.sendErrorResponse(w, h.mapErrorCode(err), err.Error(), http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Message sent", result)
}

// SendMedia handles POST /api/v1/send/media
func (h *SendHandler) SendMedia(w http.ResponseWriter, r *http.Request) {
	var req model.SendMediaRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.To == "" || req.MediaBase64 == "" || req.MediaType == "" {
		h.sendErrorResponse(w, "ERR_MISSING_PARAMETER", "Missing required parameters: to, media_base64, media_type", http.StatusBadRequest)
		return
	}

	media, err := base64.StdEncoding.DecodeString(req.MediaBase64)
	if err != nil {
		h.sendErrorResponse(w, "ERR_INVALID_PARAMETER", "media_base64 is not valid base64", http.StatusBadRequest)
		return
	}
	if h.maxMediaBytes > 0 && int64(len(media)) > h.maxMediaBytes {
		h.sendErrorResponse(w, "ERR_MEDIA_TOO_LARGE", "Media exceeds the configured size limit", http.StatusRequestEntityTooLarge)
		return
	}

	result, err := h.api.SendMessage(r.Context(), req.To, req.Caption, media, req.MediaType, &model.SendOptions{
		ReplyToID:   req.ReplyToID,
		AccountID:   req.AccountID,
		GifPlayback: req.GifPlayback,
	})
	if err != nil {
		h.logger.WithJID(req.To).Error("Failed to send media", "error", err)
		h.sendErrorResponse(w, h.mapErrorCode(err), err.Error(), http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Media sent", result)
}

// SendPoll handles POST /api/v1/send/poll
func (h *SendHandler) SendPoll(w http.ResponseWriter, r *http.Request) {
	var req model.SendPollRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.To == "" || req.Poll.Question == "" || len(req.Poll.Options) < 2 {
		h.sendErrorResponse(w, "ERR_MISSING_PARAMETER", "Poll needs a destination, a question, and at least two options", http.StatusBadRequest)
		return
	}

	result, err := h.api.SendPoll(r.Context(), req.To, req.Poll)
	if err != nil {
		h.logger.WithJID(req.To).Error("Failed to send poll", "error", err)
		h.sendErrorResponse(w, h.mapErrorCode(err), err.Error(), http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Poll sent", result)
}

// SendReaction handles POST /api/v1/send/reaction
func (h *SendHandler) SendReaction(w http.ResponseWriter, r *http.Request) {
	var req model.SendReactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ChatJID == "" || req.MessageID == "" || req.Emoji == "" {
		h.sendErrorResponse(w, "ERR_MISSING_PARAMETER", "Missing required parameters: chat_jid, message_id, emoji", http.StatusBadRequest)
		return
	}

	err := h.api.SendReaction(r.Context(), req.ChatJID, req.MessageID, req.Emoji, req.FromMe, req.Participant)
	if err != nil {
		h.logger.WithJID(req.ChatJID).Error("Failed to send reaction", "error", err)
		h.sendErrorResponse(w, h.mapErrorCode(err), err.Error(), http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Reaction sent", nil)
}

// SendTyping handles POST /api/v1/send/typing
func (h *SendHandler) SendTyping(w http.ResponseWriter, r *http.Request) {
	var req model.SendTypingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.To == "" {
		h.sendErrorResponse(w, "ERR_MISSING_PARAMETER", "Missing required parameter: to", http.StatusBadRequest)
		return
	}

	if err := h.api.SendComposingTo(r.Context(), req.To); err != nil {
		h.logger.WithJID(req.To).Error("Failed to send typing presence", "error", err)
		h.sendErrorResponse(w, h.mapErrorCode(err), err.Error(), http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Typing presence sent", nil)
}

// decode parses a JSON request body, writing an error response on failure
func (h *SendHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Method != http.MethodPost {
		h.sendErrorResponse(w, "ERR_METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendErrorResponse(w, "ERR_INVALID_BODY", "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// sendSuccessResponse sends success response
func (h *SendHandler) sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := model.APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

// sendErrorResponse sends error response
func (h *SendHandler) sendErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// mapErrorCode maps error to error code
func (h *SendHandler) mapErrorCode(err error) string {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "invalid destination"), strings.Contains(errMsg, "empty destination"):
		return "ERR_INVALID_DESTINATION"
	case strings.Contains(errMsg, "not connected"):
		return "ERR_WHATSAPP_NOT_CONNECTED"
	case strings.Contains(errMsg, "failed to upload"):
		return "ERR_MEDIA_UPLOAD_FAILED"
	case strings.Contains(errMsg, "failed to send"):
		return "ERR_MESSAGE_SEND_FAILED"
	default:
		return "ERR_INTERNAL_SERVER"
	}
}
