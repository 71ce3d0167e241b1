package handler

import (
	"encoding/json"
	"net/http"

	"whatsapp-outbound-gateway/internal/model"
	"whatsapp-outbound-gateway/internal/service"
	"whatsapp-outbound-gateway/pkg/logger"
)

// GroupsHandler handles group-related requests
type GroupsHandler struct {
	whatsappService *service.WhatsAppService
	logger          *logger.Logger
}

// NewGroupsHandler creates a new groups handler
func NewGroupsHandler(waService *service.WhatsAppService, log *logger.Logger) *GroupsHandler {
	return &GroupsHandler{
		whatsappService: waService,
		logger:          log,
	}
}

// GroupInfo represents group information for API response
type GroupInfo struct {
	JID          string `json:"jid"`
	Name         string `json:"name"`
	Topic        string `json:"topic,omitempty"`
	Participants int    `json:"participants"`
	IsAnnounce   bool   `json:"is_announce"`
}

// ListGroups handles GET /api/v1/groups
func (h *GroupsHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groups, err := h.whatsappService.GetJoinedGroups(ctx)
	if err != nil {
		h.logger.Error("Failed to get joined groups", "error", err)
		h.sendErrorResponse(w, "Failed to retrieve groups", http.StatusInternalServerError)
		return
	}

	groupsList := make([]GroupInfo, 0, len(groups))
	for _, group := range groups {
		groupsList = append(groupsList, GroupInfo{
			JID:          group.JID.String(),
			Name:         group.Name,
			Topic:        group.Topic,
			Participants: len(group.Participants),
			IsAnnounce:   group.IsAnnounce,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "success",
		Message: "Groups retrieved",
		Data:    groupsList,
	})
}

// sendErrorResponse sends error response in JSON format
func (h *GroupsHandler) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:    "ERR_GROUPS_UNAVAILABLE",
			Message: message,
		},
	})
}
