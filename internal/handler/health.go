package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"whatsapp-outbound-gateway/internal/cache"
	"whatsapp-outbound-gateway/internal/config"
	"whatsapp-outbound-gateway/internal/repository"
	"whatsapp-outbound-gateway/internal/service"
	"whatsapp-outbound-gateway/pkg/logger"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	whatsappService *service.WhatsAppService
	quoteCache      *cache.QuoteCache
	activityRepo    *repository.ActivityRepository
	config          *config.Config
	logger          *logger.Logger
	startTime       time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(waService *service.WhatsAppService, quoteCache *cache.QuoteCache, activityRepo *repository.ActivityRepository, cfg *config.Config, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		whatsappService: waService,
		quoteCache:      quoteCache,
		activityRepo:    activityRepo,
		config:          cfg,
		logger:          log,
		startTime:       time.Now(),
	}
}

// CheckHealth handles GET /health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	waStatus := h.whatsappService.GetConnectionStatus()
	uptime := time.Since(h.startTime)

	response := map[string]interface{}{
		"status":   "healthy",
		"whatsapp": waStatus,
		"quote_cache": map[string]interface{}{
			"size": h.quoteCache.Len(),
		},
		"reply_webhook": map[string]interface{}{
			"configured": h.config.Reply.WebhookURL != "",
		},
		"uptime":    uptime.String(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if h.activityRepo != nil {
		if count, err := h.activityRepo.CountSince(time.Now().Add(-24 * time.Hour)); err == nil {
			response["activity_24h"] = count
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
