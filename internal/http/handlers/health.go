package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// @Summary Service info
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router / [get]
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Customer 360 Copilot API",
		"version": Version,
		"docs":    "/swagger/index.html",
	})
}

// @Summary Liveness
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/v1/health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Version: Version})
}

// @Summary Record source connectivity
// @Description Probes the configured CRM backend. Always 200; see the connected flag.
// @Tags health
// @Produce json
// @Success 200 {object} models.SourceHealth
// @Router /api/v1/salesforce/health [get]
func (h *Handler) SourceHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	health := h.Source.CheckConnection(ctx)
	health.Timestamp = time.Now().UTC()
	c.JSON(http.StatusOK, health)
}
