package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Available agents
// @Description Case owner first when case_number resolves, then up to three active users.
// @Tags agents
// @Produce json
// @Security BearerAuth
// @Param case_number query string false "Case number"
// @Success 200 {array} models.AgentInfo
// @Failure 500 {object} map[string]any
// @Router /api/v1/agents/available [get]
func (h *Handler) AvailableAgents(c *gin.Context) {
	agents, err := h.Agents.Available(c.Request.Context(), c.Query("case_number"))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list agents failed")
		writeError(c, http.StatusInternalServerError, "UPSTREAM_ERROR", "Failed to load agents", err.Error())
		return
	}
	c.JSON(http.StatusOK, agents)
}
