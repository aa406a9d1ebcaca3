package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/c360-copilot/backend/internal/relay"
)

// Relay upgrades to a WebSocket joined to the relay under the role in the path.
func (h *Handler) Relay(c *gin.Context) {
	role := relay.Role(c.Param("role"))
	if role != relay.RoleUser && role != relay.RoleAgent {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "role must be user or agent", c.Param("role"))
		return
	}
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user_id is required", nil)
		return
	}
	if err := h.Hub.Serve(c.Writer, c.Request, role, userID, h.WSOrigins); err != nil {
		h.Logger.Warn().Err(err).Str("role", string(role)).Msg("websocket upgrade failed")
	}
}
