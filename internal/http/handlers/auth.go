package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/c360-copilot/backend/internal/auth"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

// formOrQuery reads a parameter from the query string, then the form body.
func formOrQuery(c *gin.Context, name string) string {
	if v, ok := c.GetQuery(name); ok {
		return v
	}
	return c.PostForm(name)
}

// @Summary Issue a bearer token
// @Description Any non-empty credentials are accepted.
// @Tags auth
// @Produce json
// @Param username query string true "username"
// @Param password query string true "password"
// @Param role query string false "user or agent (default agent)"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/v1/auth/token [post]
func (h *Handler) Token(c *gin.Context) {
	username := strings.TrimSpace(formOrQuery(c, "username"))
	password := formOrQuery(c, "password")
	if username == "" || password == "" {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	}
	role := strings.TrimSpace(formOrQuery(c, "role"))
	if role == "" {
		role = auth.RoleAgent
	}
	if !auth.ValidRole(role) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "role must be user or agent", role)
		return
	}

	token, _, err := h.Issuer.Issue(username, role)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", err.Error())
		return
	}
	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer", Role: role})
}
