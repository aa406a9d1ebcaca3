package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/models"
	"github.com/c360-copilot/backend/internal/service"
)

const dateLayout = "2006-01-02"

type AccountSearchRequest struct {
	Identifier string `json:"identifier" validate:"notblank"`
}

type InsightsRequest struct {
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Formats   []string `json:"formats"`
}

// @Summary Find an account
// @Description Matches by account id, otherwise by name.
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body AccountSearchRequest true "Account id or name"
// @Success 200 {object} models.AccountSearchResponse
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/accounts/search [post]
func (h *Handler) SearchAccount(c *gin.Context) {
	var req AccountSearchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if len([]rune(identifier)) < 2 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "identifier must be at least 2 characters", nil)
		return
	}
	acct, err := h.Source.SearchAccount(c.Request.Context(), identifier)
	if err != nil {
		h.sourceError(c, err, "No account found matching '"+identifier+"'")
		return
	}
	c.JSON(http.StatusOK, models.AccountSearchResponse{Found: true, Account: acct})
}

// @Summary Account activity insights
// @Description Summarizes tasks, events and cases in the date range in batches, then merges them.
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account id"
// @Param payload body InsightsRequest true "Date range and formats"
// @Success 200 {object} models.InsightsReport
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/accounts/{id}/insights [post]
func (h *Handler) AccountInsights(c *gin.Context) {
	var req InsightsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	if end.Before(start) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "end_date must not be before start_date", nil)
		return
	}

	accountID := strings.TrimSpace(c.Param("id"))
	if !crm.IsAccountID(accountID) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Account "+accountID+" not found", nil)
		return
	}
	ctx := c.Request.Context()
	acct, err := h.Source.SearchAccount(ctx, accountID)
	if err != nil {
		h.sourceError(c, err, "Account "+accountID+" not found")
		return
	}
	activities, err := h.Source.GetAccountActivities(ctx, acct.ID, start, end)
	if err != nil {
		h.sourceError(c, err, "Account "+accountID+" not found")
		return
	}

	report := h.Insights.Generate(ctx, service.InsightsRequest{
		Account:    acct,
		Activities: activities,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Formats:    models.ParseFormats(req.Formats),
	})
	c.JSON(http.StatusOK, report)
}
