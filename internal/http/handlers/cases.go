package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/models"
	"github.com/c360-copilot/backend/internal/service"
)

type AnalyzeCaseRequest struct {
	CaseID                string `json:"case_id" validate:"notblank"`
	IncludeRelatedObjects *bool  `json:"include_related_objects"`
}

type NotifyAgentsRequest struct {
	AgentIDs []string `json:"agent_ids" validate:"min=1,dive,notblank"`
	Summary  string   `json:"summary" validate:"notblank"`
}

type SaveSummaryRequest struct {
	Summary        string         `json:"summary" validate:"notblank"`
	AdditionalData map[string]any `json:"additional_data"`
}

type QueryRequest struct {
	Question string `json:"question" validate:"notblank"`
}

type CaseDetailsResponse struct {
	Case           models.CaseRecord            `json:"case"`
	RelatedObjects []models.RelatedObjectBundle `json:"related_objects"`
}

// @Summary Analyze a case
// @Description Looks the case up by number and runs the analysis pipeline.
// @Tags cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body AnalyzeCaseRequest true "Case number"
// @Success 200 {object} models.AnalysisResult
// @Success 200 {object} models.CaseClosedResponse
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /api/v1/cases/analyze [post]
func (h *Handler) AnalyzeCase(c *gin.Context) {
	var req AnalyzeCaseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	cs, err := h.Source.GetCaseByNumber(ctx, req.CaseID)
	if err != nil {
		h.sourceError(c, err, fmt.Sprintf("Case with number '%s' not found. Please verify the case number.", req.CaseID))
		return
	}
	if h.RejectClosed && cs.IsClosed {
		c.JSON(http.StatusOK, service.ClosedResponse(cs))
		return
	}

	data := service.PrefetchedFromCase(cs)
	if req.IncludeRelatedObjects == nil || *req.IncludeRelatedObjects {
		related, err := h.Source.GetRelatedObjects(ctx, cs.ID)
		if err != nil {
			h.sourceError(c, err, fmt.Sprintf("Case %s not found", cs.ID))
			return
		}
		data.Related = mergeBundles(data.Related, related)
	}

	result, err := h.Analysis.Analyze(ctx, cs.ID, data)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Error analyzing case", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// mergeBundles appends the bundles whose object type is not present yet.
func mergeBundles(base, extra []models.RelatedObjectBundle) []models.RelatedObjectBundle {
	seen := map[string]bool{}
	for _, b := range base {
		seen[b.ObjectName] = true
	}
	for _, b := range extra {
		if !seen[b.ObjectName] {
			base = append(base, b)
			seen[b.ObjectName] = true
		}
	}
	return base
}

// @Summary Case details
// @Tags cases
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case record id"
// @Success 200 {object} CaseDetailsResponse
// @Failure 404 {object} map[string]any
// @Router /api/v1/cases/{id} [get]
func (h *Handler) CaseDetails(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	cs, err := h.Source.GetCaseByID(ctx, id)
	if err != nil {
		h.sourceError(c, err, fmt.Sprintf("Case %s not found", id))
		return
	}
	related, err := h.Source.GetRelatedObjects(ctx, cs.ID)
	if err != nil {
		h.sourceError(c, err, fmt.Sprintf("Case %s not found", id))
		return
	}
	if related == nil {
		related = []models.RelatedObjectBundle{}
	}
	c.JSON(http.StatusOK, CaseDetailsResponse{Case: cs, RelatedObjects: related})
}

// @Summary Notify agents about a case
// @Description Acknowledges the request; no message is delivered.
// @Tags cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case id"
// @Param payload body NotifyAgentsRequest true "Agents and summary"
// @Success 200 {object} models.NotifyAgentsResult
// @Failure 400 {object} map[string]any
// @Router /api/v1/cases/{id}/notify-agents [post]
func (h *Handler) NotifyAgents(c *gin.Context) {
	var req NotifyAgentsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caseID := c.Param("id")
	h.Logger.Info().Str("case_id", caseID).Strs("agent_ids", req.AgentIDs).Msg("agents notified")
	c.JSON(http.StatusOK, models.NotifyAgentsResult{
		Status:         "success",
		Message:        fmt.Sprintf("Summary sent to %d agent(s)", len(req.AgentIDs)),
		CaseID:         caseID,
		NotifiedAgents: req.AgentIDs,
		Timestamp:      time.Now().UTC(),
	})
}

// @Summary Save a case summary
// @Description Creates or updates the summary record for the case.
// @Tags cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case record id"
// @Param payload body SaveSummaryRequest true "Summary"
// @Success 200 {object} models.SaveSummaryResult
// @Failure 400 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /api/v1/cases/{id}/save-summary [post]
func (h *Handler) SaveSummary(c *gin.Context) {
	var req SaveSummaryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caseID := c.Param("id")
	res, err := h.Source.SaveCaseSummary(c.Request.Context(), caseID, req.Summary, req.AdditionalData)
	if err != nil {
		h.Logger.Error().Err(err).Str("case_id", caseID).Msg("save summary failed")
		writeError(c, http.StatusInternalServerError, "UPSTREAM_ERROR", "Failed to save summary", err.Error())
		return
	}
	if !res.Success {
		writeError(c, http.StatusInternalServerError, "UPSTREAM_ERROR", res.Message, res.Error)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Ask a question about a case
// @Tags cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case record id"
// @Param payload body QueryRequest true "Question"
// @Success 200 {object} models.QueryAnswer
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/cases/{id}/query [post]
func (h *Handler) QueryCase(c *gin.Context) {
	var req QueryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caseID := c.Param("id")
	ans, err := h.QA.Answer(c.Request.Context(), caseID, req.Question)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Case %s not found", caseID), nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Error processing question", err.Error())
		return
	}
	c.JSON(http.StatusOK, ans)
}
