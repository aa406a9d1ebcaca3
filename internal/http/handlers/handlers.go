package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/c360-copilot/backend/internal/auth"
	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/relay"
	"github.com/c360-copilot/backend/internal/service"
)

const Version = "1.0.0"

type Handler struct {
	Source    crm.Source
	Analysis  *service.AnalysisService
	QA        *service.QAService
	Insights  *service.InsightsService
	Agents    *service.AgentDirectory
	Issuer    *auth.Issuer
	Hub       *relay.Hub
	Validator *validator.Validate
	Logger    zerolog.Logger

	// RejectClosed short-circuits analysis of closed cases.
	RejectClosed bool
	WSOrigins    []string
}

// NewValidator returns a validator that reports JSON field names and knows
// the notblank tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err), err.Error())
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation failed"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s) or characters", fe.Field(), fe.Param())
	case "datetime":
		return fe.Field() + " must be a date in YYYY-MM-DD format"
	default:
		return fe.Field() + " is invalid"
	}
}

// sourceError maps record source failures: absence is 404, anything else 500.
func (h *Handler) sourceError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, crm.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", notFound, nil)
		return
	}
	h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("record source call failed")
	writeError(c, http.StatusInternalServerError, "UPSTREAM_ERROR", "Record source request failed", err.Error())
}
