package service

import (
	"context"
	"strings"

	"github.com/c360-copilot/backend/internal/ai"
	"github.com/c360-copilot/backend/internal/utils"
)

func (s *AnalysisService) sanitize(ctx context.Context, st *analysisState) error {
	st.result.RawSummary = st.result.Summary
	st.result.SanitizedSummary = s.SanitizeSummary(ctx, st.result.Summary)
	return nil
}

// SanitizeSummary asks the generator to mask sensitive data in summary and
// falls back to local pattern masking when the answer is unusable. An empty
// summary is returned unchanged without a call.
func (s *AnalysisService) SanitizeSummary(ctx context.Context, summary string) string {
	if strings.TrimSpace(summary) == "" {
		return summary
	}
	prompt, err := render(sanitizePrompt, map[string]any{"Summary": summary})
	if err == nil {
		var raw string
		if raw, err = s.AI.Generate(ctx, prompt); err == nil {
			var out struct {
				SanitizedSummary *string `json:"sanitized_summary"`
			}
			if err = ai.DecodeObject(raw, &out); err == nil {
				if out.SanitizedSummary == nil {
					return summary
				}
				return *out.SanitizedSummary
			}
		}
	}
	s.Logger.Warn().Err(err).Str("stage", "sanitize").Msg("using local masking")
	return utils.MaskSensitive(summary)
}
