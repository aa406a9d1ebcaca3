package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/c360-copilot/backend/internal/ai"
	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/models"
)

const (
	rawAnswerConfidence = 0.7
	rawAnswerSource     = "Case Data"
)

type QAService struct {
	Source crm.Source
	AI     ai.Generator
	Logger zerolog.Logger
}

// Answer returns crm.ErrNotFound for an unknown case and any other record
// source error as is. Generation problems never fail the call; they are
// reported inside the answer.
func (s *QAService) Answer(ctx context.Context, caseID, question string) (models.QueryAnswer, error) {
	c, err := s.Source.GetCaseByID(ctx, caseID)
	if err != nil {
		return models.QueryAnswer{}, err
	}
	related, err := s.Source.GetRelatedObjects(ctx, c.ID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("case_id", caseID).Msg("answering without related objects")
		related = nil
	}

	prompt, err := render(qaPrompt, map[string]any{
		"Context":  buildQAContext(c, related),
		"Question": question,
	})
	if err != nil {
		return errorAnswer(caseID, err), nil
	}
	raw, err := s.AI.Generate(ctx, prompt)
	if err != nil {
		s.Logger.Warn().Err(err).Str("case_id", caseID).Msg("question answering failed")
		return errorAnswer(caseID, err), nil
	}

	var out struct {
		Answer     string   `json:"answer"`
		Sources    []string `json:"sources"`
		Confidence *float64 `json:"confidence"`
	}
	switch err := ai.DecodeObject(raw, &out); {
	case errors.Is(err, ai.ErrNoJSONObject):
		return models.QueryAnswer{
			Answer:     strings.TrimSpace(raw),
			Sources:    []string{rawAnswerSource},
			Confidence: rawAnswerConfidence,
			CaseID:     caseID,
		}, nil
	case err != nil:
		s.Logger.Warn().Err(err).Str("case_id", caseID).Msg("answer was not valid JSON")
		return errorAnswer(caseID, err), nil
	}

	ans := models.QueryAnswer{
		Answer:     out.Answer,
		Sources:    nonNil(out.Sources),
		Confidence: rawAnswerConfidence,
		CaseID:     caseID,
	}
	if out.Confidence != nil {
		ans.Confidence = clamp(*out.Confidence, 0, 1)
	}
	return ans, nil
}

func errorAnswer(caseID string, err error) models.QueryAnswer {
	return models.QueryAnswer{
		Answer:     "I encountered an error while processing your question: " + err.Error(),
		Sources:    []string{},
		Confidence: 0,
		CaseID:     caseID,
	}
}

func buildQAContext(c models.CaseRecord, related []models.RelatedObjectBundle) string {
	var b strings.Builder
	b.WriteString("=== CASE DETAILS ===\n")
	fmt.Fprintf(&b, "Case ID: %s\n", c.ID)
	fmt.Fprintf(&b, "Subject: %s\n", c.Subject)
	fmt.Fprintf(&b, "Description: %s\n", c.Description)
	fmt.Fprintf(&b, "Priority: %s\n", c.Priority)
	fmt.Fprintf(&b, "Status: %s\n", c.Status)
	fmt.Fprintf(&b, "Created Date: %s\n", c.CreatedDate)

	for _, bundle := range related {
		if len(bundle.Records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n=== %s ===\n", strings.ToUpper(bundle.ObjectName))
		for _, rec := range bundle.Records {
			keys := make([]string, 0, len(rec))
			for k := range rec {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if k == "Id" || isEmpty(rec[k]) {
					continue
				}
				fmt.Fprintf(&b, "%s: %v\n", k, rec[k])
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
