package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/c360-copilot/backend/internal/ai"
	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/models"
)

const (
	defaultConfidence  = 0.85
	fallbackConfidence = 0.75
	fallbackEstimate   = "24-48 hours"

	ClosedCaseMessage = "This case is closed. Analysis is not available for closed cases."
)

// AnalysisService runs the case analysis pipeline: fetch, analyze, sanitize
// and score. Only the fetch stage can fail the run.
type AnalysisService struct {
	Source   crm.Source
	AI       ai.Generator
	Logger   zerolog.Logger
	Examples []FewShotExample
}

// CaseData is the case plus its related bundles, either fetched by the
// pipeline or handed in by a caller that already looked the case up.
type CaseData struct {
	Case    models.CaseRecord
	Related []models.RelatedObjectBundle
}

type analysisState struct {
	caseID string
	data   *CaseData
	result models.AnalysisResult
}

type stage struct {
	name string
	run  func(ctx context.Context, st *analysisState) error
}

func (s *AnalysisService) stages() []stage {
	return []stage{
		{name: "fetch", run: s.fetch},
		{name: "analyze", run: s.analyze},
		{name: "sanitize", run: s.sanitize},
		{name: "score", run: score},
	}
}

// Analyze runs the pipeline for caseID. When prefetched is non-nil the fetch
// stage uses it instead of calling the record source.
func (s *AnalysisService) Analyze(ctx context.Context, caseID string, prefetched *CaseData) (models.AnalysisResult, error) {
	st := &analysisState{caseID: caseID, data: prefetched}
	for _, stg := range s.stages() {
		if err := stg.run(ctx, st); err != nil {
			s.Logger.Error().Err(err).Str("case_id", caseID).Str("stage", stg.name).Msg("case analysis failed")
			return models.AnalysisResult{}, err
		}
	}
	return st.result, nil
}

func (s *AnalysisService) fetch(ctx context.Context, st *analysisState) error {
	if st.data != nil {
		return nil
	}
	c, err := s.Source.GetCaseByID(ctx, st.caseID)
	if err != nil {
		return err
	}
	related, err := s.Source.GetRelatedObjects(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("related objects for %s: %w", c.ID, err)
	}
	st.data = &CaseData{Case: c, Related: related}
	return nil
}

type analysisOutput struct {
	ReasoningSteps          *models.ReasoningSteps `json:"reasoning_steps"`
	Summary                 string                 `json:"summary"`
	NextActions             []string               `json:"next_actions"`
	PriorityLevel           string                 `json:"priority_level"`
	EstimatedResolutionTime *string                `json:"estimated_resolution_time"`
	RequiredTeams           []string               `json:"required_teams"`
	ConfidenceScore         *float64               `json:"confidence_score"`
}

func (s *AnalysisService) analyze(ctx context.Context, st *analysisState) error {
	c := st.data.Case
	prompt, err := render(analysisPrompt, map[string]any{
		"Case":     c,
		"Related":  formatRelatedData(st.data.Related),
		"Examples": formatExamples(s.Examples),
	})
	var out analysisOutput
	if err == nil {
		var raw string
		if raw, err = s.AI.Generate(ctx, prompt); err == nil {
			err = ai.DecodeObject(raw, &out)
		}
	}
	if err != nil {
		s.Logger.Warn().Err(err).Str("case_id", c.ID).Str("stage", "analyze").Msg("using fallback analysis")
		st.result = fallbackAnalysis(c)
		return nil
	}

	res := models.AnalysisResult{
		CaseID:                  c.ID,
		ReasoningSteps:          out.ReasoningSteps,
		Summary:                 out.Summary,
		NextActions:             nonNil(out.NextActions),
		PriorityLevel:           string(casePriority(c)),
		EstimatedResolutionTime: out.EstimatedResolutionTime,
		RequiredTeams:           nonNil(out.RequiredTeams),
		ConfidenceScore:         defaultConfidence,
	}
	if strings.TrimSpace(out.PriorityLevel) != "" {
		res.PriorityLevel = string(models.ParsePriority(out.PriorityLevel))
	}
	if res.EstimatedResolutionTime != nil && strings.TrimSpace(*res.EstimatedResolutionTime) == "" {
		res.EstimatedResolutionTime = nil
	}
	if out.ConfidenceScore != nil {
		res.ConfidenceScore = clamp(*out.ConfidenceScore, 0, 1)
	}
	st.result = res
	return nil
}

func fallbackAnalysis(c models.CaseRecord) models.AnalysisResult {
	estimate := fallbackEstimate
	subject := c.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "the reported issue"
	}
	return models.AnalysisResult{
		CaseID: c.ID,
		ReasoningSteps: &models.ReasoningSteps{
			ProblemUnderstanding: "Analysis in progress",
			DataAnalysis:         "Reviewing case details",
			KeyInsights:          "Gathering insights",
			ActionPlanning:       "Planning next steps",
		},
		Summary: fmt.Sprintf("Case %s regarding %s requires attention.", c.ID, subject),
		NextActions: []string{
			"Review case details thoroughly",
			"Contact customer for additional information",
			"Escalate to appropriate team",
		},
		PriorityLevel:           string(casePriority(c)),
		EstimatedResolutionTime: &estimate,
		RequiredTeams:           []string{"Support"},
		ConfidenceScore:         fallbackConfidence,
	}
}

func score(_ context.Context, st *analysisState) error {
	st.result.AccuracyPercentage = Accuracy(st.result)
	return nil
}

// Accuracy derives a percentage from the confidence score, discounted for each
// missing optional part of the analysis.
func Accuracy(r models.AnalysisResult) float64 {
	completeness := 1.0
	if len(r.NextActions) == 0 {
		completeness *= 0.8
	}
	if len(r.RequiredTeams) == 0 {
		completeness *= 0.9
	}
	if r.EstimatedResolutionTime == nil || strings.TrimSpace(*r.EstimatedResolutionTime) == "" {
		completeness *= 0.95
	}
	acc := clamp(clamp(r.ConfidenceScore, 0, 1)*completeness*100, 0, 100)
	return math.Round(acc*100) / 100
}

// PrefetchedFromCase builds pipeline input from a case looked up by number,
// using the account and contact snapshots embedded in the record.
func PrefetchedFromCase(c models.CaseRecord) *CaseData {
	data := &CaseData{Case: c}
	if len(c.Account) > 0 {
		data.Related = append(data.Related, models.RelatedObjectBundle{ObjectName: "Account", Records: []map[string]any{c.Account}})
	}
	if len(c.Contact) > 0 {
		data.Related = append(data.Related, models.RelatedObjectBundle{ObjectName: "Contact", Records: []map[string]any{c.Contact}})
	}
	return data
}

// ClosedResponse is returned instead of an analysis when closed cases are
// rejected.
func ClosedResponse(c models.CaseRecord) models.CaseClosedResponse {
	return models.CaseClosedResponse{
		IsClosed:   true,
		CaseNumber: c.CaseNumber,
		Status:     c.Status,
		Message:    ClosedCaseMessage,
		ClosedDate: c.ClosedDate,
	}
}

func casePriority(c models.CaseRecord) models.Priority {
	if c.Priority == "" {
		return models.PriorityMedium
	}
	return c.Priority
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
