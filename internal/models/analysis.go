package models

import "time"

type ReasoningSteps struct {
	ProblemUnderstanding string `json:"problem_understanding"`
	DataAnalysis         string `json:"data_analysis"`
	KeyInsights          string `json:"key_insights"`
	ActionPlanning       string `json:"action_planning"`
}

type AnalysisResult struct {
	CaseID                  string          `json:"case_id"`
	ReasoningSteps          *ReasoningSteps `json:"reasoning_steps,omitempty"`
	Summary                 string          `json:"summary"`
	NextActions             []string        `json:"next_actions"`
	PriorityLevel           string          `json:"priority_level"`
	EstimatedResolutionTime *string         `json:"estimated_resolution_time"`
	RequiredTeams           []string        `json:"required_teams"`
	ConfidenceScore         float64         `json:"confidence_score"`
	RawSummary              string          `json:"raw_summary"`
	SanitizedSummary        string          `json:"sanitized_summary"`
	AccuracyPercentage      float64         `json:"accuracy_percentage"`
}

type CaseClosedResponse struct {
	IsClosed   bool   `json:"is_closed"`
	CaseNumber string `json:"case_number"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	ClosedDate string `json:"closed_date,omitempty"`
}

type QueryAnswer struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
	CaseID     string   `json:"case_id"`
}

type NotifyAgentsResult struct {
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	CaseID         string    `json:"case_id"`
	NotifiedAgents []string  `json:"notified_agents"`
	Timestamp      time.Time `json:"timestamp"`
}
