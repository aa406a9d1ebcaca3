package service

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/c360-copilot/backend/internal/models"
)

//go:embed data/examples.csv
var examplesCSV []byte

type FewShotExample struct {
	Subject     string
	Priority    string
	Summary     string
	NextActions string
}

// LoadExamples parses the embedded few-shot examples. A malformed file yields
// no examples rather than an error.
func LoadExamples() []FewShotExample {
	ex, err := parseExamples(bytes.NewReader(examplesCSV))
	if err != nil {
		return nil
	}
	return ex
}

func parseExamples(r io.Reader) ([]FewShotExample, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}
	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	get := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	out := make([]FewShotExample, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, FewShotExample{
			Subject:     get(row, "case_subject"),
			Priority:    get(row, "case_priority"),
			Summary:     get(row, "expected_summary"),
			NextActions: get(row, "expected_next_actions"),
		})
	}
	return out, nil
}

func formatExamples(examples []FewShotExample) string {
	if len(examples) == 0 {
		return "No examples available."
	}
	if len(examples) > 3 {
		examples = examples[:3]
	}
	var b strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&b, "\n**Example %d:**\nCase: %s\nPriority: %s\nSummary: %s\nNext Actions: %s\n",
			i+1, ex.Subject, ex.Priority, ex.Summary, ex.NextActions)
	}
	return b.String()
}

func formatRelatedData(bundles []models.RelatedObjectBundle) string {
	if len(bundles) == 0 {
		return "No related records."
	}
	var b strings.Builder
	for _, bundle := range bundles {
		fmt.Fprintf(&b, "\n**%s:**\n", bundle.ObjectName)
		for _, rec := range bundle.Records {
			raw, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "  - %s\n", raw)
		}
	}
	return b.String()
}

var analysisPrompt = template.Must(template.New("analysis").Parse(`You are an expert assistant helping customer service agents analyze CRM cases.

Analyze the case below and its related records step by step.

**Case Information:**
- Case ID: {{.Case.ID}}
- Subject: {{.Case.Subject}}
- Description: {{.Case.Description}}
- Priority: {{.Case.Priority}}
- Status: {{.Case.Status}}
- Created Date: {{.Case.CreatedDate}}

**Related Objects Data:**
{{.Related}}

**Few-Shot Examples:**
{{.Examples}}

**Reasoning Process:**
1. UNDERSTAND THE PROBLEM: the customer's main issue, its urgency, critical keywords.
2. ANALYZE RELATED DATA: account, contact, comment and email history; previous interactions.
3. IDENTIFY KEY INSIGHTS: root causes, blockers, teams or resources needed.
4. DETERMINE NEXT ACTIONS: immediate steps in priority order, who to involve, expected timeline.
5. PREPARE SUMMARY: concise, actionable, with relevant context only.

**Output Format:**
Respond with a single JSON object:
{
  "reasoning_steps": {
    "problem_understanding": "...",
    "data_analysis": "...",
    "key_insights": "...",
    "action_planning": "..."
  },
  "summary": "A clear, concise summary of the case with relevant context",
  "next_actions": ["Action 1", "Action 2", "Action 3"],
  "priority_level": "Critical|High|Medium|Low",
  "estimated_resolution_time": "...",
  "required_teams": ["team1", "team2"],
  "confidence_score": 0.95
}
`))

var sanitizePrompt = template.Must(template.New("sanitize").Parse(`You are an expert in data sanitization and privacy protection.

Remove or mask sensitive information in the case summary below while keeping it useful and actionable.

**Original Summary:**
{{.Summary}}

**Sensitive Data Patterns to Remove/Mask:**
- Email addresses -> [EMAIL]
- Phone numbers -> [PHONE]
- Account numbers -> [ACCOUNT_NUM]
- Credit card numbers, SSNs, passwords, tokens, API keys
- Other personally identifiable or confidential business data

Work through it step by step: identify sensitive items, decide how to mask each,
apply the masking, then verify nothing was missed.

**Output Format:**
Respond with a single JSON object:
{
  "reasoning_steps": {
    "identified_sensitive_data": ["item1", "item2"],
    "sanitization_strategy": "...",
    "verification_notes": "..."
  },
  "sanitized_summary": "The fully sanitized summary text",
  "sanitization_log": [
    {"original": "...", "sanitized": "[EMAIL]", "type": "email"}
  ],
  "confidence_score": 0.98
}
`))

var qaPrompt = template.Must(template.New("qa").Parse(`You are a helpful customer service assistant. Based on the following case information, answer the user's question accurately and concisely.

CASE INFORMATION:
{{.Context}}

USER QUESTION: {{.Question}}

Instructions:
1. Answer the question based ONLY on the provided case information
2. If the information is not available, say so clearly
3. Be concise but comprehensive
4. Identify which data sources you used to answer

Respond in JSON format:
{
    "answer": "Your answer here",
    "sources": ["List of data sources used, e.g. 'Case Details', 'Account Information', 'Case Comments'"],
    "confidence": 0.0-1.0
}
`))

var chunkPrompt = template.Must(template.New("chunk").Parse(`You are analyzing CRM activity for the account "{{.AccountName}}" (ID: {{.AccountID}}).

Batch {{.BatchNumber}} of {{.TotalBatches}}
Date range: {{.StartDate}} to {{.EndDate}}
Record count: {{.RecordCount}}

Activities:
{{.Activities}}

Summarize this batch: main themes, notable events, open issues and engagement patterns.

Respond with a single JSON object:
{
  "batch_summary": "Two to four sentences summarizing this batch",
  "key_points": ["point 1", "point 2", "point 3"]
}
`))

var consolidatePrompt = template.Must(template.New("consolidate").Parse(`You are preparing an account activity report for "{{.AccountName}}" (ID: {{.AccountID}}).

Date range: {{.StartDate}} to {{.EndDate}}
Total activities: {{.TotalCount}} (Tasks: {{.TaskCount}}, Events: {{.EventCount}}, Cases: {{.CaseCount}})

Summaries of each batch of activities:
{{.BatchSummaries}}

Requested output formats: {{.Formats}}

Merge the batch summaries into one report. Include only the fields relevant to
the requested formats: "key_insights" for pointers, "table_data" for tables,
"chart_data" for charts.

Respond with a single JSON object:
{
  "executive_summary": "A short paragraph on the account's activity and health",
  "key_insights": ["insight 1", "insight 2"],
  "table_data": {"headers": ["Metric", "Value"], "rows": [["...", "..."]]},
  "chart_data": {
    "activity_by_type": {"labels": ["Tasks", "Events", "Cases"], "values": [0, 0, 0]},
    "activity_by_month": {"labels": ["2025-01"], "values": [0]},
    "status_distribution": {"labels": ["Completed"], "values": [0]}
  },
  "sections": [{"title": "...", "format": "pointers|tables", "content": []}]
}
`))

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}
