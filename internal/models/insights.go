package models

import (
	"strings"
	"time"
)

type SummaryFormat string

const (
	FormatTables   SummaryFormat = "tables"
	FormatPointers SummaryFormat = "pointers"
	FormatCharts   SummaryFormat = "charts"
)

// DefaultFormats is used when a request names no recognised format.
var DefaultFormats = []SummaryFormat{FormatPointers, FormatTables}

// ParseFormats keeps the recognised formats in request order, dropping unknown
// values and duplicates.
func ParseFormats(raw []string) []SummaryFormat {
	seen := map[SummaryFormat]bool{}
	var out []SummaryFormat
	for _, r := range raw {
		f := SummaryFormat(strings.ToLower(strings.TrimSpace(r)))
		switch f {
		case FormatTables, FormatPointers, FormatCharts:
		default:
			continue
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return append([]SummaryFormat(nil), DefaultFormats...)
	}
	return out
}

func HasFormat(formats []SummaryFormat, f SummaryFormat) bool {
	for _, v := range formats {
		if v == f {
			return true
		}
	}
	return false
}

type BatchSummaryResult struct {
	BatchNumber int      `json:"batch_number"`
	RecordCount int      `json:"record_count"`
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
}

type InsightSection struct {
	Title   string        `json:"title"`
	Format  SummaryFormat `json:"format"`
	Content any           `json:"content"`
}

type ChartData struct {
	Title     string           `json:"title"`
	ChartType string           `json:"chart_type"`
	Labels    []string         `json:"labels"`
	Datasets  []map[string]any `json:"datasets"`
}

type ProcessingInfo struct {
	BatchSize        int `json:"batch_size"`
	BatchesProcessed int `json:"batches_processed"`
	TaskCount        int `json:"task_count"`
	EventCount       int `json:"event_count"`
	CaseCount        int `json:"case_count"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type InsightsReport struct {
	AccountID        string           `json:"account_id"`
	AccountName      string           `json:"account_name"`
	DateRange        DateRange        `json:"date_range"`
	TotalActivities  int              `json:"total_activities"`
	ProcessingInfo   ProcessingInfo   `json:"processing_info"`
	Sections         []InsightSection `json:"sections"`
	Charts           []ChartData      `json:"charts,omitempty"`
	ExecutiveSummary string           `json:"executive_summary"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

type AccountSearchResponse struct {
	Found bool `json:"found"`
	Account
	Message string `json:"message,omitempty"`
}
