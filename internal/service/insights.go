package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/c360-copilot/backend/internal/ai"
	"github.com/c360-copilot/backend/internal/models"
)

const (
	DefaultChunkSize = 50
	rawFallbackLen   = 500

	NoActivitiesSummary = "No activities found for this account in the selected date range."
)

// InsightsService turns an account's activity history into an InsightsReport:
// one generation call per chunk of activities, then one consolidation call.
type InsightsService struct {
	AI         ai.Generator
	Logger     zerolog.Logger
	ChunkSize  int
	Concurrent bool
	ChunkDelay time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	Now        func() time.Time
}

type InsightsRequest struct {
	Account    models.Account
	Activities models.ActivitySet
	StartDate  string
	EndDate    string
	Formats    []models.SummaryFormat
}

type consolidation struct {
	ExecutiveSummary string
	KeyInsights      []any
	TableData        any
	ChartData        map[string]any
	Sections         []any
}

func (s *InsightsService) chunkSize() int {
	if s.ChunkSize > 0 {
		return s.ChunkSize
	}
	return DefaultChunkSize
}

func (s *InsightsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *InsightsService) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generate never fails: generation and parse errors are folded into the
// report as fallback text.
func (s *InsightsService) Generate(ctx context.Context, req InsightsRequest) models.InsightsReport {
	formats := req.Formats
	if len(formats) == 0 {
		formats = models.DefaultFormats
	}
	all := req.Activities.All()
	info := models.ProcessingInfo{
		BatchSize:  s.chunkSize(),
		TaskCount:  len(req.Activities.Tasks),
		EventCount: len(req.Activities.Events),
		CaseCount:  len(req.Activities.Cases),
	}
	report := models.InsightsReport{
		AccountID:       req.Account.ID,
		AccountName:     req.Account.Name,
		DateRange:       models.DateRange{Start: req.StartDate, End: req.EndDate},
		TotalActivities: len(all),
		Sections:        []models.InsightSection{},
	}

	if len(all) == 0 {
		report.ProcessingInfo = info
		report.ExecutiveSummary = NoActivitiesSummary
		report.GeneratedAt = s.now()
		return report
	}

	chunks := Chunk(all, s.chunkSize())
	log := s.Logger.With().Str("account_id", req.Account.ID).Int("chunks", len(chunks)).Logger()
	log.Info().Int("activities", len(all)).Bool("concurrent", s.Concurrent).Msg("summarizing account activity")

	summaries := s.summarizeChunks(ctx, req, chunks)
	info.BatchesProcessed = len(summaries)

	final := s.consolidate(ctx, req, info, summaries, formats)
	report.ProcessingInfo = info
	report.ExecutiveSummary = final.ExecutiveSummary
	report.Sections = buildSections(final, formats)
	if models.HasFormat(formats, models.FormatCharts) {
		report.Charts = buildCharts(final.ChartData, req.Activities)
	}
	report.GeneratedAt = s.now()
	return report
}

func (s *InsightsService) summarizeChunks(ctx context.Context, req InsightsRequest, chunks [][]models.ActivityRecord) []models.BatchSummaryResult {
	results := make([]models.BatchSummaryResult, len(chunks))
	if s.Concurrent {
		var g errgroup.Group
		for i, chunk := range chunks {
			i, chunk := i, chunk
			g.Go(func() error {
				results[i] = s.summarizeChunk(ctx, req, chunk, i+1, len(chunks))
				return nil
			})
		}
		_ = g.Wait()
		return results
	}

	for i, chunk := range chunks {
		results[i] = s.summarizeChunk(ctx, req, chunk, i+1, len(chunks))
		if i < len(chunks)-1 {
			// a cancelled wait is not fatal; the remaining calls fail fast on ctx
			_ = s.sleep(ctx, s.ChunkDelay)
		}
	}
	return results
}

func (s *InsightsService) summarizeChunk(ctx context.Context, req InsightsRequest, chunk []models.ActivityRecord, n, total int) models.BatchSummaryResult {
	res := models.BatchSummaryResult{BatchNumber: n, RecordCount: len(chunk), KeyPoints: []string{}}

	prompt, err := render(chunkPrompt, map[string]any{
		"AccountName":  req.Account.Name,
		"AccountID":    req.Account.ID,
		"BatchNumber":  n,
		"TotalBatches": total,
		"StartDate":    req.StartDate,
		"EndDate":      req.EndDate,
		"RecordCount":  len(chunk),
		"Activities":   formatActivities(chunk),
	})
	if err == nil {
		var raw string
		raw, err = s.AI.Generate(ctx, prompt)
		if err == nil {
			var parsed struct {
				Summary   string   `json:"batch_summary"`
				KeyPoints []string `json:"key_points"`
			}
			if decodeLenient(raw, &parsed) == nil {
				res.Summary = parsed.Summary
				if parsed.KeyPoints != nil {
					res.KeyPoints = parsed.KeyPoints
				}
				return res
			}
			s.Logger.Warn().Int("batch", n).Msg("chunk summary was not valid JSON, using raw text")
			res.Summary = truncateRunes(ai.StripCodeFence(raw), rawFallbackLen)
			return res
		}
	}
	s.Logger.Warn().Err(err).Int("batch", n).Msg("chunk summary failed")
	res.Summary = "Error processing batch: " + err.Error()
	return res
}

func (s *InsightsService) consolidate(ctx context.Context, req InsightsRequest, info models.ProcessingInfo, summaries []models.BatchSummaryResult, formats []models.SummaryFormat) consolidation {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	prompt, err := render(consolidatePrompt, map[string]any{
		"AccountName":    req.Account.Name,
		"AccountID":      req.Account.ID,
		"StartDate":      req.StartDate,
		"EndDate":        req.EndDate,
		"TotalCount":     info.TaskCount + info.EventCount + info.CaseCount,
		"TaskCount":      info.TaskCount,
		"EventCount":     info.EventCount,
		"CaseCount":      info.CaseCount,
		"BatchSummaries": formatBatchSummaries(summaries),
		"Formats":        strings.Join(names, ", "),
	})
	if err == nil {
		var raw string
		raw, err = s.AI.Generate(ctx, prompt)
		if err == nil {
			var parsed map[string]any
			if decodeLenient(raw, &parsed) == nil {
				return consolidationFrom(parsed)
			}
			s.Logger.Warn().Str("account_id", req.Account.ID).Msg("consolidation was not valid JSON, using raw text")
			return consolidation{ExecutiveSummary: truncateRunes(ai.StripCodeFence(raw), rawFallbackLen)}
		}
	}
	s.Logger.Warn().Err(err).Str("account_id", req.Account.ID).Msg("consolidation failed")
	return consolidation{ExecutiveSummary: "Error generating insights: " + err.Error()}
}

func consolidationFrom(m map[string]any) consolidation {
	c := consolidation{ExecutiveSummary: "No summary available."}
	if v, ok := m["executive_summary"].(string); ok && strings.TrimSpace(v) != "" {
		c.ExecutiveSummary = v
	}
	c.KeyInsights, _ = m["key_insights"].([]any)
	c.TableData = m["table_data"]
	c.ChartData, _ = m["chart_data"].(map[string]any)
	c.Sections, _ = m["sections"].([]any)
	return c
}

// decodeLenient accepts a fenced block, bare JSON, or JSON embedded in prose.
func decodeLenient(raw string, v any) error {
	if err := ai.DecodeFenced(raw, v); err == nil {
		return nil
	}
	return ai.DecodeObject(raw, v)
}

func formatActivities(chunk []models.ActivityRecord) string {
	var b strings.Builder
	for i, a := range chunk {
		fmt.Fprintf(&b, "%d. [%s] Subject: %s | Status: %s | Priority: %s | Date: %s | Owner: %s",
			i+1, orNA(a.Type), orNA(a.Subject), orNA(a.Status), orNA(a.Priority), orNA(activityDate(a)), orNA(a.OwnerName))
		if a.RelatedTo != "" {
			fmt.Fprintf(&b, " | Related: %s", a.RelatedTo)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatBatchSummaries(summaries []models.BatchSummaryResult) string {
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "\n--- Batch %d (%d records) ---\n%s\n", s.BatchNumber, s.RecordCount, s.Summary)
		if len(s.KeyPoints) > 0 {
			b.WriteString("Key Points:\n")
			for _, p := range s.KeyPoints {
				fmt.Fprintf(&b, "  - %s\n", p)
			}
		}
	}
	return b.String()
}

func buildSections(c consolidation, formats []models.SummaryFormat) []models.InsightSection {
	sections := []models.InsightSection{}
	if models.HasFormat(formats, models.FormatPointers) && len(c.KeyInsights) > 0 {
		sections = append(sections, models.InsightSection{Title: "Key Insights", Format: models.FormatPointers, Content: c.KeyInsights})
	}
	if models.HasFormat(formats, models.FormatTables) && !isEmpty(c.TableData) {
		sections = append(sections, models.InsightSection{Title: "Activity Summary", Format: models.FormatTables, Content: c.TableData})
	}
	for _, raw := range c.Sections {
		m, ok := raw.(map[string]any)
		if !ok || isEmpty(m["content"]) {
			continue
		}
		format := models.FormatPointers
		if f, ok := m["format"].(string); ok && f != "" {
			format = models.SummaryFormat(strings.ToLower(strings.TrimSpace(f)))
		}
		if format == models.FormatCharts || !models.HasFormat(formats, format) {
			continue
		}
		title, _ := m["title"].(string)
		if strings.TrimSpace(title) == "" {
			title = "Section"
		}
		sections = append(sections, models.InsightSection{Title: title, Format: format, Content: m["content"]})
	}
	return sections
}

var (
	typeColors   = []string{"#3B82F6", "#10B981", "#F59E0B"}
	statusColors = []string{"#10B981", "#3B82F6", "#F59E0B", "#EF4444", "#8B5CF6", "#6B7280"}
)

func buildCharts(data map[string]any, set models.ActivitySet) []models.ChartData {
	charts := []models.ChartData{}

	labels, values := seriesFrom(data, "activity_by_type")
	if labels == nil {
		labels = []string{"Tasks", "Events", "Cases"}
		values = []float64{float64(len(set.Tasks)), float64(len(set.Events)), float64(len(set.Cases))}
	}
	if hasData(values) {
		charts = append(charts, models.ChartData{
			Title: "Activities by Type", ChartType: "bar", Labels: labels,
			Datasets: []map[string]any{{"label": "Count", "data": values, "backgroundColor": typeColors}},
		})
	}

	labels, values = seriesFrom(data, "activity_by_month")
	if labels == nil {
		labels, values = countBy(set.All(), func(a models.ActivityRecord) string {
			if len(activityDate(a)) >= 7 {
				return activityDate(a)[:7]
			}
			return ""
		})
	}
	if hasData(values) {
		charts = append(charts, models.ChartData{
			Title: "Activity Trend", ChartType: "line", Labels: labels,
			Datasets: []map[string]any{{"label": "Activities", "data": values, "borderColor": "#3B82F6", "fill": false}},
		})
	}

	labels, values = seriesFrom(data, "status_distribution")
	if labels == nil {
		labels, values = countBy(set.All(), func(a models.ActivityRecord) string { return a.Status })
	}
	if hasData(values) {
		charts = append(charts, models.ChartData{
			Title: "Status Distribution", ChartType: "pie", Labels: labels,
			Datasets: []map[string]any{{"data": values, "backgroundColor": statusColors}},
		})
	}
	return charts
}

// seriesFrom reads {"labels": [...], "values": [...]} from the model's chart
// data. A missing or inconsistent series returns nil labels.
func seriesFrom(data map[string]any, key string) ([]string, []float64) {
	m, ok := data[key].(map[string]any)
	if !ok {
		return nil, nil
	}
	rawLabels, _ := m["labels"].([]any)
	rawValues, _ := m["values"].([]any)
	if len(rawLabels) == 0 || len(rawLabels) != len(rawValues) {
		return nil, nil
	}
	labels := make([]string, len(rawLabels))
	values := make([]float64, len(rawValues))
	for i := range rawLabels {
		labels[i] = fmt.Sprint(rawLabels[i])
		v, ok := rawValues[i].(float64)
		if !ok {
			return nil, nil
		}
		values[i] = v
	}
	return labels, values
}

func countBy(records []models.ActivityRecord, key func(models.ActivityRecord) string) ([]string, []float64) {
	counts := map[string]float64{}
	for _, r := range records {
		if k := key(r); k != "" {
			counts[k]++
		}
	}
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	values := make([]float64, len(labels))
	for i, k := range labels {
		values[i] = counts[k]
	}
	return labels, values
}

func hasData(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func activityDate(a models.ActivityRecord) string {
	if a.ActivityDate != "" {
		return a.ActivityDate
	}
	return a.CreatedDate
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
