package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360-copilot/backend/internal/ai"
	"github.com/c360-copilot/backend/internal/models"
)

// recordingGenerator answers chunk and consolidation prompts deterministically
// and keeps the order of calls.
type recordingGenerator struct {
	mu     sync.Mutex
	calls  []string
	chunk  func(prompt string) (string, error)
	merged func(prompt string) (string, error)
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	kind := "chunk"
	if strings.Contains(prompt, `"executive_summary"`) {
		kind = "consolidate"
	}
	g.mu.Lock()
	g.calls = append(g.calls, kind)
	g.mu.Unlock()

	if kind == "consolidate" {
		if g.merged != nil {
			return g.merged(prompt)
		}
		return `{"executive_summary": "merged ` + fmt.Sprint(len(prompt)) + `", "key_insights": ["a", "b"], "table_data": {"rows": [["x", "1"]]}}`, nil
	}
	if g.chunk != nil {
		return g.chunk(prompt)
	}
	n := firstMatch(prompt, "Batch ", " of")
	return "```json\n{\"batch_summary\": \"summary " + n + "\", \"key_points\": [\"kp " + n + "\"]}\n```", nil
}

func (g *recordingGenerator) kinds() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func firstMatch(s, prefix, suffix string) string {
	_, after, ok := strings.Cut(s, prefix)
	if !ok {
		return ""
	}
	v, _, _ := strings.Cut(after, suffix)
	return v
}

var fixedNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newInsights(gen ai.Generator) *InsightsService {
	return &InsightsService{
		AI:        gen,
		Logger:    zerolog.Nop(),
		ChunkSize: 50,
		Sleep:     func(context.Context, time.Duration) error { return nil },
		Now:       func() time.Time { return fixedNow },
	}
}

func activitySet(tasks, events, cases int) models.ActivitySet {
	mk := func(kind string, n int) []models.ActivityRecord {
		out := make([]models.ActivityRecord, n)
		for i := range out {
			month := 1 + i%6
			out[i] = models.ActivityRecord{
				ID:          fmt.Sprintf("%s-%d", kind, i),
				Type:        kind,
				Subject:     fmt.Sprintf("%s %d", kind, i),
				Status:      []string{"Completed", "Open"}[i%2],
				CreatedDate: fmt.Sprintf("2025-%02d-10T09:00:00Z", month),
			}
		}
		return out
	}
	return models.ActivitySet{
		Tasks:  mk(models.ActivityTask, tasks),
		Events: mk(models.ActivityEvent, events),
		Cases:  mk(models.ActivityCase, cases),
	}
}

func insightsRequest(set models.ActivitySet, formats ...models.SummaryFormat) InsightsRequest {
	return InsightsRequest{
		Account:    models.Account{ID: "001XX000003DHH0", Name: "TechVision Solutions"},
		Activities: set,
		StartDate:  "2025-01-01",
		EndDate:    "2025-06-30",
		Formats:    formats,
	}
}

func TestInsights_120ActivitiesMakeThreeChunkCallsAndOneConsolidation(t *testing.T) {
	gen := &recordingGenerator{}
	var delays []time.Duration
	svc := newInsights(gen)
	svc.ChunkDelay = 2 * time.Second
	svc.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	report := svc.Generate(context.Background(), insightsRequest(activitySet(60, 40, 20)))

	assert.Equal(t, []string{"chunk", "chunk", "chunk", "consolidate"}, gen.kinds())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, delays, "delay only between chunks")
	assert.Equal(t, 3, report.ProcessingInfo.BatchesProcessed)
	assert.Equal(t, 50, report.ProcessingInfo.BatchSize)
	assert.Equal(t, 60, report.ProcessingInfo.TaskCount)
	assert.Equal(t, 40, report.ProcessingInfo.EventCount)
	assert.Equal(t, 20, report.ProcessingInfo.CaseCount)
	assert.Equal(t, 120, report.TotalActivities)
	assert.True(t, strings.HasPrefix(report.ExecutiveSummary, "merged "))
	require.Len(t, report.Sections, 2)
	assert.Equal(t, "Key Insights", report.Sections[0].Title)
	assert.Equal(t, "Activity Summary", report.Sections[1].Title)
	assert.Empty(t, report.Charts)
}

func TestInsights_SequentialAndConcurrentAgree(t *testing.T) {
	req := insightsRequest(activitySet(70, 55, 30), models.FormatPointers, models.FormatTables, models.FormatCharts)

	seq := newInsights(&recordingGenerator{}).Generate(context.Background(), req)

	conc := newInsights(&recordingGenerator{})
	conc.Concurrent = true
	par := conc.Generate(context.Background(), req)

	assert.Equal(t, seq, par)
}

func TestInsights_ConsolidationSeesBatchesInOrder(t *testing.T) {
	var consolidation string
	gen := &recordingGenerator{merged: func(prompt string) (string, error) {
		consolidation = prompt
		return `{"executive_summary": "ok"}`, nil
	}}
	svc := newInsights(gen)
	svc.Concurrent = true
	svc.Generate(context.Background(), insightsRequest(activitySet(120, 0, 0)))

	i1 := strings.Index(consolidation, "--- Batch 1 (50 records) ---")
	i2 := strings.Index(consolidation, "--- Batch 2 (50 records) ---")
	i3 := strings.Index(consolidation, "--- Batch 3 (20 records) ---")
	require.True(t, i1 >= 0 && i2 > i1 && i3 > i2, consolidation)
	assert.Contains(t, consolidation, "Key Points:\n  - kp 1")
}

func TestInsights_ZeroActivitiesSkipsGeneration(t *testing.T) {
	gen := &recordingGenerator{}
	report := newInsights(gen).Generate(context.Background(), insightsRequest(models.ActivitySet{}))

	assert.Empty(t, gen.kinds())
	assert.Equal(t, NoActivitiesSummary, report.ExecutiveSummary)
	assert.Equal(t, 0, report.ProcessingInfo.BatchesProcessed)
	assert.Empty(t, report.Sections)
	assert.Equal(t, fixedNow, report.GeneratedAt)
}

func TestInsights_SingleChunkStillConsolidates(t *testing.T) {
	gen := &recordingGenerator{}
	report := newInsights(gen).Generate(context.Background(), insightsRequest(activitySet(3, 0, 0)))

	assert.Equal(t, []string{"chunk", "consolidate"}, gen.kinds())
	assert.Equal(t, 1, report.ProcessingInfo.BatchesProcessed)
}

func TestInsights_ChunkFallbacks(t *testing.T) {
	var consolidation string
	gen := &recordingGenerator{
		chunk: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Batch 1 of") {
				return "```\n" + strings.Repeat("x", 600) + "\n```", nil
			}
			return "", errors.New("quota exceeded")
		},
		merged: func(prompt string) (string, error) {
			consolidation = prompt
			return `{"executive_summary": "ok"}`, nil
		},
	}
	newInsights(gen).Generate(context.Background(), insightsRequest(activitySet(60, 0, 0)))

	assert.Contains(t, consolidation, "--- Batch 1 (50 records) ---\n"+strings.Repeat("x", 500)+"\n")
	assert.NotContains(t, consolidation, strings.Repeat("x", 501))
	assert.Contains(t, consolidation, "Error processing batch: quota exceeded")
}

func TestInsights_ConsolidationFallbacks(t *testing.T) {
	gen := &recordingGenerator{merged: func(string) (string, error) { return "The account is healthy.", nil }}
	report := newInsights(gen).Generate(context.Background(), insightsRequest(activitySet(5, 0, 0)))
	assert.Equal(t, "The account is healthy.", report.ExecutiveSummary)
	assert.Empty(t, report.Sections)

	gen = &recordingGenerator{merged: func(string) (string, error) { return "", errors.New("timeout") }}
	report = newInsights(gen).Generate(context.Background(), insightsRequest(activitySet(5, 0, 0)))
	assert.Equal(t, "Error generating insights: timeout", report.ExecutiveSummary)

	gen = &recordingGenerator{merged: func(string) (string, error) { return `{"key_insights": []}`, nil }}
	report = newInsights(gen).Generate(context.Background(), insightsRequest(activitySet(5, 0, 0)))
	assert.Equal(t, "No summary available.", report.ExecutiveSummary)
}

func TestInsights_SectionsFollowRequestedFormats(t *testing.T) {
	gen := &recordingGenerator{merged: func(string) (string, error) {
		return `Here you go: {"executive_summary": "s", "key_insights": ["one"], "table_data": {"rows": []},
			"sections": [{"title": "Risks", "format": "pointers", "content": ["churn"]},
			             {"title": "Grid", "format": "tables", "content": {"rows": [[1]]}},
			             {"title": "Empty", "format": "pointers", "content": []}]}`, nil
	}}
	report := newInsights(gen).Generate(context.Background(), insightsRequest(activitySet(5, 0, 0), models.FormatPointers))

	titles := []string{}
	for _, s := range report.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Key Insights", "Risks"}, titles)
}

func TestInsights_ChartsFallBackToLocalCounts(t *testing.T) {
	gen := &recordingGenerator{merged: func(string) (string, error) {
		return `{"executive_summary": "s", "chart_data": {"status_distribution": {"labels": ["Open"], "values": [7]}}}`, nil
	}}
	report := newInsights(gen).Generate(context.Background(), insightsRequest(activitySet(6, 4, 2), models.FormatCharts))

	require.Len(t, report.Charts, 3)
	byType := report.Charts[0]
	assert.Equal(t, "Activities by Type", byType.Title)
	assert.Equal(t, "bar", byType.ChartType)
	assert.Equal(t, []string{"Tasks", "Events", "Cases"}, byType.Labels)
	assert.Equal(t, []float64{6, 4, 2}, byType.Datasets[0]["data"])

	trend := report.Charts[1]
	assert.Equal(t, "line", trend.ChartType)
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06"}, trend.Labels)

	status := report.Charts[2]
	assert.Equal(t, "pie", status.ChartType)
	assert.Equal(t, []string{"Open"}, status.Labels)
	assert.Equal(t, []float64{7}, status.Datasets[0]["data"])
}

func TestInsights_ChartWithoutDataIsOmitted(t *testing.T) {
	gen := &recordingGenerator{merged: func(string) (string, error) {
		return `{"executive_summary": "s", "chart_data": {"activity_by_type": {"labels": ["Tasks"], "values": [0]}}}`, nil
	}}
	set := models.ActivitySet{Tasks: []models.ActivityRecord{{ID: "t1", Type: models.ActivityTask}}}
	report := newInsights(gen).Generate(context.Background(), insightsRequest(set, models.FormatCharts))
	assert.Empty(t, report.Charts)
}

func TestFormatActivities(t *testing.T) {
	out := formatActivities([]models.ActivityRecord{
		{Type: "Task", Subject: "Call", Status: "Completed", ActivityDate: "2025-03-01", OwnerName: "Sarah", RelatedTo: "Renewal"},
		{Type: "Event"},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1. [Task] Subject: Call | Status: Completed | Priority: N/A | Date: 2025-03-01 | Owner: Sarah | Related: Renewal", lines[0])
	assert.Equal(t, "2. [Event] Subject: N/A | Status: N/A | Priority: N/A | Date: N/A | Owner: N/A", lines[1])
}

func TestInsights_WithMockGenerator(t *testing.T) {
	svc := newInsights(ai.MockGenerator{ModelVersion: "test"})
	report := svc.Generate(context.Background(), insightsRequest(activitySet(60, 40, 20), models.FormatPointers, models.FormatTables, models.FormatCharts))

	assert.Equal(t, 3, report.ProcessingInfo.BatchesProcessed)
	assert.NotEmpty(t, report.ExecutiveSummary)
	require.NotEmpty(t, report.Sections)
	assert.Equal(t, "Key Insights", report.Sections[0].Title)
	assert.NotEmpty(t, report.Charts)
}
