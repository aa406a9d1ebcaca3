package crm

import (
	"context"
	"errors"
	"time"

	"github.com/c360-copilot/backend/internal/models"
)

// ErrNotFound is returned when the requested record does not exist. Any other
// error means the record source itself failed.
var ErrNotFound = errors.New("record not found")

// Source is the CRM record store the pipelines read from.
type Source interface {
	CheckConnection(ctx context.Context) models.SourceHealth
	GetCaseByID(ctx context.Context, id string) (models.CaseRecord, error)
	GetCaseByNumber(ctx context.Context, number string) (models.CaseRecord, error)
	GetRelatedObjects(ctx context.Context, caseID string) ([]models.RelatedObjectBundle, error)
	ListActiveUsers(ctx context.Context, limit int, excludeID string) ([]models.User, error)
	SaveCaseSummary(ctx context.Context, caseID, summary string, extra map[string]any) (models.SaveSummaryResult, error)
	SearchAccount(ctx context.Context, identifier string) (models.Account, error)
	GetAccountActivities(ctx context.Context, accountID string, start, end time.Time) (models.ActivitySet, error)
}

// DayEnd returns the last instant of the day containing t, so date ranges are
// inclusive of the end date.
func DayEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// InRange reports whether ts (RFC3339 or YYYY-MM-DD) falls on a day in [start, end].
func InRange(ts string, start, end time.Time) bool {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return false
	}
	return !t.Before(start) && !t.After(DayEnd(end))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
