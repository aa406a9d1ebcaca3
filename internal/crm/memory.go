package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360-copilot/backend/internal/models"
	"github.com/c360-copilot/backend/internal/utils"
)

// MemorySource serves a fixed dataset from memory. It backs CRM_BACKEND=mock
// and doubles as a fixture in tests.
type MemorySource struct {
	Cases      []models.CaseRecord
	Related    map[string][]models.RelatedObjectBundle
	Users      []models.User
	Accounts   []models.Account
	Activities map[string]models.ActivitySet

	mu        sync.Mutex
	summaries map[string]string
}

func (m *MemorySource) CheckConnection(ctx context.Context) models.SourceHealth {
	return models.SourceHealth{
		Connected: true,
		Status:    "connected",
		Message:   "Using in-memory demo data",
		Details: map[string]any{
			"mode":     "mock",
			"cases":    len(m.Cases),
			"accounts": len(m.Accounts),
		},
	}
}

func (m *MemorySource) GetCaseByID(ctx context.Context, id string) (models.CaseRecord, error) {
	for _, c := range m.Cases {
		if c.ID == id {
			return c, nil
		}
	}
	return models.CaseRecord{}, ErrNotFound
}

func (m *MemorySource) GetCaseByNumber(ctx context.Context, number string) (models.CaseRecord, error) {
	number = strings.TrimSpace(number)
	short := strings.TrimLeft(number, "0")
	for _, c := range m.Cases {
		if c.CaseNumber == number || (short != "" && strings.TrimLeft(c.CaseNumber, "0") == short) {
			return c, nil
		}
	}
	return models.CaseRecord{}, ErrNotFound
}

func (m *MemorySource) GetRelatedObjects(ctx context.Context, caseID string) ([]models.RelatedObjectBundle, error) {
	if _, err := m.GetCaseByID(ctx, caseID); err != nil {
		return nil, err
	}
	var out []models.RelatedObjectBundle
	for _, b := range m.Related[caseID] {
		if len(b.Records) > 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemorySource) ListActiveUsers(ctx context.Context, limit int, excludeID string) ([]models.User, error) {
	var out []models.User
	for _, u := range m.Users {
		if limit > 0 && len(out) >= limit {
			break
		}
		if u.ID == excludeID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *MemorySource) SaveCaseSummary(ctx context.Context, caseID, summary string, extra map[string]any) (models.SaveSummaryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summaries == nil {
		m.summaries = map[string]string{}
	}
	action, msg := "create", "Summary saved (mock mode)"
	if _, ok := m.summaries[caseID]; ok {
		action, msg = "update", "Summary updated (mock mode)"
	}
	m.summaries[caseID] = summary

	suffix := caseID
	if len(suffix) > 5 {
		suffix = suffix[len(suffix)-5:]
	}
	return models.SaveSummaryResult{
		Success:  true,
		RecordID: "a00MOCK" + suffix,
		Message:  msg,
		CaseID:   caseID,
		Action:   action,
	}, nil
}

// SavedSummary returns the last summary stored for caseID.
func (m *MemorySource) SavedSummary(caseID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[caseID]
	return s, ok
}

func (m *MemorySource) SearchAccount(ctx context.Context, identifier string) (models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if IsAccountID(identifier) {
		for _, a := range m.Accounts {
			if a.ID == identifier {
				return a, nil
			}
		}
		return models.Account{}, ErrNotFound
	}
	needle := strings.ToLower(identifier)
	var matches []models.Account
	for _, a := range m.Accounts {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return models.Account{}, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return matches[0], nil
}

func (m *MemorySource) GetAccountActivities(ctx context.Context, accountID string, start, end time.Time) (models.ActivitySet, error) {
	found := false
	for _, a := range m.Accounts {
		if a.ID == accountID {
			found = true
			break
		}
	}
	if !found {
		return models.ActivitySet{}, ErrNotFound
	}
	all := m.Activities[accountID]
	return models.ActivitySet{
		Tasks:  filterByCreated(all.Tasks, start, end),
		Events: filterByCreated(all.Events, start, end),
		Cases:  filterByCreated(all.Cases, start, end),
	}, nil
}

func filterByCreated(in []models.ActivityRecord, start, end time.Time) []models.ActivityRecord {
	out := []models.ActivityRecord{}
	for _, r := range in {
		if InRange(r.CreatedDate, start, end) {
			out = append(out, r)
		}
	}
	return out
}

// NewDemoSource builds the dataset served in mock mode.
func NewDemoSource() *MemorySource {
	owner := models.User{ID: "005XX0000001AAA", Name: "Sarah Chen", Email: "sarah.chen@example.com"}
	users := []models.User{
		owner,
		{ID: "005XX0000001AAB", Name: "Marcus Johnson", Email: "marcus.johnson@example.com"},
		{ID: "005XX0000001AAC", Name: "Priya Patel", Email: "priya.patel@example.com"},
		{ID: "005XX0000001AAD", Name: "Daniel Kim", Email: "daniel.kim@example.com"},
		{ID: "005XX0000001AAE", Name: "Elena Rossi", Email: "elena.rossi@example.com"},
	}

	techVision := models.Account{
		ID: "001XX000003DHH0", Name: "TechVision Solutions", Type: "Customer - Direct",
		Industry: "Technology", Website: "https://techvision.example.com", Phone: "+1-555-0123",
		BillingCity: "San Francisco", BillingState: "CA", BillingCountry: "USA", OwnerName: owner.Name,
	}
	northwind := models.Account{
		ID: "001XX000003DHH1", Name: "Northwind Traders", Type: "Customer - Channel",
		Industry: "Retail", Phone: "+1-555-0456", BillingCity: "Seattle", BillingState: "WA",
		BillingCountry: "USA", OwnerName: users[1].Name,
	}
	globex := models.Account{
		ID: "001XX000003DHH2", Name: "Globex Corporation", Type: "Prospect",
		Industry: "Manufacturing", BillingCity: "Springfield", BillingCountry: "USA", OwnerName: users[2].Name,
	}

	techContact := map[string]any{
		"Id": "003XX000001234", "Name": "Jennifer Martinez", "Email": "jennifer.martinez@techvision.com",
		"Phone": "+1-555-0124", "Title": "Product Manager", "Department": "Product",
	}
	northContact := map[string]any{
		"Id": "003XX000005678", "Name": "Tom Becker", "Email": "tom.becker@northwind.example.com",
		"Phone": "+1-555-0457", "Title": "Finance Lead",
	}

	cases := []models.CaseRecord{
		{
			ID: "500XX00000A1001", CaseNumber: "00001001",
			Subject:     "Customer unable to access premium features",
			Description: "Customer reports that after upgrading to premium plan, they still cannot access advanced analytics dashboard. Error message: 'Access Denied - Contact Support'",
			Priority:    models.PriorityHigh, Status: "New", CreatedDate: "2025-11-25T10:30:00Z",
			AccountID: techVision.ID, ContactID: "003XX000001234",
			Account: accountSnapshot(techVision), Contact: techContact, Owner: &owner,
		},
		{
			ID: "500XX00000A1002", CaseNumber: "00001002",
			Subject:     "Invoice shows duplicate charges",
			Description: "Finance team noticed the October invoice lists the same subscription line twice. Customer requests a corrected invoice and refund of the duplicate amount.",
			Priority:    models.PriorityMedium, Status: "Working", CreatedDate: "2025-11-20T14:05:00Z",
			AccountID: northwind.ID, ContactID: "003XX000005678",
			Account: accountSnapshot(northwind), Contact: northContact, Owner: &users[1],
		},
		{
			ID: "500XX00000A1003", CaseNumber: "00001003",
			Subject:     "Password reset email not received",
			Description: "User did not receive the password reset email. Resolved after allow-listing the sender domain.",
			Priority:    models.PriorityLow, Status: "Closed", IsClosed: true,
			CreatedDate: "2025-10-02T08:00:00Z", ClosedDate: "2025-10-03T09:30:00Z",
			AccountID: techVision.ID, Account: accountSnapshot(techVision), Owner: &users[2],
		},
	}

	related := map[string][]models.RelatedObjectBundle{
		"500XX00000A1001": {
			{ObjectName: "Account", Records: []map[string]any{accountSnapshot(techVision)}},
			{ObjectName: "Contact", Records: []map[string]any{techContact}},
			{ObjectName: "CaseComment", Records: []map[string]any{
				{"Id": "00aXX000001111", "CommentBody": "Customer upgraded to Premium plan on 2025-11-24", "CreatedDate": "2025-11-25T09:00:00Z", "IsPublished": true},
				{"Id": "00aXX000001112", "CommentBody": "Verified payment processed successfully. Account status shows Premium.", "CreatedDate": "2025-11-25T09:15:00Z", "IsPublished": false},
			}},
			{ObjectName: "EmailMessage", Records: []map[string]any{
				{"Id": "02sXX000001ABC", "Subject": "Re: Premium Plan Upgrade", "TextBody": "Thank you for upgrading! You should now have access to all premium features.", "FromAddress": "support@company.com", "ToAddress": "jennifer.martinez@techvision.com", "MessageDate": "2025-11-24T16:30:00Z", "Status": "Sent"},
			}},
		},
		"500XX00000A1002": {
			{ObjectName: "Account", Records: []map[string]any{accountSnapshot(northwind)}},
			{ObjectName: "Contact", Records: []map[string]any{northContact}},
			{ObjectName: "CaseComment", Records: []map[string]any{
				{"Id": "00aXX000002221", "CommentBody": "Billing confirmed the duplicate line item. Credit memo pending approval.", "CreatedDate": "2025-11-21T11:00:00Z", "IsPublished": false},
			}},
		},
		"500XX00000A1003": {
			{ObjectName: "Account", Records: []map[string]any{accountSnapshot(techVision)}},
		},
	}

	return &MemorySource{
		Cases:    cases,
		Related:  related,
		Users:    users,
		Accounts: []models.Account{techVision, northwind, globex},
		Activities: map[string]models.ActivitySet{
			techVision.ID: demoActivities(techVision, users, 60, 40, 20),
			northwind.ID:  demoActivities(northwind, users, 15, 10, 5),
		},
	}
}

func accountSnapshot(a models.Account) map[string]any {
	return map[string]any{
		"Id": a.ID, "Name": a.Name, "Industry": a.Industry, "Type": a.Type,
		"Phone": a.Phone, "BillingCity": a.BillingCity, "BillingCountry": a.BillingCountry,
	}
}

var (
	demoTaskSubjects  = []string{"Follow-up call", "Send proposal", "Renewal check-in", "Onboarding session prep", "Quarterly review notes"}
	demoEventSubjects = []string{"Product demo", "Executive sync", "Training webinar", "Site visit", "Roadmap briefing"}
	demoCaseSubjects  = []string{"Login issue", "Billing question", "Feature request", "Integration error", "Performance degradation"}
	demoTaskStatus    = []string{"Completed", "Completed", "In Progress", "Not Started"}
	demoCaseStatus    = []string{"Closed", "Working", "New", "Escalated"}
	demoPriorities    = []string{"High", "Normal", "Normal", "Low"}
)

// demoActivities spreads records over 2025 using a stable hash of their id.
func demoActivities(a models.Account, users []models.User, tasks, events, cases int) models.ActivitySet {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	gen := func(kind, prefix string, n int, subjects, statuses []string) []models.ActivityRecord {
		out := make([]models.ActivityRecord, 0, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s%s%04d", prefix, a.ID[len(a.ID)-3:], i)
			h := utils.HashStringToUint64(id)
			at := base.AddDate(0, 0, int(h%365)).Add(time.Duration(h%8) * time.Hour)
			out = append(out, models.ActivityRecord{
				ID:           id,
				Type:         kind,
				Subject:      subjects[int((h/3)%uint64(len(subjects)))],
				Status:       statuses[int((h/5)%uint64(len(statuses)))],
				Priority:     demoPriorities[int((h/7)%uint64(len(demoPriorities)))],
				ActivityDate: at.Format("2006-01-02"),
				CreatedDate:  at.Format(time.RFC3339),
				OwnerName:    users[int((h/11)%uint64(len(users)))].Name,
				RelatedTo:    a.Name,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedDate < out[j].CreatedDate })
		return out
	}
	return models.ActivitySet{
		Tasks:  gen(models.ActivityTask, "00T", tasks, demoTaskSubjects, demoTaskStatus),
		Events: gen(models.ActivityEvent, "00U", events, demoEventSubjects, []string{"Completed", "Scheduled"}),
		Cases:  gen(models.ActivityCase, "500", cases, demoCaseSubjects, demoCaseStatus),
	}
}
