package models

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// ParsePriority maps free-form CRM priority values onto the four known levels.
// Unknown values fall back to Medium.
func ParsePriority(v string) Priority {
	v = strings.TrimSpace(v)
	for _, p := range []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow} {
		if strings.EqualFold(v, string(p)) {
			return p
		}
	}
	switch strings.ToLower(v) {
	case "urgent", "p1":
		return PriorityCritical
	case "p2":
		return PriorityHigh
	case "p4":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CaseRecord struct {
	ID          string         `json:"case_id"`
	CaseNumber  string         `json:"case_number"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Priority    Priority       `json:"priority"`
	Status      string         `json:"status"`
	IsClosed    bool           `json:"is_closed"`
	CreatedDate string         `json:"created_date"`
	ClosedDate  string         `json:"closed_date,omitempty"`
	AccountID   string         `json:"account_id,omitempty"`
	ContactID   string         `json:"contact_id,omitempty"`
	Account     map[string]any `json:"account_data,omitempty"`
	Contact     map[string]any `json:"contact_data,omitempty"`
	Owner       *User          `json:"owner,omitempty"`
}

type RelatedObjectBundle struct {
	ObjectName string           `json:"object_name"`
	Records    []map[string]any `json:"records"`
}

type Account struct {
	ID             string `json:"account_id"`
	Name           string `json:"account_name"`
	Type           string `json:"account_type,omitempty"`
	Industry       string `json:"industry,omitempty"`
	Website        string `json:"website,omitempty"`
	Phone          string `json:"phone,omitempty"`
	BillingCity    string `json:"billing_city,omitempty"`
	BillingState   string `json:"billing_state,omitempty"`
	BillingCountry string `json:"billing_country,omitempty"`
	OwnerName      string `json:"owner_name,omitempty"`
}

const (
	ActivityTask  = "Task"
	ActivityEvent = "Event"
	ActivityCase  = "Case"
)

type ActivityRecord struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Subject      string `json:"subject,omitempty"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status,omitempty"`
	Priority     string `json:"priority,omitempty"`
	ActivityDate string `json:"activity_date,omitempty"`
	CreatedDate  string `json:"created_date,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`
	RelatedTo    string `json:"related_to,omitempty"`
}

type ActivitySet struct {
	Tasks  []ActivityRecord `json:"tasks"`
	Events []ActivityRecord `json:"events"`
	Cases  []ActivityRecord `json:"cases"`
}

// All returns tasks, events and cases concatenated in that order.
func (s ActivitySet) All() []ActivityRecord {
	out := make([]ActivityRecord, 0, len(s.Tasks)+len(s.Events)+len(s.Cases))
	out = append(out, s.Tasks...)
	out = append(out, s.Events...)
	out = append(out, s.Cases...)
	return out
}

type SourceHealth struct {
	Connected bool           `json:"connected"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type SaveSummaryResult struct {
	Success  bool   `json:"success"`
	RecordID string `json:"record_id,omitempty"`
	Message  string `json:"message"`
	CaseID   string `json:"case_id"`
	Action   string `json:"action,omitempty"`
	Error    string `json:"error,omitempty"`
}

type AgentInfo struct {
	AgentID            string   `json:"agent_id"`
	AgentName          string   `json:"agent_name"`
	Email              string   `json:"email"`
	Skills             []string `json:"skills"`
	CurrentWorkload    int      `json:"current_workload"`
	AvailabilityStatus string   `json:"availability_status"`
}
