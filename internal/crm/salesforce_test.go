package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSalesforce struct {
	srv       *httptest.Server
	logins    atomic.Int32
	expireTok string
	queries   []string
	handle    func(soql string) []map[string]any
	writes    []string
}

func newFakeSalesforce(t *testing.T, handle func(soql string) []map[string]any) *fakeSalesforce {
	t.Helper()
	f := &fakeSalesforce{handle: handle}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSalesforce) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/services/oauth2/token" {
		n := f.logins.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok" + string(rune('0'+n)),
			"instance_url": f.srv.URL,
			"token_type":   "Bearer",
		})
		return
	}
	if f.expireTok != "" && r.Header.Get("Authorization") == "Bearer "+f.expireTok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`[{"errorCode":"INVALID_SESSION_ID"}]`))
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/query"):
		q := r.URL.Query().Get("q")
		f.queries = append(f.queries, q)
		records := f.handle(q)
		_ = json.NewEncoder(w).Encode(map[string]any{"totalSize": len(records), "done": true, "records": records})
	case strings.Contains(r.URL.Path, "/sobjects/"):
		body, _ := io.ReadAll(r.Body)
		f.writes = append(f.writes, r.Method+" "+r.URL.Path+" "+string(body))
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"a01NEW000000001","success":true}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestSource(t *testing.T, f *fakeSalesforce) *SalesforceSource {
	t.Helper()
	src, err := NewSalesforceSource(SalesforceConfig{
		LoginURL:      f.srv.URL,
		Username:      "agent@example.com",
		Password:      "pw",
		SecurityToken: "tok",
		ClientID:      "cid",
		ClientSecret:  "secret",
		SummaryObject: "Case_Summary__c",
		SummaryField:  "Summary__c",
		CaseIDField:   "Case__c",
	}, zerolog.Nop())
	require.NoError(t, err)
	return src.WithHTTPClient(f.srv.Client())
}

func TestSalesforce_GetCaseByNumber(t *testing.T) {
	f := newFakeSalesforce(t, func(soql string) []map[string]any {
		if strings.Contains(soql, "CaseNumber = '00001001'") {
			return []map[string]any{{
				"attributes": map[string]any{"type": "Case"},
				"Id":         "5003000000D8cuI", "CaseNumber": "00001001", "Subject": "Broken login",
				"Priority": "High", "Status": "New", "IsClosed": false, "AccountId": "001300000000001",
				"Account": map[string]any{"Name": "Acme"},
				"Owner":   map[string]any{"Id": "005300000000001", "Name": "Ana", "Email": "ana@example.com"},
			}}
		}
		return nil
	})
	src := newTestSource(t, f)

	c, err := src.GetCaseByNumber(context.Background(), "00001001")
	require.NoError(t, err)
	assert.Equal(t, "5003000000D8cuI", c.ID)
	assert.Equal(t, "High", string(c.Priority))
	assert.Equal(t, "Acme", c.Account["Name"])
	require.NotNil(t, c.Owner)
	assert.Equal(t, "Ana", c.Owner.Name)

	_, err = src.GetCaseByNumber(context.Background(), "x' OR Id != '")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, f.queries[len(f.queries)-1], `CaseNumber = 'x\' OR Id != \''`)
}

func TestSalesforce_ReloginOn401(t *testing.T) {
	f := newFakeSalesforce(t, func(string) []map[string]any {
		return []map[string]any{{"Id": "005300000000001"}}
	})
	f.expireTok = "tok1"
	src := newTestSource(t, f)

	health := src.CheckConnection(context.Background())
	assert.True(t, health.Connected, health.Message)
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestSalesforce_SaveCaseSummaryUpsert(t *testing.T) {
	existing := false
	f := newFakeSalesforce(t, func(soql string) []map[string]any {
		if strings.HasPrefix(soql, "SELECT Id FROM Case_Summary__c") && existing {
			return []map[string]any{{"Id": "a01OLD000000001"}}
		}
		return nil
	})
	src := newTestSource(t, f)
	ctx := context.Background()

	res, err := src.SaveCaseSummary(ctx, "5003000000D8cuI", "summary text", map[string]any{"Confidence__c": 0.9, "bad field": 1})
	require.NoError(t, err)
	assert.Equal(t, "create", res.Action)
	assert.Equal(t, "a01NEW000000001", res.RecordID)
	require.Len(t, f.writes, 1)
	assert.Contains(t, f.writes[0], "POST /services/data/v59.0/sobjects/Case_Summary__c")
	assert.Contains(t, f.writes[0], `"Confidence__c":0.9`)
	assert.NotContains(t, f.writes[0], "bad field")

	existing = true
	res, err = src.SaveCaseSummary(ctx, "5003000000D8cuI", "updated", nil)
	require.NoError(t, err)
	assert.Equal(t, "update", res.Action)
	assert.Equal(t, "a01OLD000000001", res.RecordID)
	assert.Contains(t, f.writes[1], "PATCH /services/data/v59.0/sobjects/Case_Summary__c/a01OLD000000001")
}

func TestSalesforce_AccountActivities(t *testing.T) {
	f := newFakeSalesforce(t, func(soql string) []map[string]any {
		switch {
		case strings.HasPrefix(soql, "SELECT Id FROM Account"):
			return []map[string]any{{"Id": "001300000000001"}}
		case strings.Contains(soql, "FROM Task"):
			return []map[string]any{{"Id": "00T1", "Subject": "Call", "Status": "Completed", "CreatedDate": "2025-01-02T10:00:00.000+0000", "Owner": map[string]any{"Name": "Ana"}}}
		case strings.Contains(soql, "FROM Event"):
			return []map[string]any{{"Id": "00U1", "Subject": "Demo", "ActivityDate": "2020-01-03"}}
		case strings.Contains(soql, "FROM Case"):
			return []map[string]any{{"Id": "5001", "CaseNumber": "42", "Subject": "Bug", "CreatedDate": "2025-01-04T00:00:00Z"}}
		}
		return nil
	})
	src := newTestSource(t, f)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	set, err := src.GetAccountActivities(context.Background(), "001300000000001", start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, set.Tasks, 1)
	assert.Equal(t, "Ana", set.Tasks[0].OwnerName)
	require.Len(t, set.Events, 1)
	assert.Equal(t, "Completed", set.Events[0].Status)
	require.Len(t, set.Cases, 1)
	assert.Equal(t, "42: Bug", set.Cases[0].Subject)

	for _, q := range f.queries[1:] {
		assert.Contains(t, q, "CreatedDate >= 2025-01-01T00:00:00Z")
		assert.Contains(t, q, "CreatedDate <= 2025-02-01T23:59:59Z")
	}
}

func TestSalesforce_AccountActivitiesUnknownAccount(t *testing.T) {
	f := newFakeSalesforce(t, func(string) []map[string]any { return nil })
	src := newTestSource(t, f)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := src.GetAccountActivities(context.Background(), "001300000000009", start, start)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSalesforceSource_Validation(t *testing.T) {
	_, err := NewSalesforceSource(SalesforceConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewSalesforceSource(SalesforceConfig{
		Username: "agent@example.com", Password: "pw", SecurityToken: "tok",
		SummaryObject: "Case_Summary__c", SummaryField: "Summary__c", CaseIDField: "Case__c",
	}, zerolog.Nop())
	require.ErrorIs(t, err, ErrMissingCredentials)
	for _, name := range []string{"SALESFORCE_CLIENT_ID", "SALESFORCE_CLIENT_SECRET", "SALESFORCE_USERNAME", "SALESFORCE_PASSWORD", "SALESFORCE_SECURITY_TOKEN"} {
		assert.Contains(t, err.Error(), name)
	}

	_, err = NewSalesforceSource(SalesforceConfig{
		Username: "agent@example.com", ClientID: "c", ClientSecret: "s",
		SummaryObject: "Case_Summary__c", SummaryField: "Summary__c", CaseIDField: "Case__c",
	}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewSalesforceSource(SalesforceConfig{
		ClientID: "c", ClientSecret: "s",
		SummaryObject: "Case_Summary__c", SummaryField: "Summary__c", CaseIDField: "Case__c",
	}, zerolog.Nop())
	assert.NoError(t, err)

	_, err = NewSalesforceSource(SalesforceConfig{
		ClientID: "c", ClientSecret: "s",
		SummaryObject: "Bad Name", SummaryField: "Summary__c", CaseIDField: "Case__c",
	}, zerolog.Nop())
	assert.Error(t, err)
}
