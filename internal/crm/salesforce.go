package crm

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/c360-copilot/backend/internal/models"
)

//go:embed related_objects.json
var relatedObjectsJSON []byte

type relatedObject struct {
	Name    string   `json:"name"`
	Lookup  string   `json:"lookup"`
	Parent  string   `json:"parent"`
	Fields  []string `json:"fields"`
	OrderBy string   `json:"order_by"`
	Limit   int      `json:"limit"`
}

// ErrMissingCredentials means the Salesforce settings cannot support any login flow.
var ErrMissingCredentials = errors.New("salesforce credentials missing")

type SalesforceConfig struct {
	Domain        string
	LoginURL      string
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
	APIVersion    string
	SummaryObject string
	SummaryField  string
	CaseIDField   string
}

// SalesforceSource reads and writes CRM records through the Salesforce REST
// API. The session is established lazily and refreshed once on a 401.
type SalesforceSource struct {
	cfg     SalesforceConfig
	http    *http.Client
	logger  zerolog.Logger
	related []relatedObject

	mu          sync.Mutex
	client      *http.Client
	instanceURL string
}

func NewSalesforceSource(cfg SalesforceConfig, logger zerolog.Logger) (*SalesforceSource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: SALESFORCE_CLIENT_ID and SALESFORCE_CLIENT_SECRET of a connected app are required for both the client credentials flow and the password flow (SALESFORCE_USERNAME, SALESFORCE_PASSWORD, SALESFORCE_SECURITY_TOKEN)", ErrMissingCredentials)
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return nil, fmt.Errorf("%w: the password flow needs both SALESFORCE_USERNAME and SALESFORCE_PASSWORD", ErrMissingCredentials)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v59.0"
	}
	if cfg.LoginURL == "" {
		domain := cfg.Domain
		if domain == "" {
			domain = "login"
		}
		cfg.LoginURL = "https://" + domain + ".salesforce.com"
	}
	for _, name := range []string{cfg.SummaryObject, cfg.SummaryField, cfg.CaseIDField} {
		if !IsAPIName(name) {
			return nil, fmt.Errorf("invalid Salesforce API name %q", name)
		}
	}
	var related struct {
		Objects []relatedObject `json:"objects"`
	}
	if err := json.Unmarshal(relatedObjectsJSON, &related); err != nil {
		return nil, fmt.Errorf("related objects config: %w", err)
	}
	return &SalesforceSource{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		related: related.Objects,
	}, nil
}

// WithHTTPClient swaps the transport used for login and API calls.
func (s *SalesforceSource) WithHTTPClient(c *http.Client) *SalesforceSource {
	s.http = c
	return s
}

func (s *SalesforceSource) login(ctx context.Context) (*http.Client, string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	tokenURL := strings.TrimRight(s.cfg.LoginURL, "/") + "/services/oauth2/token"

	var (
		tok *oauth2.Token
		err error
	)
	if s.cfg.Username != "" && s.cfg.Password != "" {
		conf := &oauth2.Config{
			ClientID:     s.cfg.ClientID,
			ClientSecret: s.cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		}
		tok, err = conf.PasswordCredentialsToken(ctx, s.cfg.Username, s.cfg.Password+s.cfg.SecurityToken)
	} else {
		conf := &clientcredentials.Config{
			ClientID:     s.cfg.ClientID,
			ClientSecret: s.cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		tok, err = conf.Token(ctx)
	}
	if err != nil {
		return nil, "", fmt.Errorf("salesforce oauth: %w", err)
	}
	instance, _ := tok.Extra("instance_url").(string)
	if instance == "" {
		return nil, "", errors.New("salesforce oauth: token response has no instance_url")
	}
	s.logger.Info().Str("instance_url", instance).Msg("salesforce session established")
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), strings.TrimRight(instance, "/"), nil
}

func (s *SalesforceSource) session(ctx context.Context, refresh bool) (*http.Client, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && !refresh {
		return s.client, s.instanceURL, nil
	}
	c, instance, err := s.login(ctx)
	if err != nil {
		return nil, "", err
	}
	s.client, s.instanceURL = c, instance
	return c, instance, nil
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("salesforce api: status %d: %s", e.Status, e.Body)
}

// call performs one REST request against the data API, re-authenticating once
// if the session has expired. out may be nil.
func (s *SalesforceSource) call(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	for attempt := 0; attempt < 2; attempt++ {
		client, instance, err := s.session(ctx, attempt > 0)
		if err != nil {
			return err
		}
		target := path
		if !strings.HasPrefix(path, "/services/") {
			target = "/services/data/" + s.cfg.APIVersion + path
		}
		req, err := http.NewRequestWithContext(ctx, method, instance+target, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("salesforce request: %w", err)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			s.logger.Warn().Str("path", path).Msg("salesforce session expired, logging in again")
			continue
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode >= 300:
			return &apiError{Status: resp.StatusCode, Body: string(raw)}
		}
		if out == nil || len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, out)
	}
	return &apiError{Status: http.StatusUnauthorized, Body: "session refresh failed"}
}

type queryResult struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}

// query runs a SOQL statement and follows pagination.
func (s *SalesforceSource) query(ctx context.Context, soql string) ([]map[string]any, error) {
	var res queryResult
	if err := s.call(ctx, http.MethodGet, "/query?q="+url.QueryEscape(soql), nil, &res); err != nil {
		return nil, err
	}
	records := res.Records
	for !res.Done && res.NextRecordsURL != "" {
		next := res.NextRecordsURL
		res = queryResult{}
		if err := s.call(ctx, http.MethodGet, next, nil, &res); err != nil {
			return nil, err
		}
		records = append(records, res.Records...)
	}
	for _, r := range records {
		delete(r, "attributes")
	}
	return records, nil
}

func (s *SalesforceSource) CheckConnection(ctx context.Context) models.SourceHealth {
	if _, err := s.query(ctx, "SELECT Id FROM User LIMIT 1"); err != nil {
		return models.SourceHealth{
			Connected: false,
			Status:    "error",
			Message:   "Connection exists but API call failed: " + err.Error(),
			Error:     err.Error(),
		}
	}
	s.mu.Lock()
	instance := s.instanceURL
	s.mu.Unlock()
	return models.SourceHealth{
		Connected: true,
		Status:    "connected",
		Message:   "Salesforce connection is healthy",
		Details: map[string]any{
			"instance_url":   instance,
			"api_version":    s.cfg.APIVersion,
			"session_active": true,
			"query_test":     "passed",
		},
	}
}

const caseFields = "Id, CaseNumber, Subject, Description, Priority, Status, IsClosed, CreatedDate, ClosedDate, " +
	"AccountId, ContactId, Account.Name, Account.Industry, Account.Type, Account.Phone, " +
	"Contact.Name, Contact.Email, Contact.Phone, Contact.Title, Owner.Id, Owner.Name, Owner.Email"

func (s *SalesforceSource) GetCaseByID(ctx context.Context, id string) (models.CaseRecord, error) {
	if !IsRecordID(id) {
		return models.CaseRecord{}, ErrNotFound
	}
	return s.caseWhere(ctx, "Id = "+Quote(id))
}

func (s *SalesforceSource) GetCaseByNumber(ctx context.Context, number string) (models.CaseRecord, error) {
	return s.caseWhere(ctx, "CaseNumber = "+Quote(strings.TrimSpace(number)))
}

func (s *SalesforceSource) caseWhere(ctx context.Context, where string) (models.CaseRecord, error) {
	rows, err := s.query(ctx, "SELECT "+caseFields+" FROM Case WHERE "+where+" LIMIT 1")
	if err != nil {
		return models.CaseRecord{}, err
	}
	if len(rows) == 0 {
		return models.CaseRecord{}, ErrNotFound
	}
	return caseFromRecord(rows[0]), nil
}

func caseFromRecord(r map[string]any) models.CaseRecord {
	c := models.CaseRecord{
		ID:          str(r, "Id"),
		CaseNumber:  str(r, "CaseNumber"),
		Subject:     str(r, "Subject"),
		Description: str(r, "Description"),
		Priority:    models.ParsePriority(str(r, "Priority")),
		Status:      str(r, "Status"),
		CreatedDate: str(r, "CreatedDate"),
		ClosedDate:  str(r, "ClosedDate"),
		AccountID:   str(r, "AccountId"),
		ContactID:   str(r, "ContactId"),
	}
	c.IsClosed, _ = r["IsClosed"].(bool)
	if acc, ok := r["Account"].(map[string]any); ok {
		c.Account = snapshot(acc, c.AccountID)
	}
	if con, ok := r["Contact"].(map[string]any); ok {
		c.Contact = snapshot(con, c.ContactID)
	}
	if owner, ok := r["Owner"].(map[string]any); ok {
		c.Owner = &models.User{ID: str(owner, "Id"), Name: str(owner, "Name"), Email: str(owner, "Email")}
	}
	return c
}

func snapshot(r map[string]any, id string) map[string]any {
	out := map[string]any{"Id": id}
	for k, v := range r {
		if k == "attributes" || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func (s *SalesforceSource) GetRelatedObjects(ctx context.Context, caseID string) ([]models.RelatedObjectBundle, error) {
	c, err := s.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	var out []models.RelatedObjectBundle
	for _, obj := range s.related {
		soql := "SELECT " + strings.Join(obj.Fields, ", ") + " FROM " + obj.Name + " WHERE "
		switch {
		case obj.Lookup == "AccountId" && c.AccountID != "":
			soql += "Id = " + Quote(c.AccountID)
		case obj.Lookup == "ContactId" && c.ContactID != "":
			soql += "Id = " + Quote(c.ContactID)
		case obj.Parent != "":
			soql += obj.Parent + " = " + Quote(c.ID)
		default:
			continue
		}
		if obj.OrderBy != "" {
			soql += " ORDER BY " + obj.OrderBy
		}
		if obj.Limit > 0 {
			soql += fmt.Sprintf(" LIMIT %d", obj.Limit)
		}
		rows, err := s.query(ctx, soql)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).Str("object", obj.Name).Str("case_id", caseID).Msg("related object fetch failed")
			continue
		}
		if len(rows) > 0 {
			out = append(out, models.RelatedObjectBundle{ObjectName: obj.Name, Records: rows})
		}
	}
	return out, nil
}

func (s *SalesforceSource) ListActiveUsers(ctx context.Context, limit int, excludeID string) ([]models.User, error) {
	if limit <= 0 {
		limit = 3
	}
	soql := "SELECT Id, Name, Email FROM User WHERE IsActive = true AND UserType = 'Standard'"
	if excludeID != "" {
		soql += " AND Id != " + Quote(excludeID)
	}
	soql += fmt.Sprintf(" ORDER BY Name LIMIT %d", limit)
	rows, err := s.query(ctx, soql)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.User{ID: str(r, "Id"), Name: str(r, "Name"), Email: str(r, "Email")})
	}
	return out, nil
}

func (s *SalesforceSource) SaveCaseSummary(ctx context.Context, caseID, summary string, extra map[string]any) (models.SaveSummaryResult, error) {
	obj, caseField := s.cfg.SummaryObject, s.cfg.CaseIDField
	record := map[string]any{}
	for k, v := range extra {
		if IsAPIName(k) {
			record[k] = v
		}
	}
	record[caseField] = caseID
	record[s.cfg.SummaryField] = summary

	fail := func(err error) (models.SaveSummaryResult, error) {
		return models.SaveSummaryResult{
			Success: false,
			Error:   err.Error(),
			Message: "Failed to save summary: " + err.Error(),
			CaseID:  caseID,
		}, err
	}

	rows, err := s.query(ctx, "SELECT Id FROM "+obj+" WHERE "+caseField+" = "+Quote(caseID)+" LIMIT 1")
	if err != nil {
		return fail(err)
	}
	if len(rows) > 0 {
		id := str(rows[0], "Id")
		if err := s.call(ctx, http.MethodPatch, "/sobjects/"+obj+"/"+url.PathEscape(id), record, nil); err != nil {
			return fail(err)
		}
		return models.SaveSummaryResult{Success: true, RecordID: id, Message: "Summary updated successfully", CaseID: caseID, Action: "update"}, nil
	}

	var created struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	if err := s.call(ctx, http.MethodPost, "/sobjects/"+obj, record, &created); err != nil {
		return fail(err)
	}
	return models.SaveSummaryResult{Success: true, RecordID: created.ID, Message: "Summary saved successfully", CaseID: caseID, Action: "create"}, nil
}

const accountFields = "Id, Name, Type, Industry, Website, Phone, BillingCity, BillingState, BillingCountry, Owner.Name"

func (s *SalesforceSource) SearchAccount(ctx context.Context, identifier string) (models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	where := "Name LIKE " + LikeContains(identifier) + " ORDER BY Name"
	if IsAccountID(identifier) {
		where = "Id = " + Quote(identifier)
	}
	rows, err := s.query(ctx, "SELECT "+accountFields+" FROM Account WHERE "+where+" LIMIT 1")
	if err != nil {
		return models.Account{}, err
	}
	if len(rows) == 0 {
		return models.Account{}, ErrNotFound
	}
	r := rows[0]
	return models.Account{
		ID:             str(r, "Id"),
		Name:           str(r, "Name"),
		Type:           str(r, "Type"),
		Industry:       str(r, "Industry"),
		Website:        str(r, "Website"),
		Phone:          str(r, "Phone"),
		BillingCity:    str(r, "BillingCity"),
		BillingState:   str(r, "BillingState"),
		BillingCountry: str(r, "BillingCountry"),
		OwnerName:      str(r, "Owner", "Name"),
	}, nil
}

func (s *SalesforceSource) GetAccountActivities(ctx context.Context, accountID string, start, end time.Time) (models.ActivitySet, error) {
	if !IsAccountID(accountID) {
		return models.ActivitySet{}, ErrNotFound
	}
	found, err := s.query(ctx, "SELECT Id FROM Account WHERE Id = "+Quote(accountID)+" LIMIT 1")
	if err != nil {
		return models.ActivitySet{}, err
	}
	if len(found) == 0 {
		return models.ActivitySet{}, ErrNotFound
	}
	window := fmt.Sprintf(" AND CreatedDate >= %s AND CreatedDate <= %s ORDER BY CreatedDate LIMIT 2000",
		DateTimeLiteral(start), DateTimeLiteral(DayEnd(end)))
	acc := Quote(accountID)

	tasks, err := s.query(ctx, "SELECT Id, Subject, Description, Status, Priority, ActivityDate, CreatedDate, Owner.Name, What.Name FROM Task WHERE AccountId = "+acc+window)
	if err != nil {
		return models.ActivitySet{}, err
	}
	events, err := s.query(ctx, "SELECT Id, Subject, Description, ActivityDate, CreatedDate, Owner.Name, What.Name FROM Event WHERE AccountId = "+acc+window)
	if err != nil {
		return models.ActivitySet{}, err
	}
	cases, err := s.query(ctx, "SELECT Id, CaseNumber, Subject, Description, Status, Priority, CreatedDate, ClosedDate, Owner.Name, Account.Name FROM Case WHERE AccountId = "+acc+window)
	if err != nil {
		return models.ActivitySet{}, err
	}

	set := models.ActivitySet{
		Tasks:  make([]models.ActivityRecord, 0, len(tasks)),
		Events: make([]models.ActivityRecord, 0, len(events)),
		Cases:  make([]models.ActivityRecord, 0, len(cases)),
	}
	for _, r := range tasks {
		set.Tasks = append(set.Tasks, activityFromRecord(models.ActivityTask, r, str(r, "What", "Name")))
	}
	for _, r := range events {
		e := activityFromRecord(models.ActivityEvent, r, str(r, "What", "Name"))
		e.Status = "Completed"
		if t, ok := ParseTimestamp(e.ActivityDate); ok && t.After(time.Now()) {
			e.Status = "Scheduled"
		}
		set.Events = append(set.Events, e)
	}
	for _, r := range cases {
		c := activityFromRecord(models.ActivityCase, r, str(r, "Account", "Name"))
		c.ActivityDate = firstNonEmpty(str(r, "ClosedDate"), str(r, "CreatedDate"))
		if n := str(r, "CaseNumber"); n != "" {
			c.Subject = n + ": " + c.Subject
		}
		set.Cases = append(set.Cases, c)
	}
	return set, nil
}

func activityFromRecord(kind string, r map[string]any, related string) models.ActivityRecord {
	return models.ActivityRecord{
		ID:           str(r, "Id"),
		Type:         kind,
		Subject:      str(r, "Subject"),
		Description:  str(r, "Description"),
		Status:       str(r, "Status"),
		Priority:     str(r, "Priority"),
		ActivityDate: str(r, "ActivityDate"),
		CreatedDate:  str(r, "CreatedDate"),
		OwnerName:    str(r, "Owner", "Name"),
		RelatedTo:    related,
	}
}

// str walks nested relationship maps, e.g. str(r, "Owner", "Name").
func str(r map[string]any, path ...string) string {
	var cur any = r
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[p]
	}
	switch v := cur.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
