package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store is a Postgres-backed crm.Source for self-hosted deployments and demos
// that need persistence.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaSQL)
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return crm.ErrNotFound
	}
	return err
}

func (s *Store) CheckConnection(ctx context.Context) models.SourceHealth {
	var cases int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM cases`).Scan(&cases); err != nil {
		return models.SourceHealth{
			Connected: false,
			Status:    "error",
			Message:   "Connection exists but query failed: " + err.Error(),
			Error:     err.Error(),
		}
	}
	stat := s.Pool.Stat()
	return models.SourceHealth{
		Connected: true,
		Status:    "connected",
		Message:   "Postgres connection is healthy",
		Details: map[string]any{
			"mode":        "postgres",
			"cases":       cases,
			"total_conns": stat.TotalConns(),
			"idle_conns":  stat.IdleConns(),
		},
	}
}

const caseSelect = `
	SELECT c.id, c.case_number, c.subject, c.description, c.priority, c.status, c.is_closed,
		c.created_at, c.closed_at, COALESCE(c.account_id, ''), COALESCE(c.contact_id, ''), c.contact_data,
		a.name, a.industry, a.type, a.phone, a.billing_city, a.billing_country,
		u.id, u.name, u.email
	FROM cases c
	LEFT JOIN accounts a ON a.id = c.account_id
	LEFT JOIN users u ON u.id = c.owner_id`

func (s *Store) GetCaseByID(ctx context.Context, id string) (models.CaseRecord, error) {
	return s.scanCase(s.Pool.QueryRow(ctx, caseSelect+` WHERE c.id = $1`, id))
}

func (s *Store) GetCaseByNumber(ctx context.Context, number string) (models.CaseRecord, error) {
	number = strings.TrimSpace(number)
	return s.scanCase(s.Pool.QueryRow(ctx, caseSelect+`
		WHERE c.case_number = $1 OR ltrim(c.case_number, '0') = NULLIF(ltrim($1, '0'), '')
		ORDER BY c.case_number = $1 DESC LIMIT 1`, number))
}

func (s *Store) scanCase(row pgx.Row) (models.CaseRecord, error) {
	var (
		c                                       models.CaseRecord
		priority                                string
		createdAt                               time.Time
		closedAt                                *time.Time
		contactData                             []byte
		accName, accIndustry, accType, accPhone *string
		accCity, accCountry                     *string
		ownerID, ownerName, ownerEmail          *string
	)
	err := row.Scan(&c.ID, &c.CaseNumber, &c.Subject, &c.Description, &priority, &c.Status, &c.IsClosed,
		&createdAt, &closedAt, &c.AccountID, &c.ContactID, &contactData,
		&accName, &accIndustry, &accType, &accPhone, &accCity, &accCountry,
		&ownerID, &ownerName, &ownerEmail)
	if err != nil {
		return models.CaseRecord{}, notFound(err)
	}
	c.Priority = models.ParsePriority(priority)
	c.CreatedDate = createdAt.UTC().Format(time.RFC3339)
	if closedAt != nil {
		c.ClosedDate = closedAt.UTC().Format(time.RFC3339)
	}
	if accName != nil {
		c.Account = map[string]any{
			"Id": c.AccountID, "Name": *accName, "Industry": derefString(accIndustry), "Type": derefString(accType),
			"Phone": derefString(accPhone), "BillingCity": derefString(accCity), "BillingCountry": derefString(accCountry),
		}
	}
	if len(contactData) > 0 {
		if err := json.Unmarshal(contactData, &c.Contact); err != nil {
			return models.CaseRecord{}, fmt.Errorf("decode contact_data: %w", err)
		}
	}
	if ownerID != nil {
		c.Owner = &models.User{ID: *ownerID, Name: derefString(ownerName), Email: derefString(ownerEmail)}
	}
	return c, nil
}

func (s *Store) GetRelatedObjects(ctx context.Context, caseID string) ([]models.RelatedObjectBundle, error) {
	var exists bool
	if err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE id = $1)`, caseID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, crm.ErrNotFound
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT object_name, bundle_pos, record
		FROM case_related_records
		WHERE case_id = $1
		ORDER BY bundle_pos, record_pos`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RelatedObjectBundle
	last := -1
	for rows.Next() {
		var (
			name   string
			pos    int
			raw    []byte
			record map[string]any
		)
		if err := rows.Scan(&name, &pos, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, err
		}
		if pos != last {
			out = append(out, models.RelatedObjectBundle{ObjectName: name})
			last = pos
		}
		out[len(out)-1].Records = append(out[len(out)-1].Records, record)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveUsers(ctx context.Context, limit int, excludeID string) ([]models.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 3
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, email FROM users
		WHERE is_active AND id <> $1
		ORDER BY name ASC, id ASC
		LIMIT $2`, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) SaveCaseSummary(ctx context.Context, caseID, summary string, extra map[string]any) (models.SaveSummaryResult, error) {
	var extraJSON []byte
	if len(extra) > 0 {
		b, err := json.Marshal(extra)
		if err != nil {
			return models.SaveSummaryResult{Success: false, CaseID: caseID, Error: err.Error(), Message: "Failed to save summary: " + err.Error()}, err
		}
		extraJSON = b
	}

	var (
		recordID string
		inserted bool
	)
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO case_summaries (case_id, record_id, summary, extra, updated_at)
		VALUES ($1, 'a00' || substr(md5($1), 1, 12), $2, $3, now())
		ON CONFLICT (case_id) DO UPDATE
		SET summary = EXCLUDED.summary, extra = EXCLUDED.extra, updated_at = now()
		RETURNING record_id, (xmax = 0)`, caseID, summary, extraJSON).Scan(&recordID, &inserted)
	if err != nil {
		return models.SaveSummaryResult{Success: false, CaseID: caseID, Error: err.Error(), Message: "Failed to save summary: " + err.Error()}, err
	}
	if inserted {
		return models.SaveSummaryResult{Success: true, RecordID: recordID, Message: "Summary saved successfully", CaseID: caseID, Action: "create"}, nil
	}
	return models.SaveSummaryResult{Success: true, RecordID: recordID, Message: "Summary updated successfully", CaseID: caseID, Action: "update"}, nil
}

const accountSelect = `SELECT id, name, type, industry, website, phone, billing_city, billing_state, billing_country, owner_name FROM accounts`

func (s *Store) SearchAccount(ctx context.Context, identifier string) (models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	var row pgx.Row
	if crm.IsAccountID(identifier) {
		row = s.Pool.QueryRow(ctx, accountSelect+` WHERE id = $1`, identifier)
	} else {
		pattern := "%" + strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(identifier) + "%"
		row = s.Pool.QueryRow(ctx, accountSelect+` WHERE name ILIKE $1 ORDER BY name LIMIT 1`, pattern)
	}
	var a models.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Industry, &a.Website, &a.Phone, &a.BillingCity, &a.BillingState, &a.BillingCountry, &a.OwnerName); err != nil {
		return models.Account{}, notFound(err)
	}
	return a, nil
}

func (s *Store) GetAccountActivities(ctx context.Context, accountID string, start, end time.Time) (models.ActivitySet, error) {
	var exists bool
	if err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return models.ActivitySet{}, err
	}
	if !exists {
		return models.ActivitySet{}, crm.ErrNotFound
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, type, subject, description, status, priority, activity_date, created_at, owner_name, related_to
		FROM activities
		WHERE account_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, id ASC`, accountID, start, crm.DayEnd(end))
	if err != nil {
		return models.ActivitySet{}, err
	}
	defer rows.Close()

	set := models.ActivitySet{Tasks: []models.ActivityRecord{}, Events: []models.ActivityRecord{}, Cases: []models.ActivityRecord{}}
	for rows.Next() {
		var (
			r         models.ActivityRecord
			createdAt time.Time
		)
		if err := rows.Scan(&r.ID, &r.Type, &r.Subject, &r.Description, &r.Status, &r.Priority, &r.ActivityDate, &createdAt, &r.OwnerName, &r.RelatedTo); err != nil {
			return models.ActivitySet{}, err
		}
		r.CreatedDate = createdAt.UTC().Format(time.RFC3339)
		switch r.Type {
		case models.ActivityTask:
			set.Tasks = append(set.Tasks, r)
		case models.ActivityEvent:
			set.Events = append(set.Events, r)
		default:
			set.Cases = append(set.Cases, r)
		}
	}
	return set, rows.Err()
}

// Seed replaces all CRM tables with the contents of src in one transaction.
func (s *Store) Seed(ctx context.Context, src *crm.MemorySource) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE case_summaries, case_related_records, activities, cases, accounts, users`); err != nil {
			return err
		}

		users := make([][]any, 0, len(src.Users))
		for _, u := range src.Users {
			users = append(users, []any{u.ID, u.Name, u.Email, true})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"users"}, []string{"id", "name", "email", "is_active"}, pgx.CopyFromRows(users)); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}

		accounts := make([][]any, 0, len(src.Accounts))
		for _, a := range src.Accounts {
			accounts = append(accounts, []any{a.ID, a.Name, a.Type, a.Industry, a.Website, a.Phone, a.BillingCity, a.BillingState, a.BillingCountry, a.OwnerName})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"accounts"}, []string{"id", "name", "type", "industry", "website", "phone", "billing_city", "billing_state", "billing_country", "owner_name"}, pgx.CopyFromRows(accounts)); err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}

		cases := make([][]any, 0, len(src.Cases))
		for _, c := range src.Cases {
			created, _ := crm.ParseTimestamp(c.CreatedDate)
			var closed *time.Time
			if t, ok := crm.ParseTimestamp(c.ClosedDate); ok {
				closed = &t
			}
			var contact []byte
			if c.Contact != nil {
				contact, _ = json.Marshal(c.Contact)
			}
			var ownerID *string
			if c.Owner != nil {
				ownerID = &c.Owner.ID
			}
			cases = append(cases, []any{c.ID, c.CaseNumber, c.Subject, c.Description, string(c.Priority), c.Status, c.IsClosed,
				created, closed, nullable(c.AccountID), nullable(c.ContactID), contact, ownerID})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"cases"}, []string{"id", "case_number", "subject", "description", "priority", "status", "is_closed", "created_at", "closed_at", "account_id", "contact_id", "contact_data", "owner_id"}, pgx.CopyFromRows(cases)); err != nil {
			return fmt.Errorf("seed cases: %w", err)
		}

		var related [][]any
		caseIDs := make([]string, 0, len(src.Related))
		for id := range src.Related {
			caseIDs = append(caseIDs, id)
		}
		sort.Strings(caseIDs)
		for _, id := range caseIDs {
			for bi, b := range src.Related[id] {
				for ri, rec := range b.Records {
					raw, err := json.Marshal(rec)
					if err != nil {
						return err
					}
					related = append(related, []any{id, b.ObjectName, bi, ri, raw})
				}
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"case_related_records"}, []string{"case_id", "object_name", "bundle_pos", "record_pos", "record"}, pgx.CopyFromRows(related)); err != nil {
			return fmt.Errorf("seed related records: %w", err)
		}

		var activities [][]any
		for accountID, set := range src.Activities {
			for _, r := range set.All() {
				created, _ := crm.ParseTimestamp(r.CreatedDate)
				activities = append(activities, []any{r.ID, accountID, r.Type, r.Subject, r.Description, r.Status, r.Priority, r.ActivityDate, created, r.OwnerName, r.RelatedTo})
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"activities"}, []string{"id", "account_id", "type", "subject", "description", "status", "priority", "activity_date", "created_at", "owner_name", "related_to"}, pgx.CopyFromRows(activities)); err != nil {
			return fmt.Errorf("seed activities: %w", err)
		}
		return nil
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
