package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/models"
)

// Store is the cache access layer consumed by the request service, the
// routing resolver and the synchronizer. The request service never talks to
// the remote system of record for reads; everything comes from here.
type Store interface {
	Ping() error

	ListRequests(filter models.RequestFilter) ([]models.InvestmentRequest, error)
	GetRequest(id int64) (*models.InvestmentRequest, error)
	InsertRequest(req *models.InvestmentRequest) error
	UpdateRequest(req *models.InvestmentRequest) error
	DeleteRequest(id int64) error
	NextProvisionalID() (int64, error)
	PromoteRequest(oldID, newID int64) error
	Summary(filter models.RequestFilter, username string) (*models.RequestSummary, error)

	ReplaceUsers(entries []models.HierarchyEntry) error
	ReplaceRequests(requests []models.InvestmentRequest) error
	ReplaceBudgets(budgets []models.Budget) error
	ReplaceAccounts(accounts []models.Account) error

	GetUserByUsername(username string) (*models.HierarchyEntry, error)
	GetUserByDisplayName(displayName string) (*models.HierarchyEntry, error)

	SearchAccounts(query string, limit int) ([]models.Account, error)
	TheaterIndustryLookups() (*models.TheaterIndustryLookup, error)
	ListBudgets(fiscalYear string) ([]models.Budget, error)

	ListOpportunityLinks(requestID int64) ([]models.OpportunityLink, error)
	InsertOpportunityLink(link models.OpportunityLink) error
	DeleteOpportunityLink(requestID int64, opportunityID string) error

	InsertPendingSync(entry models.PendingSyncEntry) error
	GetPendingSync(id string) (*models.PendingSyncEntry, error)
	UpdatePendingSync(id, status string, attempts int, errorMessage *string) error
	ListPendingSync(limit int) ([]models.PendingSyncEntry, error)
}

// PostgresStore implements Store over the local Postgres cache.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a cache store over an established connection
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping() error {
	return s.db.Ping()
}

const requestColumns = `
	request_id, request_title, account_id, account_name, investment_type,
	requested_amount, investment_quarter, business_justification,
	expected_outcome, risk_assessment, expected_roi, sfdc_opportunity_link,
	created_by, created_by_name, created_by_employee_id, created_at, updated_at,
	theater, industry_segment, status, current_approval_level,
	next_approver_name, next_approver_title,
	dm_approved_by, dm_approved_by_title, dm_approved_at, dm_comments,
	rd_approved_by, rd_approved_by_title, rd_approved_at, rd_comments,
	avp_approved_by, avp_approved_by_title, avp_approved_at, avp_comments,
	gvp_approved_by, gvp_approved_by_title, gvp_approved_at, gvp_comments,
	withdrawn_by, withdrawn_by_name, withdrawn_at, withdrawn_comment,
	submitted_comment, submitted_by_name, submitted_at,
	draft_comment, draft_by_name, draft_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*models.InvestmentRequest, error) {
	var req models.InvestmentRequest
	err := row.Scan(
		&req.ID, &req.Title, &req.AccountID, &req.AccountName, &req.InvestmentType,
		&req.RequestedAmount, &req.Quarter, &req.BusinessJustification,
		&req.ExpectedOutcome, &req.RiskAssessment, &req.ExpectedROI, &req.OpportunityLinkText,
		&req.CreatedBy, &req.CreatedByName, &req.CreatedByEmployeeID, &req.CreatedAt, &req.UpdatedAt,
		&req.Theater, &req.IndustrySegment, &req.Status, &req.CurrentApprovalLevel,
		&req.NextApproverName, &req.NextApproverTitle,
		&req.DM.ApprovedBy, &req.DM.ApprovedByTitle, &req.DM.ApprovedAt, &req.DM.Comments,
		&req.RD.ApprovedBy, &req.RD.ApprovedByTitle, &req.RD.ApprovedAt, &req.RD.Comments,
		&req.AVP.ApprovedBy, &req.AVP.ApprovedByTitle, &req.AVP.ApprovedAt, &req.AVP.Comments,
		&req.GVP.ApprovedBy, &req.GVP.ApprovedByTitle, &req.GVP.ApprovedAt, &req.GVP.Comments,
		&req.WithdrawnBy, &req.WithdrawnByName, &req.WithdrawnAt, &req.WithdrawnComment,
		&req.SubmittedComment, &req.SubmittedByName, &req.SubmittedAt,
		&req.DraftComment, &req.DraftByName, &req.DraftAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func requestArgs(req *models.InvestmentRequest) []interface{} {
	return []interface{}{
		req.ID, req.Title, req.AccountID, req.AccountName, req.InvestmentType,
		req.RequestedAmount, req.Quarter, req.BusinessJustification,
		req.ExpectedOutcome, req.RiskAssessment, req.ExpectedROI, req.OpportunityLinkText,
		req.CreatedBy, req.CreatedByName, req.CreatedByEmployeeID, req.CreatedAt, req.UpdatedAt,
		req.Theater, req.IndustrySegment, req.Status, req.CurrentApprovalLevel,
		req.NextApproverName, req.NextApproverTitle,
		req.DM.ApprovedBy, req.DM.ApprovedByTitle, req.DM.ApprovedAt, req.DM.Comments,
		req.RD.ApprovedBy, req.RD.ApprovedByTitle, req.RD.ApprovedAt, req.RD.Comments,
		req.AVP.ApprovedBy, req.AVP.ApprovedByTitle, req.AVP.ApprovedAt, req.AVP.Comments,
		req.GVP.ApprovedBy, req.GVP.ApprovedByTitle, req.GVP.ApprovedAt, req.GVP.Comments,
		req.WithdrawnBy, req.WithdrawnByName, req.WithdrawnAt, req.WithdrawnComment,
		req.SubmittedComment, req.SubmittedByName, req.SubmittedAt,
		req.DraftComment, req.DraftByName, req.DraftAt,
	}
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func (s *PostgresStore) ListRequests(filter models.RequestFilter) ([]models.InvestmentRequest, error) {
	query := "SELECT " + requestColumns + " FROM cached_requests WHERE 1=1"
	args := make([]interface{}, 0, 4)

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	addFilter("theater", filter.Theater)
	addFilter("industry_segment", filter.IndustrySegment)
	addFilter("investment_quarter", filter.Quarter)
	addFilter("status", filter.Status)

	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := make([]models.InvestmentRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		requests = append(requests, *req)
	}

	return requests, rows.Err()
}

func (s *PostgresStore) GetRequest(id int64) (*models.InvestmentRequest, error) {
	row := s.db.QueryRow("SELECT "+requestColumns+" FROM cached_requests WHERE request_id = $1", id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %d: %w", id, err)
	}
	return req, nil
}

func (s *PostgresStore) InsertRequest(req *models.InvestmentRequest) error {
	query := "INSERT INTO cached_requests (" + requestColumns + ") VALUES (" + placeholders(49) + ")"
	if _, err := s.db.Exec(query, requestArgs(req)...); err != nil {
		return fmt.Errorf("failed to insert request %d: %w", req.ID, err)
	}
	return nil
}

const requestUpdateSet = `
	request_title = $2, account_id = $3, account_name = $4, investment_type = $5,
	requested_amount = $6, investment_quarter = $7, business_justification = $8,
	expected_outcome = $9, risk_assessment = $10, expected_roi = $11, sfdc_opportunity_link = $12,
	created_by = $13, created_by_name = $14, created_by_employee_id = $15, created_at = $16, updated_at = $17,
	theater = $18, industry_segment = $19, status = $20, current_approval_level = $21,
	next_approver_name = $22, next_approver_title = $23,
	dm_approved_by = $24, dm_approved_by_title = $25, dm_approved_at = $26, dm_comments = $27,
	rd_approved_by = $28, rd_approved_by_title = $29, rd_approved_at = $30, rd_comments = $31,
	avp_approved_by = $32, avp_approved_by_title = $33, avp_approved_at = $34, avp_comments = $35,
	gvp_approved_by = $36, gvp_approved_by_title = $37, gvp_approved_at = $38, gvp_comments = $39,
	withdrawn_by = $40, withdrawn_by_name = $41, withdrawn_at = $42, withdrawn_comment = $43,
	submitted_comment = $44, submitted_by_name = $45, submitted_at = $46,
	draft_comment = $47, draft_by_name = $48, draft_at = $49
`

func (s *PostgresStore) UpdateRequest(req *models.InvestmentRequest) error {
	query := "UPDATE cached_requests SET " + requestUpdateSet + " WHERE request_id = $1"
	result, err := s.db.Exec(query, requestArgs(req)...)
	if err != nil {
		return fmt.Errorf("failed to update request %d: %w", req.ID, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteRequest(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM request_opportunities WHERE request_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete opportunity links for %d: %w", id, err)
	}
	if _, err := tx.Exec("DELETE FROM cached_requests WHERE request_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete request %d: %w", id, err)
	}

	return tx.Commit()
}

// NextProvisionalID hands out the next unused negative ID. Negative IDs mark
// records the remote system of record has not confirmed yet and can never
// collide with its positive keys. The sequence reserves each value atomically,
// so concurrent creates cannot be handed the same ID.
func (s *PostgresStore) NextProvisionalID() (int64, error) {
	var next int64
	err := s.db.QueryRow("SELECT nextval('provisional_request_seq')").Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve provisional id: %w", err)
	}
	return next, nil
}

// PromoteRequest atomically remaps a provisional negative ID to the
// authoritative positive ID the remote store assigned, rewriting the request
// row, its opportunity links, and any pending sync journal entries in one
// transaction so no reader sees the record under both IDs or neither.
func (s *PostgresStore) PromoteRequest(oldID, newID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin promote transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec("UPDATE cached_requests SET request_id = $1 WHERE request_id = $2", newID, oldID)
	if err != nil {
		return fmt.Errorf("failed to remap request %d to %d: %w", oldID, newID, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.Exec("UPDATE request_opportunities SET request_id = $1 WHERE request_id = $2", newID, oldID); err != nil {
		return fmt.Errorf("failed to remap opportunity links %d to %d: %w", oldID, newID, err)
	}
	if _, err := tx.Exec("UPDATE pending_sync SET request_id = $1 WHERE request_id = $2", newID, oldID); err != nil {
		return fmt.Errorf("failed to remap pending sync entries %d to %d: %w", oldID, newID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit promote transaction: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"component": "PostgresStore",
		"old_id":    oldID,
		"new_id":    newID,
	}).Info("Promoted provisional request to remote-confirmed ID")

	return nil
}

func (s *PostgresStore) Summary(filter models.RequestFilter, username string) (*models.RequestSummary, error) {
	requests, err := s.ListRequests(filter)
	if err != nil {
		return nil, err
	}

	summary := &models.RequestSummary{
		TotalInvestmentRequested: decimal.Zero,
		TotalInvestmentApproved:  decimal.Zero,
	}

	var identity models.Identity
	if username != "" {
		entry, err := s.GetUserByUsername(username)
		if err == nil && entry != nil {
			identity = models.IdentityFromEntry(entry)
		} else {
			identity = models.DefaultIdentity(username)
		}
	}

	for i := range requests {
		req := &requests[i]
		summary.TotalRequests++
		summary.TotalInvestmentRequested = summary.TotalInvestmentRequested.Add(req.RequestedAmount)

		switch req.Status {
		case models.StatusDraft:
			summary.TotalDraft++
		case models.StatusSubmitted, models.StatusDMApproved, models.StatusRDApproved, models.StatusAVPApproved:
			summary.TotalInFlight++
		case models.StatusFinalApproved:
			summary.TotalApproved++
			summary.TotalInvestmentApproved = summary.TotalInvestmentApproved.Add(req.RequestedAmount)
		case models.StatusRejected, models.StatusDenied:
			summary.TotalRejected++
		}

		if username != "" && req.NextApproverName != nil && *req.NextApproverName == identity.DisplayName && inFlight(req.Status) {
			summary.TotalPendingMyApproval++
		}
	}

	return summary, nil
}

func (s *PostgresStore) ReplaceUsers(entries []models.HierarchyEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin user refresh transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cached_users"); err != nil {
		return fmt.Errorf("failed to clear cached users: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cached_users (
			username, employee_id, display_name, title, role, theater,
			industry_segment, manager_name, approval_level, is_final_approver, refreshed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (username) DO UPDATE SET
			employee_id = EXCLUDED.employee_id,
			display_name = EXCLUDED.display_name,
			title = EXCLUDED.title,
			role = EXCLUDED.role,
			theater = EXCLUDED.theater,
			industry_segment = EXCLUDED.industry_segment,
			manager_name = EXCLUDED.manager_name,
			approval_level = EXCLUDED.approval_level,
			is_final_approver = EXCLUDED.is_final_approver,
			refreshed_at = EXCLUDED.refreshed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare user insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range entries {
		e := &entries[i]
		if _, err := stmt.Exec(
			e.Username, e.EmployeeID, e.DisplayName, e.Title, e.Role,
			e.Theater, e.IndustrySegment, e.ManagerName, e.ApprovalLevel,
			e.IsFinalApprover, now,
		); err != nil {
			return fmt.Errorf("failed to insert user %s: %w", e.Username, err)
		}
	}

	return tx.Commit()
}

// ReplaceRequests swaps in the remote view of the request table. Provisional
// (negative-ID) rows and rows with an unconfirmed local write stay untouched:
// the remote copy is stale for those until the pending sync entry flushes.
func (s *PostgresStore) ReplaceRequests(requests []models.InvestmentRequest) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin request refresh transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM cached_requests
		WHERE request_id > 0
		AND request_id NOT IN (
			SELECT request_id FROM pending_sync WHERE status IN ('pending', 'failed')
		)
	`); err != nil {
		return fmt.Errorf("failed to clear remote-confirmed requests: %w", err)
	}

	query := "INSERT INTO cached_requests (" + requestColumns + ") VALUES (" + placeholders(49) + ") ON CONFLICT (request_id) DO NOTHING"
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare request insert: %w", err)
	}
	defer stmt.Close()

	for i := range requests {
		if _, err := stmt.Exec(requestArgs(&requests[i])...); err != nil {
			return fmt.Errorf("failed to insert request %d: %w", requests[i].ID, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) ReplaceBudgets(budgets []models.Budget) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin budget refresh transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cached_budgets"); err != nil {
		return fmt.Errorf("failed to clear cached budgets: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cached_budgets (
			budget_id, fiscal_year, theater, industry_segment, portfolio,
			budget_amount, allocated_amount, q1_budget, q2_budget, q3_budget, q4_budget
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare budget insert: %w", err)
	}
	defer stmt.Close()

	for i := range budgets {
		b := &budgets[i]
		if _, err := stmt.Exec(
			b.BudgetID, b.FiscalYear, b.Theater, b.IndustrySegment, b.Portfolio,
			b.BudgetAmount, b.AllocatedAmount, b.Q1Budget, b.Q2Budget, b.Q3Budget, b.Q4Budget,
		); err != nil {
			return fmt.Errorf("failed to insert budget %d: %w", b.BudgetID, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) ReplaceAccounts(accounts []models.Account) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin account refresh transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cached_accounts"); err != nil {
		return fmt.Errorf("failed to clear cached accounts: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cached_accounts (account_id, account_name, theater, industry_segment)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare account insert: %w", err)
	}
	defer stmt.Close()

	for i := range accounts {
		a := &accounts[i]
		if _, err := stmt.Exec(a.AccountID, a.AccountName, a.Theater, a.IndustrySegment); err != nil {
			return fmt.Errorf("failed to insert account %s: %w", a.AccountName, err)
		}
	}

	return tx.Commit()
}

const userColumns = `
	username, employee_id, display_name, title, role, theater,
	industry_segment, manager_name, approval_level, is_final_approver
`

func scanUser(row rowScanner) (*models.HierarchyEntry, error) {
	var e models.HierarchyEntry
	err := row.Scan(
		&e.Username, &e.EmployeeID, &e.DisplayName, &e.Title, &e.Role,
		&e.Theater, &e.IndustrySegment, &e.ManagerName, &e.ApprovalLevel,
		&e.IsFinalApprover,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) GetUserByUsername(username string) (*models.HierarchyEntry, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM cached_users WHERE username = $1", username)
	entry, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return entry, nil
}

func (s *PostgresStore) GetUserByDisplayName(displayName string) (*models.HierarchyEntry, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM cached_users WHERE display_name = $1 LIMIT 1", displayName)
	entry, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by display name %s: %w", displayName, err)
	}
	return entry, nil
}

func (s *PostgresStore) SearchAccounts(query string, limit int) ([]models.Account, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := s.db.Query(`
		SELECT account_id, account_name, theater, industry_segment
		FROM cached_accounts
		WHERE lower(account_name) LIKE '%' || lower($1) || '%'
		ORDER BY account_name
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.AccountID, &a.AccountName, &a.Theater, &a.IndustrySegment); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

func (s *PostgresStore) TheaterIndustryLookups() (*models.TheaterIndustryLookup, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT theater, industry_segment
		FROM cached_accounts
		WHERE theater IS NOT NULL AND industry_segment IS NOT NULL
		ORDER BY theater, industry_segment
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query theater/industry lookups: %w", err)
	}
	defer rows.Close()

	lookup := &models.TheaterIndustryLookup{
		Theaters:            make([]string, 0),
		Industries:          make([]string, 0),
		IndustriesByTheater: make(map[string][]string),
	}
	seenTheater := make(map[string]bool)
	seenIndustry := make(map[string]bool)

	for rows.Next() {
		var theater, industry string
		if err := rows.Scan(&theater, &industry); err != nil {
			return nil, fmt.Errorf("failed to scan lookup row: %w", err)
		}
		if !seenTheater[theater] {
			seenTheater[theater] = true
			lookup.Theaters = append(lookup.Theaters, theater)
		}
		if !seenIndustry[industry] {
			seenIndustry[industry] = true
			lookup.Industries = append(lookup.Industries, industry)
		}
		lookup.IndustriesByTheater[theater] = append(lookup.IndustriesByTheater[theater], industry)
	}

	return lookup, rows.Err()
}

func (s *PostgresStore) ListBudgets(fiscalYear string) ([]models.Budget, error) {
	query := `
		SELECT budget_id, fiscal_year, theater, industry_segment, portfolio,
			budget_amount, allocated_amount, q1_budget, q2_budget, q3_budget, q4_budget
		FROM cached_budgets
	`
	args := make([]interface{}, 0, 1)
	if fiscalYear != "" {
		query += " WHERE fiscal_year = $1"
		args = append(args, fiscalYear)
	}
	query += " ORDER BY theater, industry_segment"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	budgets := make([]models.Budget, 0)
	for rows.Next() {
		var b models.Budget
		if err := rows.Scan(
			&b.BudgetID, &b.FiscalYear, &b.Theater, &b.IndustrySegment, &b.Portfolio,
			&b.BudgetAmount, &b.AllocatedAmount, &b.Q1Budget, &b.Q2Budget, &b.Q3Budget, &b.Q4Budget,
		); err != nil {
			return nil, fmt.Errorf("failed to scan budget row: %w", err)
		}
		budgets = append(budgets, b)
	}

	return budgets, rows.Err()
}

func (s *PostgresStore) ListOpportunityLinks(requestID int64) ([]models.OpportunityLink, error) {
	rows, err := s.db.Query(`
		SELECT request_id, opportunity_id, linked_by, linked_at
		FROM request_opportunities
		WHERE request_id = $1
		ORDER BY linked_at
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunity links for %d: %w", requestID, err)
	}
	defer rows.Close()

	links := make([]models.OpportunityLink, 0)
	for rows.Next() {
		var l models.OpportunityLink
		if err := rows.Scan(&l.RequestID, &l.OpportunityID, &l.LinkedBy, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan opportunity link row: %w", err)
		}
		links = append(links, l)
	}

	return links, rows.Err()
}

func (s *PostgresStore) InsertOpportunityLink(link models.OpportunityLink) error {
	_, err := s.db.Exec(`
		INSERT INTO request_opportunities (request_id, opportunity_id, linked_by, linked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id, opportunity_id) DO NOTHING
	`, link.RequestID, link.OpportunityID, link.LinkedBy, link.LinkedAt)
	if err != nil {
		return fmt.Errorf("failed to insert opportunity link: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteOpportunityLink(requestID int64, opportunityID string) error {
	_, err := s.db.Exec(`
		DELETE FROM request_opportunities
		WHERE request_id = $1 AND opportunity_id = $2
	`, requestID, opportunityID)
	if err != nil {
		return fmt.Errorf("failed to delete opportunity link: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertPendingSync(entry models.PendingSyncEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_sync (id, operation, request_id, payload, status, attempts, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.Operation, entry.RequestID, []byte(entry.Payload), entry.Status,
		entry.Attempts, entry.ErrorMessage, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pending sync entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPendingSync(id string) (*models.PendingSyncEntry, error) {
	var e models.PendingSyncEntry
	var payload []byte
	err := s.db.QueryRow(`
		SELECT id, operation, request_id, payload, status, attempts, error_message, created_at, updated_at
		FROM pending_sync
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Operation, &e.RequestID, &payload, &e.Status,
		&e.Attempts, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync entry %s: %w", id, err)
	}
	e.Payload = json.RawMessage(payload)
	return &e, nil
}

func (s *PostgresStore) UpdatePendingSync(id, status string, attempts int, errorMessage *string) error {
	_, err := s.db.Exec(`
		UPDATE pending_sync
		SET status = $2, attempts = $3, error_message = $4, updated_at = NOW()
		WHERE id = $1
	`, id, status, attempts, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update pending sync entry %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListPendingSync(limit int) ([]models.PendingSyncEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, operation, request_id, payload, status, attempts, error_message, created_at, updated_at
		FROM pending_sync
		WHERE status IN ('pending', 'failed')
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sync entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.PendingSyncEntry, 0)
	for rows.Next() {
		var e models.PendingSyncEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Operation, &e.RequestID, &payload, &e.Status,
			&e.Attempts, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending sync row: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
