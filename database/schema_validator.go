package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// SchemaValidator checks that the cache schema matches what the data layer
// expects and repairs missing indexes.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator instance
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidationResult represents the result of validating a single table
type ValidationResult struct {
	TableName      string
	IsValid        bool
	MissingColumns []string
	MissingIndexes []string
}

// requiredTables maps each cache table to the columns the queries depend on.
var requiredTables = map[string][]string{
	"cached_users": {
		"username", "employee_id", "display_name", "title", "role",
		"theater", "industry_segment", "manager_name", "approval_level",
		"is_final_approver", "refreshed_at",
	},
	"cached_requests": {
		"request_id", "request_title", "account_id", "account_name",
		"investment_type", "requested_amount", "investment_quarter",
		"business_justification", "expected_outcome", "risk_assessment",
		"expected_roi", "sfdc_opportunity_link",
		"created_by", "created_by_name", "created_by_employee_id",
		"created_at", "updated_at", "theater", "industry_segment",
		"status", "current_approval_level",
		"next_approver_name", "next_approver_title",
		"dm_approved_by", "dm_approved_by_title", "dm_approved_at", "dm_comments",
		"rd_approved_by", "rd_approved_by_title", "rd_approved_at", "rd_comments",
		"avp_approved_by", "avp_approved_by_title", "avp_approved_at", "avp_comments",
		"gvp_approved_by", "gvp_approved_by_title", "gvp_approved_at", "gvp_comments",
		"withdrawn_by", "withdrawn_by_name", "withdrawn_at", "withdrawn_comment",
		"submitted_comment", "submitted_by_name", "submitted_at",
		"draft_comment", "draft_by_name", "draft_at",
	},
	"cached_accounts": {
		"account_id", "account_name", "theater", "industry_segment",
	},
	"cached_budgets": {
		"budget_id", "fiscal_year", "theater", "industry_segment", "portfolio",
		"budget_amount", "allocated_amount",
		"q1_budget", "q2_budget", "q3_budget", "q4_budget",
	},
	"request_opportunities": {
		"request_id", "opportunity_id", "linked_by", "linked_at",
	},
	"pending_sync": {
		"id", "operation", "request_id", "payload", "status",
		"attempts", "error_message", "created_at", "updated_at",
	},
}

// requiredIndexes holds the creation statements for indexes the hot queries need.
var requiredIndexes = map[string]string{
	"idx_cached_requests_status":      "CREATE INDEX IF NOT EXISTS idx_cached_requests_status ON cached_requests(status)",
	"idx_cached_requests_theater":     "CREATE INDEX IF NOT EXISTS idx_cached_requests_theater ON cached_requests(theater, industry_segment)",
	"idx_cached_requests_quarter":     "CREATE INDEX IF NOT EXISTS idx_cached_requests_quarter ON cached_requests(investment_quarter)",
	"idx_cached_requests_created_by":  "CREATE INDEX IF NOT EXISTS idx_cached_requests_created_by ON cached_requests(created_by)",
	"idx_cached_requests_next_approv": "CREATE INDEX IF NOT EXISTS idx_cached_requests_next_approv ON cached_requests(next_approver_name) WHERE next_approver_name IS NOT NULL",
	"idx_cached_users_role":           "CREATE INDEX IF NOT EXISTS idx_cached_users_role ON cached_users(role, theater, industry_segment)",
	"idx_cached_accounts_name":        "CREATE INDEX IF NOT EXISTS idx_cached_accounts_name ON cached_accounts(lower(account_name))",
	"idx_cached_budgets_scope":        "CREATE INDEX IF NOT EXISTS idx_cached_budgets_scope ON cached_budgets(theater, industry_segment, fiscal_year)",
	"idx_request_opportunities_req":   "CREATE INDEX IF NOT EXISTS idx_request_opportunities_req ON request_opportunities(request_id)",
	"idx_pending_sync_status":         "CREATE INDEX IF NOT EXISTS idx_pending_sync_status ON pending_sync(status, created_at)",
	"idx_pending_sync_request":        "CREATE INDEX IF NOT EXISTS idx_pending_sync_request ON pending_sync(request_id)",
}

// ValidateSchema checks all cache tables and returns per-table results.
func (v *SchemaValidator) ValidateSchema() ([]ValidationResult, error) {
	results := make([]ValidationResult, 0, len(requiredTables))

	existingIndexes, err := v.getAllIndexes()
	if err != nil {
		return nil, fmt.Errorf("failed to list existing indexes: %w", err)
	}

	for tableName, requiredColumns := range requiredTables {
		result := ValidationResult{TableName: tableName, IsValid: true}

		exists, err := v.tableExists(tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to check if table %s exists: %w", tableName, err)
		}
		if !exists {
			result.IsValid = false
			result.MissingColumns = append(result.MissingColumns, "entire table missing")
			results = append(results, result)
			continue
		}

		existingColumns, err := v.getTableColumns(tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}

		for _, columnName := range requiredColumns {
			if _, ok := existingColumns[columnName]; !ok {
				result.IsValid = false
				result.MissingColumns = append(result.MissingColumns, columnName)
			}
		}

		for indexName := range requiredIndexes {
			if strings.Contains(indexName, strings.TrimPrefix(tableName, "cached_")) && !containsString(existingIndexes, indexName) {
				result.MissingIndexes = append(result.MissingIndexes, indexName)
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// RepairIndexes creates any indexes that are missing.
func (v *SchemaValidator) RepairIndexes() error {
	existingIndexes, err := v.getAllIndexes()
	if err != nil {
		return fmt.Errorf("failed to list existing indexes: %w", err)
	}

	for indexName, statement := range requiredIndexes {
		if containsString(existingIndexes, indexName) {
			continue
		}

		logrus.WithField("index_name", indexName).Info("Creating missing index")
		if _, err := v.db.Exec(statement); err != nil {
			return fmt.Errorf("failed to create index %s: %w", indexName, err)
		}
	}

	return nil
}

// ValidateAndRepair runs validation at startup and repairs what it safely can.
// Missing columns are reported, not repaired; the schema file owns those.
func ValidateAndRepair() error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	validator := NewSchemaValidator(DB)

	results, err := validator.ValidateSchema()
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}

	valid := true
	for _, result := range results {
		if !result.IsValid {
			valid = false
			logrus.WithFields(logrus.Fields{
				"table":           result.TableName,
				"missing_columns": result.MissingColumns,
			}).Warn("Schema validation found issues")
		}
	}
	if valid {
		logrus.Info("Schema validation passed successfully")
	}

	if err := validator.RepairIndexes(); err != nil {
		return fmt.Errorf("failed to repair indexes: %w", err)
	}

	return nil
}

func (v *SchemaValidator) tableExists(tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := v.db.QueryRow(query, tableName).Scan(&exists)
	return exists, err
}

func (v *SchemaValidator) getTableColumns(tableName string) (map[string]string, error) {
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`
	rows, err := v.db.Query(query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var columnName, dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return nil, err
		}
		columns[columnName] = dataType
	}

	return columns, rows.Err()
}

func (v *SchemaValidator) getAllIndexes() ([]string, error) {
	query := `
		SELECT indexname
		FROM pg_indexes
		WHERE schemaname = 'public'
	`
	rows, err := v.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var indexName string
		if err := rows.Scan(&indexName); err != nil {
			return nil, err
		}
		indexes = append(indexes, indexName)
	}

	return indexes, rows.Err()
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
