package models

import "github.com/shopspring/decimal"

// Account is one row of the account lookup cache used for search and the
// theater/industry pickers.
type Account struct {
	AccountID       *string `json:"account_id"`
	AccountName     string  `json:"account_name"`
	Theater         *string `json:"theater"`
	IndustrySegment *string `json:"industry_segment"`
}

// Budget is a read-only annual budget row mirrored from the remote store.
type Budget struct {
	BudgetID        int64           `json:"budget_id"`
	FiscalYear      string          `json:"fiscal_year"`
	Theater         string          `json:"theater"`
	IndustrySegment string          `json:"industry_segment"`
	Portfolio       *string         `json:"portfolio"`
	BudgetAmount    decimal.Decimal `json:"budget_amount"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	Q1Budget        decimal.Decimal `json:"q1_budget"`
	Q2Budget        decimal.Decimal `json:"q2_budget"`
	Q3Budget        decimal.Decimal `json:"q3_budget"`
	Q4Budget        decimal.Decimal `json:"q4_budget"`
}

// TheaterIndustryLookup feeds the client-side pickers with distinct values
// observed in the account cache.
type TheaterIndustryLookup struct {
	Theaters            []string            `json:"theaters"`
	Industries          []string            `json:"industries"`
	IndustriesByTheater map[string][]string `json:"industries_by_theater"`
}
