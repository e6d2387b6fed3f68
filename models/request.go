package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request status values. DRAFT is initial; FINAL_APPROVED and DENIED are
// terminal; REJECTED is recoverable through a revise.
const (
	StatusDraft         = "DRAFT"
	StatusSubmitted     = "SUBMITTED"
	StatusDMApproved    = "DM_APPROVED"
	StatusRDApproved    = "RD_APPROVED"
	StatusAVPApproved   = "AVP_APPROVED"
	StatusFinalApproved = "FINAL_APPROVED"
	StatusRejected      = "REJECTED"
	StatusDenied        = "DENIED"
)

// ApprovalStamp holds the evidence recorded when one approval level signs
// off on a request.
type ApprovalStamp struct {
	ApprovedBy      *string    `json:"approved_by"`
	ApprovedByTitle *string    `json:"approved_by_title"`
	ApprovedAt      *time.Time `json:"approved_at"`
	Comments        *string    `json:"comments"`
}

// IsSet reports whether this level has recorded an approval.
func (s ApprovalStamp) IsSet() bool {
	return s.ApprovedAt != nil
}

// InvestmentRequest is the cached view of one approval document. A negative
// ID marks a provisional record that the remote system of record has not
// confirmed yet; the synchronizer remaps it to the authoritative positive ID
// once the remote create lands.
type InvestmentRequest struct {
	ID                   int64           `json:"request_id"`
	Title                string          `json:"request_title"`
	AccountID            *string         `json:"account_id"`
	AccountName          *string         `json:"account_name"`
	InvestmentType       *string         `json:"investment_type"`
	RequestedAmount      decimal.Decimal `json:"requested_amount"`
	Quarter              *string         `json:"investment_quarter"`
	BusinessJustification *string        `json:"business_justification"`
	ExpectedOutcome      *string         `json:"expected_outcome"`
	RiskAssessment       *string         `json:"risk_assessment"`
	ExpectedROI          *string         `json:"expected_roi"`
	OpportunityLinkText  *string         `json:"sfdc_opportunity_link"`

	CreatedBy           string    `json:"created_by"`
	CreatedByName       string    `json:"created_by_name"`
	CreatedByEmployeeID *int64    `json:"created_by_employee_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	Theater         *string `json:"theater"`
	IndustrySegment *string `json:"industry_segment"`

	Status               string `json:"status"`
	CurrentApprovalLevel int    `json:"current_approval_level"`

	NextApproverName  *string `json:"next_approver_name"`
	NextApproverTitle *string `json:"next_approver_title"`

	DM  ApprovalStamp `json:"dm"`
	RD  ApprovalStamp `json:"rd"`
	AVP ApprovalStamp `json:"avp"`
	GVP ApprovalStamp `json:"gvp"`

	WithdrawnBy      *string    `json:"withdrawn_by"`
	WithdrawnByName  *string    `json:"withdrawn_by_name"`
	WithdrawnAt      *time.Time `json:"withdrawn_at"`
	WithdrawnComment *string    `json:"withdrawn_comment"`

	SubmittedComment *string    `json:"submitted_comment"`
	SubmittedByName  *string    `json:"submitted_by_name"`
	SubmittedAt      *time.Time `json:"submitted_at"`

	DraftComment *string    `json:"draft_comment"`
	DraftByName  *string    `json:"draft_by_name"`
	DraftAt      *time.Time `json:"draft_at"`
}

// IsProvisional reports whether the record still carries a locally assigned
// temporary ID.
func (r *InvestmentRequest) IsProvisional() bool {
	return r.ID < 0
}

// StampForLevel returns a pointer to the approval stamp for levels 1-4
// (DM, RD, AVP, GVP), or nil for anything else.
func (r *InvestmentRequest) StampForLevel(level int) *ApprovalStamp {
	switch level {
	case 1:
		return &r.DM
	case 2:
		return &r.RD
	case 3:
		return &r.AVP
	case 4:
		return &r.GVP
	}
	return nil
}

// ClearApprovals nulls every per-level approval stamp. Used by withdraw,
// which erases prior approval evidence; send-back deliberately does not
// call this.
func (r *InvestmentRequest) ClearApprovals() {
	r.DM = ApprovalStamp{}
	r.RD = ApprovalStamp{}
	r.AVP = ApprovalStamp{}
	r.GVP = ApprovalStamp{}
}

// RequestFilter narrows a request listing. Empty fields match everything.
type RequestFilter struct {
	Theater         string
	IndustrySegment string
	Quarter         string
	Status          string
}

// RequestSummary aggregates portfolio-level counts and totals served by the
// summary endpoint.
type RequestSummary struct {
	TotalRequests            int             `json:"total_requests"`
	TotalDraft               int             `json:"total_draft"`
	TotalInFlight            int             `json:"total_submitted"`
	TotalApproved            int             `json:"total_approved"`
	TotalRejected            int             `json:"total_rejected"`
	TotalPendingMyApproval   int             `json:"total_pending_my_approval"`
	TotalInvestmentRequested decimal.Decimal `json:"total_investment_requested"`
	TotalInvestmentApproved  decimal.Decimal `json:"total_investment_approved"`
}
