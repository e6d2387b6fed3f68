package models

import "time"

// Approval step statuses surfaced by the chain views. A step is APPROVED once
// the record carries its stamp, CURRENT while the request is waiting on it,
// and PENDING otherwise.
const (
	StepStatusApproved = "APPROVED"
	StepStatusCurrent  = "CURRENT"
	StepStatusPending  = "PENDING"
)

// ApprovalStep is one hop of an approval chain, resolved by walking manager
// links in the cached hierarchy up to the final approver.
type ApprovalStep struct {
	Order         int        `json:"step_order"`
	ApproverName  string     `json:"approver_name"`
	ApproverTitle *string    `json:"approver_title"`
	Role          string     `json:"role"`
	IsFinalStep   bool       `json:"is_final_step"`
	Status        string     `json:"status"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	Comments      *string    `json:"comments,omitempty"`
}
