package services

import (
	"time"

	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/shared"
)

// Workflow actions accepted by the state machine.
const (
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionWithdraw = "withdraw"
	ActionSendBack = "send_back"
	ActionReject   = "reject"
	ActionDeny     = "deny"
	ActionRevise   = "revise"
)

// TransitionInput carries everything a transition needs besides the record
// itself. NextApproverName/Title are resolved by the caller before submit;
// keeping the lookup out of here keeps the machine pure.
type TransitionInput struct {
	Action  string
	Actor   models.Identity
	Comment *string

	// SubmitNow applies only to revise: true resubmits directly, false
	// returns the record to DRAFT.
	SubmitNow bool

	NextApproverName  *string
	NextApproverTitle *string

	Now time.Time
}

// inFlight reports whether the status sits between submission and a terminal
// or recoverable outcome. Withdraw, send-back, reject and deny are all only
// legal from these states.
func inFlight(status string) bool {
	switch status {
	case models.StatusSubmitted, models.StatusDMApproved, models.StatusRDApproved, models.StatusAVPApproved:
		return true
	}
	return false
}

// ApplyTransition validates the requested action against the record's current
// status and, if legal, mutates the record in place. An illegal pair returns
// an error and leaves the record untouched. No actor identity check happens
// here: any authenticated actor may act at any level, and the legality of the
// chain rests entirely on the status transitions.
func ApplyTransition(req *models.InvestmentRequest, in TransitionInput) error {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	switch in.Action {
	case ActionSubmit:
		if req.Status != models.StatusDraft {
			return shared.NewIllegalTransition(in.Action, req.Status)
		}
		applySubmit(req, in)

	case ActionApprove:
		level, next := nextApprovalStep(req.Status)
		if level == 0 {
			return shared.NewIllegalTransition(in.Action, req.Status)
		}
		stamp := req.StampForLevel(level)
		name := in.Actor.DisplayName
		title := in.Actor.Title
		stamp.ApprovedBy = &name
		stamp.ApprovedByTitle = &title
		at := in.Now
		stamp.ApprovedAt = &at
		stamp.Comments = in.Comment
		req.Status = next
		req.CurrentApprovalLevel = level + 1

	case ActionWithdraw:
		if !inFlight(req.Status) {
			return shared.NewIllegalTransition(in.Action, req.Status)
		}
		req.ClearApprovals()
		req.Status = models.StatusDraft
		req.CurrentApprovalLevel = 0
		req.NextApproverName = nil
		req.NextApproverTitle = nil
		username := in.Actor.Username
		name := in.Actor.DisplayName
		at := in.Now
		req.WithdrawnBy = &username
		req.WithdrawnByName = &name
		req.WithdrawnAt = &at
		req.WithdrawnComment = in.Comment

	case ActionSendBack:
		if !inFlight(req.Status) {
			return shared.NewIllegalTransition(in.Action, req.Status)
		}
		// Unlike withdraw, prior approval evidence survives; the audit
		// trail must still show who already signed off.
		req.Status = models.StatusDraft
		req.CurrentApprovalLevel = 0
		req.NextApproverName = nil
		req.NextApproverTitle = nil
		req.GVP.Comments = in.Comment

	case ActionReject:
		if !inFlight(req.Status) {
			return shared.NewIllegalTransition(in.Action, req.Status)
		}
		req.Status = models.StatusRejected

	case ActionDeny:
		if !inFlight(req.Status) {
			return shared.NewIllegalTransition(in.Action, req.Status)
		}
		req.Status = models.StatusDenied
		req.GVP.Comments = in.Comment

	case ActionRevise:
		if req.Status != models.StatusRejected {
			return shared.NewIllegalTransition(in.Action, req.Status)
		}
		if in.SubmitNow {
			// Resubmission bypasses DRAFT entirely.
			applySubmit(req, in)
		} else {
			req.Status = models.StatusDraft
			req.CurrentApprovalLevel = 0
			name := in.Actor.DisplayName
			at := in.Now
			req.DraftByName = &name
			req.DraftAt = &at
			req.DraftComment = in.Comment
		}

	default:
		return shared.NewIllegalTransition(in.Action, req.Status)
	}

	req.UpdatedAt = in.Now
	return nil
}

func applySubmit(req *models.InvestmentRequest, in TransitionInput) {
	req.Status = models.StatusSubmitted
	req.CurrentApprovalLevel = 1
	name := in.Actor.DisplayName
	at := in.Now
	req.SubmittedByName = &name
	req.SubmittedAt = &at
	req.SubmittedComment = in.Comment
	if in.NextApproverName != nil {
		req.NextApproverName = in.NextApproverName
		req.NextApproverTitle = in.NextApproverTitle
	}
}

// nextApprovalStep maps an approvable status to the level that signs next and
// the resulting status. A zero level means approve is not legal from there.
func nextApprovalStep(status string) (int, string) {
	switch status {
	case models.StatusSubmitted:
		return 1, models.StatusDMApproved
	case models.StatusDMApproved:
		return 2, models.StatusRDApproved
	case models.StatusRDApproved:
		return 3, models.StatusAVPApproved
	case models.StatusAVPApproved:
		return 4, models.StatusFinalApproved
	}
	return 0, ""
}
