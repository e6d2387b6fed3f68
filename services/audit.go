package services

import (
	"sort"
	"time"

	"github.com/tgregoire/invgov-backend/models"
)

// BuildHistory reconstructs the visible audit trail for a request from the
// milestone fields on the current record, one synthetic entry per populated
// timestamp, ordered ascending. There is no event log behind this; a
// withdraw-then-resubmit cycle overwrites the earlier submission's timestamp
// and the reconstructed history reflects only what the current record holds.
func BuildHistory(req *models.InvestmentRequest) []models.AuditEvent {
	events := make([]models.AuditEvent, 0, 8)

	events = append(events, models.AuditEvent{
		Event:     "created",
		Actor:     req.CreatedByName,
		Timestamp: req.CreatedAt,
	})

	if req.DraftAt != nil {
		events = append(events, models.AuditEvent{
			Event:     "draft_saved",
			Actor:     deref(req.DraftByName),
			Comment:   req.DraftComment,
			Timestamp: *req.DraftAt,
		})
	}

	if req.SubmittedAt != nil {
		events = append(events, models.AuditEvent{
			Event:     "submitted",
			Actor:     deref(req.SubmittedByName),
			Comment:   req.SubmittedComment,
			Timestamp: *req.SubmittedAt,
		})
	}

	appendApproval := func(event string, stamp models.ApprovalStamp) {
		if !stamp.IsSet() {
			return
		}
		events = append(events, models.AuditEvent{
			Event:     event,
			Actor:     deref(stamp.ApprovedBy),
			Title:     stamp.ApprovedByTitle,
			Comment:   stamp.Comments,
			Timestamp: *stamp.ApprovedAt,
		})
	}
	appendApproval("dm_approved", req.DM)
	appendApproval("rd_approved", req.RD)
	appendApproval("avp_approved", req.AVP)
	appendApproval("final_approved", req.GVP)

	if req.WithdrawnAt != nil {
		events = append(events, models.AuditEvent{
			Event:     "withdrawn",
			Actor:     deref(req.WithdrawnByName),
			Comment:   req.WithdrawnComment,
			Timestamp: *req.WithdrawnAt,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// timePtr is a small helper for building stamps in services and tests.
func timePtr(t time.Time) *time.Time {
	return &t
}
