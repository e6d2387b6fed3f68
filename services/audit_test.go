package services

import (
	"testing"
	"time"

	"github.com/tgregoire/invgov-backend/models"
)

func TestBuildHistoryEmitsOnlyPopulatedMilestones(t *testing.T) {
	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	req := &models.InvestmentRequest{
		ID:            1,
		CreatedByName: "Jane Doe",
		CreatedAt:     created,
		Status:        models.StatusDraft,
	}

	events := BuildHistory(req)
	if len(events) != 1 {
		t.Fatalf("got %d events for a bare draft, want 1", len(events))
	}
	if events[0].Event != "created" || events[0].Actor != "Jane Doe" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
}

func TestBuildHistoryFullChainOrdered(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	name := "Jane Doe"
	dm, rd, avp, gvp := "Bob DM", "Carol RD", "Dan AVP", "Eve GVP"

	req := &models.InvestmentRequest{
		ID:              1,
		CreatedByName:   name,
		CreatedAt:       base,
		Status:          models.StatusFinalApproved,
		SubmittedByName: &name,
		SubmittedAt:     timePtr(base.Add(1 * time.Hour)),
		DM:              models.ApprovalStamp{ApprovedBy: &dm, ApprovedAt: timePtr(base.Add(2 * time.Hour))},
		RD:              models.ApprovalStamp{ApprovedBy: &rd, ApprovedAt: timePtr(base.Add(3 * time.Hour))},
		AVP:             models.ApprovalStamp{ApprovedBy: &avp, ApprovedAt: timePtr(base.Add(4 * time.Hour))},
		GVP:             models.ApprovalStamp{ApprovedBy: &gvp, ApprovedAt: timePtr(base.Add(5 * time.Hour))},
	}

	events := BuildHistory(req)
	want := []string{"created", "submitted", "dm_approved", "rd_approved", "avp_approved", "final_approved"}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, event := range events {
		if event.Event != want[i] {
			t.Errorf("event %d is %q, want %q", i, event.Event, want[i])
		}
	}
}

// A withdraw-then-resubmit cycle overwrites the first submission's timestamp
// on the record, so the reconstructed history shows the second submission
// only. That lossiness is the contract, not a defect to correct.
func TestBuildHistoryIsLossyAcrossResubmission(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	name := "Jane Doe"

	req := &models.InvestmentRequest{
		ID:              1,
		CreatedByName:   name,
		CreatedAt:       base,
		Status:          models.StatusSubmitted,
		WithdrawnByName: &name,
		WithdrawnAt:     timePtr(base.Add(2 * time.Hour)),
		// Resubmitted after the withdrawal; the first submission timestamp
		// is gone from the record.
		SubmittedByName: &name,
		SubmittedAt:     timePtr(base.Add(3 * time.Hour)),
	}

	events := BuildHistory(req)
	want := []string{"created", "withdrawn", "submitted"}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, event := range events {
		if event.Event != want[i] {
			t.Errorf("event %d is %q, want %q", i, event.Event, want[i])
		}
	}
}

func TestBuildHistoryCarriesCommentsAndTitles(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	name := "Jane Doe"
	dm := "Bob DM"
	dmTitle := "District Manager"
	comment := "approved with reduced scope"

	req := &models.InvestmentRequest{
		ID:            1,
		CreatedByName: name,
		CreatedAt:     base,
		Status:        models.StatusDMApproved,
		DM: models.ApprovalStamp{
			ApprovedBy:      &dm,
			ApprovedByTitle: &dmTitle,
			ApprovedAt:      timePtr(base.Add(time.Hour)),
			Comments:        &comment,
		},
	}

	events := BuildHistory(req)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	approval := events[1]
	if approval.Title == nil || *approval.Title != dmTitle {
		t.Error("approver title not carried into the event")
	}
	if approval.Comment == nil || *approval.Comment != comment {
		t.Error("approval comment not carried into the event")
	}
}
