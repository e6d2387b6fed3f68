package models

import "time"

// OpportunityLink associates a request with an external CRM opportunity.
// Links do not participate in the approval state machine; they are remapped
// together with the request row when a provisional ID is promoted.
type OpportunityLink struct {
	RequestID     int64     `json:"request_id"`
	OpportunityID string    `json:"opportunity_id"`
	LinkedBy      string    `json:"linked_by"`
	LinkedAt      time.Time `json:"linked_at"`
}
