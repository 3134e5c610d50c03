package domain

import "time"

// Amendment is a member's request to change profile fields after approval.
type Amendment struct {
	ID            AmendmentID
	Reference     string
	MemberID      MemberID
	Changes       []FieldChange
	Justification string
	Documents     []DocumentRef

	Status          AmendmentStatus
	ReviewerID      *MemberID
	ReviewComment   *string
	RejectionReason *string

	SubmittedAt time.Time
	DecidedAt   *time.Time
}

// Before returns the snapshot of the changed fields prior to the request.
func (a Amendment) Before() FieldValues { return BeforeValues(a.Changes) }

// After returns the requested values of the changed fields.
func (a Amendment) After() FieldValues { return AfterValues(a.Changes) }

// Redacted hides reviewer-only fields until the amendment is decided.
func (a Amendment) Redacted() Amendment {
	if a.Status.Decided() {
		return a
	}
	a.ReviewerID = nil
	a.ReviewComment = nil
	a.RejectionReason = nil
	return a
}
