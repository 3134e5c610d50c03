package domain

import "time"

// FormSnapshot is the immutable record of what the applicant submitted.
type FormSnapshot struct {
	NationalID  string        `json:"nationalId"`
	Profile     Profile       `json:"profile"`
	DocumentURL string        `json:"documentUrl,omitempty"`
	Documents   []DocumentRef `json:"documents,omitempty"`
}

// MembershipForm is one version of a member's application form.
//
// A new Version is created when the member has no active form or was APPROVED before
// the submission. Otherwise the active version is updated in place and Revision grows.
type MembershipForm struct {
	ID       FormID
	MemberID MemberID
	Version  int
	Revision int
	Active   bool

	Snapshot    FormSnapshot
	SubmittedBy *MemberID

	SubmittedAt time.Time
	UpdatedAt   time.Time
}
