package domain

import "time"

// AuditAction is the stable code recorded for a state-changing action.
type AuditAction string

const (
	AuditApplicationSubmitted AuditAction = "member.application_submitted"
	AuditMemberProvisioned    AuditAction = "member.provisioned"
	AuditIdentifierIssued     AuditAction = "member.identifier_issued"
	AuditFormSubmitted        AuditAction = "member.form_submitted"
	AuditMemberApproved       AuditAction = "member.approved"
	AuditMemberRejected       AuditAction = "member.rejected"
	AuditSubmissionReset      AuditAction = "member.submission_reset"
	AuditMemberDeactivated    AuditAction = "member.deactivated"
	AuditMemberReactivated    AuditAction = "member.reactivated"
	AuditPasswordChanged      AuditAction = "member.password_changed"
	AuditOperatorBootstrapped AuditAction = "member.operator_bootstrapped"
	AuditAmendmentSubmitted   AuditAction = "amendment.submitted"
	AuditAmendmentApproved    AuditAction = "amendment.approved"
	AuditAmendmentRejected    AuditAction = "amendment.rejected"
)

// AuditEntry is an append-only record of a state-changing action.
type AuditEntry struct {
	ID        AuditEntryID
	ActorID   *MemberID
	MemberID  *MemberID
	Action    AuditAction
	Details   map[string]any
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	MemberID MemberID
	Subject  SubjectID
	Role     Role
}

// IsOperator reports whether the actor carries an operator identity.
func (a Actor) IsOperator() bool {
	return a.MemberID != "" && a.Role.IsOperator()
}
