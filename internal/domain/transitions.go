package domain

// memberTransitions lists the status moves a member may make through the regular
// review flow. Operator overrides (reset, submit on behalf) bypass this table.
var memberTransitions = map[MemberStatus][]MemberStatus{
	MemberStatusPending:  {MemberStatusApproved, MemberStatusRejected},
	MemberStatusRejected: {MemberStatusPending},
}

// CanTransition reports whether from -> to is an allowed review transition.
func CanTransition(from, to MemberStatus) bool {
	for _, s := range memberTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AmendmentStatus is the decision state of an amendment request.
type AmendmentStatus string

const (
	AmendmentPending  AmendmentStatus = "PENDING"
	AmendmentApproved AmendmentStatus = "APPROVED"
	AmendmentRejected AmendmentStatus = "REJECTED"
)

// Decided reports whether the amendment has left PENDING. Decided amendments are immutable.
func (s AmendmentStatus) Decided() bool {
	return s == AmendmentApproved || s == AmendmentRejected
}
