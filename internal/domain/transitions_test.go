package domain

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := [][2]MemberStatus{
		{MemberStatusPending, MemberStatusApproved},
		{MemberStatusPending, MemberStatusRejected},
		{MemberStatusRejected, MemberStatusPending},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}

	denied := [][2]MemberStatus{
		{MemberStatusApproved, MemberStatusPending},
		{MemberStatusApproved, MemberStatusRejected},
		{MemberStatusRejected, MemberStatusApproved},
		{MemberStatusApproved, MemberStatusApproved},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be denied", tr[0], tr[1])
		}
	}
}

func TestAmendmentRedacted(t *testing.T) {
	t.Parallel()

	reviewer := MemberID("op-1")
	comment := "looks fine"
	a := Amendment{Status: AmendmentPending, ReviewerID: &reviewer, ReviewComment: &comment}
	if r := a.Redacted(); r.ReviewerID != nil || r.ReviewComment != nil {
		t.Fatalf("expected pending amendment to be redacted: %+v", r)
	}
	a.Status = AmendmentApproved
	if r := a.Redacted(); r.ReviewerID == nil || r.ReviewComment == nil {
		t.Fatalf("expected decided amendment to keep reviewer fields: %+v", r)
	}
}
