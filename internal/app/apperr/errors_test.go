package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAs_UnwrapsWrappedError(t *testing.T) {
	t.Parallel()

	base := Conflict(CodeAlreadyApproved, "member is already approved").WithHints("submit an amendment instead")
	wrapped := fmt.Errorf("approve: %w", base)

	ae, ok := As(wrapped)
	if !ok {
		t.Fatalf("expected *Error")
	}
	if ae.Status != http.StatusConflict || ae.Kind != KindConflict || ae.Code != CodeAlreadyApproved {
		t.Fatalf("unexpected error: %+v", ae)
	}
	if len(ae.Hints) != 1 {
		t.Fatalf("expected one hint, got %v", ae.Hints)
	}
	if !HasCode(wrapped, CodeAlreadyApproved) || HasCode(wrapped, CodeNotSubmitted) {
		t.Fatalf("HasCode mismatch")
	}
}

func TestError_MessageFallsBackToCode(t *testing.T) {
	t.Parallel()

	e := &Error{Code: CodeForbidden}
	if e.Error() != CodeForbidden {
		t.Fatalf("unexpected message %q", e.Error())
	}
	if Field("reason", "too short").Details["reason"] != "too short" {
		t.Fatalf("expected field detail")
	}
}
