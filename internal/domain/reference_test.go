package domain

import "testing"

func TestFormatAmendmentReference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		year int
		seq  int64
		want string
	}{
		{2025, 1, "AMD-2025-001"},
		{2025, 7, "AMD-2025-007"},
		{2025, 123, "AMD-2025-123"},
		{2026, 1234, "AMD-2026-1234"},
	}
	for _, c := range cases {
		got := FormatAmendmentReference(c.year, c.seq)
		if got != c.want {
			t.Fatalf("FormatAmendmentReference(%d, %d) = %q, want %q", c.year, c.seq, got, c.want)
		}
		y, n, ok := ParseAmendmentReference(got)
		if !ok || y != c.year || n != c.seq {
			t.Fatalf("ParseAmendmentReference(%q) = %d, %d, %v", got, y, n, ok)
		}
	}
}

func TestFormatFormCode(t *testing.T) {
	t.Parallel()

	got := FormatFormCode(7, "assoc", 2026)
	if got != "N°007/ASSOC/2026" {
		t.Fatalf("unexpected form code %q", got)
	}
	if !IsFormCode(got) {
		t.Fatalf("expected %q to match the form-code shape", got)
	}
	if IsFormCode("7/ASSOC/2026") {
		t.Fatalf("expected malformed code to be rejected")
	}
}

func TestMembershipReference(t *testing.T) {
	t.Parallel()

	ref := FormatMembershipReference(42, "dkr", RoleMember)
	if ref != "0042/DKR/MBR" {
		t.Fatalf("unexpected reference %q", ref)
	}
	n, ok := ParseMembershipReference(ref)
	if !ok || n != 42 {
		t.Fatalf("ParseMembershipReference(%q) = %d, %v", ref, n, ok)
	}
	if _, ok := ParseMembershipReference("AMD-2025-001"); ok {
		t.Fatalf("expected amendment reference to be rejected")
	}
	if got := FormatMembershipReference(3, "DKR", RolePresident); got != "0003/DKR/PRS" {
		t.Fatalf("unexpected operator reference %q", got)
	}
}
