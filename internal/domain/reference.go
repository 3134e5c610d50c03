package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Counter families used for reference allocation.
const (
	SequenceMemberReference    = "member_reference"
	SequenceFormCode           = "form_code"
	SequenceAmendmentReference = "amendment_reference"
)

// FormCodeScope returns the form-code counter scope for a role. Operators draw from
// their own sequence so member form codes stay contiguous.
func FormCodeScope(r Role) string {
	if r.IsOperator() {
		return "operator"
	}
	return "member"
}

var (
	membershipRefPattern = regexp.MustCompile(`^(\d{4,})/([A-Z0-9]+)/([A-Z]{3})$`)
	formCodePattern      = regexp.MustCompile(`^N°(\d{3,})/([A-Z0-9-]+)/(\d{4})$`)
	amendmentRefPattern  = regexp.MustCompile(`^AMD-(\d{4})-(\d{3,})$`)
)

// FormatMembershipReference renders "<seq4>/<jurisdiction>/<roleTag>", e.g. "0042/DKR/MBR".
func FormatMembershipReference(seq int64, jurisdiction string, r Role) string {
	return fmt.Sprintf("%04d/%s/%s", seq, strings.ToUpper(jurisdiction), r.Tag())
}

// ParseMembershipReference returns the sequence number embedded in a membership reference.
func ParseMembershipReference(ref string) (int64, bool) {
	m := membershipRefPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatFormCode renders "N°<seq3>/<segment>/<year>", e.g. "N°007/ASSOC/2026".
func FormatFormCode(seq int64, segment string, year int) string {
	return fmt.Sprintf("N°%03d/%s/%04d", seq, strings.ToUpper(segment), year)
}

// IsFormCode reports whether s has the form-code shape.
func IsFormCode(s string) bool {
	return formCodePattern.MatchString(s)
}

// FormatAmendmentReference renders "AMD-<year>-<seq3>", e.g. "AMD-2025-007".
func FormatAmendmentReference(year int, seq int64) string {
	return fmt.Sprintf("AMD-%04d-%03d", year, seq)
}

// ParseAmendmentReference splits an amendment reference into year and sequence.
func ParseAmendmentReference(ref string) (year int, seq int64, ok bool) {
	m := amendmentRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return y, n, true
}
