package domain

import (
	"sort"
	"strings"
)

// DiffFields returns the fields whose candidate value is non-empty and differs from
// the current value. Candidate keys absent from current compare against "".
// The result is ordered by field name.
func DiffFields(current, candidate FieldValues) []FieldChange {
	out := make([]FieldChange, 0)
	for f, v := range candidate {
		after := strings.TrimSpace(v)
		if after == "" {
			continue
		}
		before := current[f]
		if after == before {
			continue
		}
		out = append(out, FieldChange{Field: f, Before: before, After: after})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// BeforeValues returns the pre-change values keyed by field.
func BeforeValues(changes []FieldChange) FieldValues {
	out := make(FieldValues, len(changes))
	for _, c := range changes {
		out[c.Field] = c.Before
	}
	return out
}

// AfterValues returns the post-change values keyed by field.
func AfterValues(changes []FieldChange) FieldValues {
	out := make(FieldValues, len(changes))
	for _, c := range changes {
		out[c.Field] = c.After
	}
	return out
}
