package domain

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ProfileField names one amendable profile field. Values double as JSON keys.
type ProfileField string

const (
	FieldLastName         ProfileField = "lastName"
	FieldFirstName        ProfileField = "firstName"
	FieldEmail            ProfileField = "email"
	FieldPhone            ProfileField = "phone"
	FieldAddress          ProfileField = "address"
	FieldProfession       ProfileField = "profession"
	FieldResidenceCity    ProfileField = "residenceCity"
	FieldEmployer         ProfileField = "employer"
	FieldIDDocumentType   ProfileField = "idDocumentType"
	FieldIDDocumentNumber ProfileField = "idDocumentNumber"
	FieldIDDocumentIssued ProfileField = "idDocumentIssueDate"
	FieldSpouseName       ProfileField = "spouseName"
	FieldChildrenCount    ProfileField = "childrenCount"
	FieldPhotoRef         ProfileField = "photoRef"
	FieldSignatureRef     ProfileField = "signatureRef"
)

// DateLayout is the textual form of date-valued profile fields.
const DateLayout = "2006-01-02"

// FieldValues is the textual projection of a profile, keyed by field.
type FieldValues map[ProfileField]string

// FieldChange is one entry of an amendment diff.
type FieldChange struct {
	Field  ProfileField `json:"field"`
	Before string       `json:"before"`
	After  string       `json:"after"`
}

type fieldAccessor struct {
	get func(p Profile) string
	set func(p *Profile, v string) error
}

func stringField(ptr func(p *Profile) *string) fieldAccessor {
	return fieldAccessor{
		get: func(p Profile) string { return *ptr(&p) },
		set: func(p *Profile, v string) error {
			*ptr(p) = v
			return nil
		},
	}
}

var profileFields = map[ProfileField]fieldAccessor{
	FieldLastName:         stringField(func(p *Profile) *string { return &p.LastName }),
	FieldFirstName:        stringField(func(p *Profile) *string { return &p.FirstName }),
	FieldEmail:            stringField(func(p *Profile) *string { return &p.Email }),
	FieldPhone:            stringField(func(p *Profile) *string { return &p.Phone }),
	FieldAddress:          stringField(func(p *Profile) *string { return &p.Address }),
	FieldProfession:       stringField(func(p *Profile) *string { return &p.Profession }),
	FieldResidenceCity:    stringField(func(p *Profile) *string { return &p.ResidenceCity }),
	FieldEmployer:         stringField(func(p *Profile) *string { return &p.Employer }),
	FieldIDDocumentType:   stringField(func(p *Profile) *string { return &p.IDDocumentType }),
	FieldIDDocumentNumber: stringField(func(p *Profile) *string { return &p.IDDocumentNumber }),
	FieldSpouseName:       stringField(func(p *Profile) *string { return &p.SpouseName }),
	FieldPhotoRef:         stringField(func(p *Profile) *string { return &p.PhotoRef }),
	FieldSignatureRef:     stringField(func(p *Profile) *string { return &p.SignatureRef }),
	FieldIDDocumentIssued: {
		get: func(p Profile) string {
			if p.IDDocumentIssued == nil {
				return ""
			}
			return p.IDDocumentIssued.Format(DateLayout)
		},
		set: func(p *Profile, v string) error {
			if v == "" {
				p.IDDocumentIssued = nil
				return nil
			}
			t, err := time.Parse(DateLayout, v)
			if err != nil {
				return fmt.Errorf("must be a date formatted YYYY-MM-DD")
			}
			p.IDDocumentIssued = &t
			return nil
		},
	},
	FieldChildrenCount: {
		get: func(p Profile) string {
			if p.ChildrenCount == nil {
				return ""
			}
			return strconv.Itoa(*p.ChildrenCount)
		},
		set: func(p *Profile, v string) error {
			if v == "" {
				p.ChildrenCount = nil
				return nil
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("must be a non-negative integer")
			}
			p.ChildrenCount = &n
			return nil
		},
	},
}

// KnownField reports whether f names an amendable profile field.
func KnownField(f ProfileField) bool {
	_, ok := profileFields[f]
	return ok
}

// ProfileFieldNames returns every amendable field in a stable order.
func ProfileFieldNames() []ProfileField {
	out := make([]ProfileField, 0, len(profileFields))
	for f := range profileFields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fields projects the profile to its textual field map.
func (p Profile) Fields() FieldValues {
	out := make(FieldValues, len(profileFields))
	for f, acc := range profileFields {
		out[f] = acc.get(p)
	}
	return out
}

// Value returns the textual value of one field.
func (p Profile) Value(f ProfileField) string {
	acc, ok := profileFields[f]
	if !ok {
		return ""
	}
	return acc.get(p)
}

// Apply returns a copy of p with each change's After value written back.
// Date and integer fields are parsed from their textual form.
func (p Profile) Apply(changes []FieldChange) (Profile, error) {
	out := p.clone()
	for _, c := range changes {
		acc, ok := profileFields[c.Field]
		if !ok {
			return Profile{}, fmt.Errorf("unknown profile field %q", c.Field)
		}
		if err := acc.set(&out, c.After); err != nil {
			return Profile{}, fmt.Errorf("%s: %w", c.Field, err)
		}
	}
	return out, nil
}

func (p Profile) clone() Profile {
	out := p
	if p.IDDocumentIssued != nil {
		t := *p.IDDocumentIssued
		out.IDDocumentIssued = &t
	}
	if p.ChildrenCount != nil {
		n := *p.ChildrenCount
		out.ChildrenCount = &n
	}
	return out
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile { return p.clone() }
