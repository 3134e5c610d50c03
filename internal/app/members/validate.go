package members

import (
	"regexp"
	"strings"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/domain"
)

const (
	// MinReasonLength is the minimum length of rejection and reset reasons.
	MinReasonLength = 5
	// MinPasswordLength applies to member-chosen passwords.
	MinPasswordLength = 8
)

var nationalIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{5,32}$`)

// normalizeForm trims every free-text field and canonicalizes names, email and phone.
func normalizeForm(in FormInput) FormInput {
	out := in
	out.NationalID = strings.ToUpper(strings.TrimSpace(in.NationalID))
	out.Profile = normalizeProfile(in.Profile)
	out.DocumentURL = strings.TrimSpace(in.DocumentURL)
	return out
}

func normalizeProfile(p domain.Profile) domain.Profile {
	out := p.Clone()
	out.LastName = domain.NormalizeHumanName(p.LastName)
	out.FirstName = domain.NormalizeHumanName(p.FirstName)
	out.SpouseName = domain.NormalizeHumanName(p.SpouseName)
	out.Email = domain.NormalizeEmail(p.Email)
	out.Phone = strings.TrimSpace(p.Phone)
	out.Address = strings.TrimSpace(p.Address)
	out.Profession = strings.TrimSpace(p.Profession)
	out.ResidenceCity = strings.TrimSpace(p.ResidenceCity)
	out.Employer = strings.TrimSpace(p.Employer)
	out.IDDocumentType = strings.TrimSpace(p.IDDocumentType)
	out.IDDocumentNumber = strings.TrimSpace(p.IDDocumentNumber)
	out.PhotoRef = strings.TrimSpace(p.PhotoRef)
	out.SignatureRef = strings.TrimSpace(p.SignatureRef)
	return out
}

// validateIdentity checks the fields every member record needs. The per-field rules
// are shared with amendments.
func validateIdentity(nationalID string, p domain.Profile) map[string]any {
	details := map[string]any{}
	for _, f := range domain.ProfileFieldNames() {
		if err := domain.ValidateFieldValue(f, p.Value(f)); err != nil {
			details[string(f)] = err.Error()
		}
	}
	if !nationalIDPattern.MatchString(nationalID) {
		details["nationalId"] = "must be 5-32 letters, digits or dashes"
	}
	return details
}

func validateForm(in FormInput) error {
	details := validateIdentity(in.NationalID, in.Profile)
	if in.DocumentURL != "" {
		if err := domain.ValidateURL(in.DocumentURL); err != nil {
			details["documentUrl"] = err.Error()
		}
	}
	for i, d := range in.Documents {
		if err := domain.ValidateURL(d.URL); err != nil {
			details["documents"] = map[string]any{"index": i, "reason": err.Error()}
			break
		}
	}
	if len(details) > 0 {
		return apperr.Validation("invalid membership form", details)
	}
	return nil
}

func validateReason(field, reason string) error {
	if len([]rune(strings.TrimSpace(reason))) < MinReasonLength {
		return apperr.Field(field, "must be at least 5 characters")
	}
	return nil
}
