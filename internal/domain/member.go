package domain

import "time"

// MemberStatus is the review status of a membership application.
type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "PENDING"
	MemberStatusApproved MemberStatus = "APPROVED"
	MemberStatusRejected MemberStatus = "REJECTED"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusPending, MemberStatusApproved, MemberStatusRejected:
		return true
	default:
		return false
	}
}

// Role is the role recorded on a member. Roles other than RoleMember are operators.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleSecretary Role = "SECRETARY"
	RolePresident Role = "PRESIDENT"
	RoleAdmin     Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleSecretary, RolePresident, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsOperator reports whether the role may act on other members' records.
func (r Role) IsOperator() bool {
	return r == RoleSecretary || r == RolePresident || r == RoleAdmin
}

// Tag is the short role tag embedded in membership references.
func (r Role) Tag() string {
	switch r {
	case RoleSecretary:
		return "SEC"
	case RolePresident:
		return "PRS"
	case RoleAdmin:
		return "ADM"
	default:
		return "MBR"
	}
}

// DocumentRef points at an uploaded file (scan, photo, proof). Storage is external.
type DocumentRef struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// Profile holds the member-editable profile fields. Empty strings mean unset.
type Profile struct {
	LastName         string     `json:"lastName,omitempty"`
	FirstName        string     `json:"firstName,omitempty"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Address          string     `json:"address,omitempty"`
	Profession       string     `json:"profession,omitempty"`
	ResidenceCity    string     `json:"residenceCity,omitempty"`
	Employer         string     `json:"employer,omitempty"`
	IDDocumentType   string     `json:"idDocumentType,omitempty"`
	IDDocumentNumber string     `json:"idDocumentNumber,omitempty"`
	IDDocumentIssued *time.Time `json:"idDocumentIssueDate,omitempty"`
	SpouseName       string     `json:"spouseName,omitempty"`
	ChildrenCount    *int       `json:"childrenCount,omitempty"`
	PhotoRef         string     `json:"photoRef,omitempty"`
	SignatureRef     string     `json:"signatureRef,omitempty"`
}

// FullName returns "First Last" with whitespace normalized.
func (p Profile) FullName() string {
	return NormalizeHumanName(p.FirstName + " " + p.LastName)
}

// Member is the domain representation of an association member.
//
// Invariants kept by the lifecycle service:
//   - FormCode and CardIssuedAt are set iff Status is APPROVED.
//   - Status APPROVED implies HasSubmittedForm.
//   - RejectionReason is set whenever Status is REJECTED.
type Member struct {
	ID         MemberID
	Subject    *SubjectID
	NationalID string
	Reference  string
	Role       Role

	Status             MemberStatus
	HasPaid            bool
	HasSubmittedForm   bool
	MustChangePassword bool
	FormCode           *string
	CardIssuedAt       *time.Time
	RejectionReason    *string
	IsActive           bool

	Profile Profile

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsProvisioned reports whether a login identifier has been issued.
func (m Member) IsProvisioned() bool {
	return m.Subject != nil && *m.Subject != ""
}

// InDirectory reports whether the member is listed in the public directory.
func (m Member) InDirectory() bool {
	return m.Status == MemberStatusApproved && m.IsActive && !m.Role.IsOperator()
}
