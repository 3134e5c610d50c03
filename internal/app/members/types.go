package members

import (
	"time"

	"github.com/civic-assoc/membership-api/internal/domain"
)

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// ValueOr returns the value when specified and non-null, def otherwise.
func (o Optional[T]) ValueOr(def T) T {
	if o.specified && !o.isNull {
		return o.value
	}
	return def
}

// FormInput is the content of a membership form submission.
type FormInput struct {
	NationalID  string
	Profile     domain.Profile
	DocumentURL string
	Documents   []domain.DocumentRef
}

// ProvisionInput creates a member record ahead of the form (pre-provisioned path).
type ProvisionInput struct {
	NationalID string
	Profile    domain.Profile
	// Role defaults to MEMBER when unspecified or null.
	Role Optional[domain.Role]
}

// OperatorBootstrap describes the operator ensured at startup.
type OperatorBootstrap struct {
	Subject   domain.SubjectID
	Role      domain.Role
	FirstName string
	LastName  string
	Email     string
}

// IssuedIdentifier is returned once by identifier issuance. TemporarySecret is never stored in clear.
type IssuedIdentifier struct {
	Member          domain.Member
	Login           domain.SubjectID
	TemporarySecret string
}

// StatusView is the public answer to a status query.
type StatusView struct {
	Reference        string
	FullName         string
	Status           domain.MemberStatus
	HasSubmittedForm bool
	FormCode         *string
	CardIssuedAt     *time.Time
	RejectionReason  *string
}

// DirectoryEntry is the public projection of an approved, active member.
type DirectoryEntry struct {
	MemberID      domain.MemberID
	FullName      string
	Profession    string
	ResidenceCity string
	FormCode      string
	PhotoRef      string
}

// ListFilter narrows the operator member listing.
type ListFilter struct {
	Status          Optional[domain.MemberStatus]
	IncludeInactive bool
}
