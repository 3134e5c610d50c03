package httpapi

import (
	"strings"
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/civic-assoc/membership-api/internal/app/amendments"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/domain"
)

type Profile struct {
	LastName            string               `json:"lastName"`
	FirstName           string               `json:"firstName"`
	Email               *openapi_types.Email `json:"email,omitempty"`
	Phone               string               `json:"phone,omitempty"`
	Address             string               `json:"address,omitempty"`
	Profession          string               `json:"profession,omitempty"`
	ResidenceCity       string               `json:"residenceCity,omitempty"`
	Employer            string               `json:"employer,omitempty"`
	IdDocumentType      string               `json:"idDocumentType,omitempty"`
	IdDocumentNumber    string               `json:"idDocumentNumber,omitempty"`
	IdDocumentIssueDate *openapi_types.Date  `json:"idDocumentIssueDate,omitempty"`
	SpouseName          string               `json:"spouseName,omitempty"`
	ChildrenCount       *int                 `json:"childrenCount,omitempty"`
	PhotoRef            string               `json:"photoRef,omitempty"`
	SignatureRef        string               `json:"signatureRef,omitempty"`
}

type Document struct {
	Kind string `json:"kind"`
	Url  string `json:"url"`
}

// FormRequest is the body of application intake and form submission.
type FormRequest struct {
	NationalId  string     `json:"nationalId"`
	Profile     Profile    `json:"profile"`
	DocumentUrl string     `json:"documentUrl,omitempty"`
	Documents   []Document `json:"documents,omitempty"`
}

type ProvisionMemberRequest struct {
	NationalId string                    `json:"nationalId"`
	Profile    Profile                   `json:"profile"`
	Role       nullable.Nullable[string] `json:"role,omitempty"`
}

type IssueIdentifierRequest struct {
	ConfirmedPaid bool `json:"confirmedPaid"`
}

type ApproveRequest struct {
	Comment string `json:"comment,omitempty"`
}

// ReasonRequest is the body of reject and reset.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type AmendmentRequest struct {
	Fields        map[string]string `json:"fields"`
	Justification string            `json:"justification"`
	Documents     []Document        `json:"documents,omitempty"`
}

type DecisionRequest struct {
	Decision        string `json:"decision"`
	Comment         string `json:"comment,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

type Member struct {
	MemberId           string                       `json:"memberId"`
	Reference          string                       `json:"reference"`
	NationalId         string                       `json:"nationalId,omitempty"`
	Role               string                       `json:"role"`
	Status             string                       `json:"status"`
	Login              nullable.Nullable[string]    `json:"login"`
	HasPaid            bool                         `json:"hasPaid"`
	HasSubmittedForm   bool                         `json:"hasSubmittedForm"`
	MustChangePassword bool                         `json:"mustChangePassword"`
	IsActive           bool                         `json:"isActive"`
	FormCode           nullable.Nullable[string]    `json:"formCode"`
	CardIssuedAt       nullable.Nullable[time.Time] `json:"cardIssuedAt"`
	RejectionReason    nullable.Nullable[string]    `json:"rejectionReason"`
	Profile            Profile                      `json:"profile"`
	CreatedAt          time.Time                    `json:"createdAt"`
	UpdatedAt          time.Time                    `json:"updatedAt"`
}

type MemberResponse struct {
	Member Member `json:"member"`
}

type MemberDetailResponse struct {
	Member Member `json:"member"`
	Forms  []Form `json:"forms"`
}

type MemberListResponse struct {
	Members []Member `json:"members"`
}

type Form struct {
	FormId      string                    `json:"formId"`
	Version     int                       `json:"version"`
	Revision    int                       `json:"revision"`
	Active      bool                      `json:"active"`
	NationalId  string                    `json:"nationalId"`
	Profile     Profile                   `json:"profile"`
	DocumentUrl string                    `json:"documentUrl,omitempty"`
	Documents   []Document                `json:"documents"`
	SubmittedBy nullable.Nullable[string] `json:"submittedBy"`
	SubmittedAt time.Time                 `json:"submittedAt"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

type IssueIdentifierResponse struct {
	Member          Member `json:"member"`
	Login           string `json:"login"`
	TemporarySecret string `json:"temporarySecret"`
}

type StatusResponse struct {
	Reference        string                       `json:"reference"`
	FullName         string                       `json:"fullName"`
	Status           string                       `json:"status"`
	HasSubmittedForm bool                         `json:"hasSubmittedForm"`
	FormCode         nullable.Nullable[string]    `json:"formCode"`
	CardIssuedAt     nullable.Nullable[time.Time] `json:"cardIssuedAt"`
	RejectionReason  nullable.Nullable[string]    `json:"rejectionReason"`
}

type DirectoryEntry struct {
	MemberId      string `json:"memberId"`
	FullName      string `json:"fullName"`
	Profession    string `json:"profession,omitempty"`
	ResidenceCity string `json:"residenceCity,omitempty"`
	FormCode      string `json:"formCode"`
	PhotoRef      string `json:"photoRef,omitempty"`
}

type DirectoryResponse struct {
	Entries []DirectoryEntry `json:"entries"`
}

type AuditEntry struct {
	EntryId   string                    `json:"entryId"`
	Action    string                    `json:"action"`
	ActorId   nullable.Nullable[string] `json:"actorId"`
	Details   map[string]any            `json:"details"`
	IpAddress string                    `json:"ipAddress,omitempty"`
	UserAgent string                    `json:"userAgent,omitempty"`
	CreatedAt time.Time                 `json:"createdAt"`
}

type AuditResponse struct {
	Entries []AuditEntry `json:"entries"`
}

type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type Amendment struct {
	AmendmentId     string                       `json:"amendmentId"`
	Reference       string                       `json:"reference"`
	MemberId        string                       `json:"memberId"`
	Status          string                       `json:"status"`
	Changes         []FieldChange                `json:"changes"`
	Justification   string                       `json:"justification"`
	Documents       []Document                   `json:"documents"`
	ReviewerId      nullable.Nullable[string]    `json:"reviewerId"`
	ReviewComment   nullable.Nullable[string]    `json:"reviewComment"`
	RejectionReason nullable.Nullable[string]    `json:"rejectionReason"`
	SubmittedAt     time.Time                    `json:"submittedAt"`
	DecidedAt       nullable.Nullable[time.Time] `json:"decidedAt"`
}

type AmendmentResponse struct {
	Amendment Amendment `json:"amendment"`
}

type AmendmentListResponse struct {
	Amendments []Amendment `json:"amendments"`
}

func profileToDomain(p Profile) domain.Profile {
	out := domain.Profile{
		LastName:         p.LastName,
		FirstName:        p.FirstName,
		Phone:            p.Phone,
		Address:          p.Address,
		Profession:       p.Profession,
		ResidenceCity:    p.ResidenceCity,
		Employer:         p.Employer,
		IDDocumentType:   p.IdDocumentType,
		IDDocumentNumber: p.IdDocumentNumber,
		SpouseName:       p.SpouseName,
		ChildrenCount:    p.ChildrenCount,
		PhotoRef:         p.PhotoRef,
		SignatureRef:     p.SignatureRef,
	}
	if p.Email != nil {
		out.Email = strings.TrimSpace(string(*p.Email))
	}
	if p.IdDocumentIssueDate != nil {
		t := p.IdDocumentIssueDate.Time.UTC()
		out.IDDocumentIssued = &t
	}
	return out
}

func profileFromDomain(p domain.Profile) Profile {
	out := Profile{
		LastName:         p.LastName,
		FirstName:        p.FirstName,
		Phone:            p.Phone,
		Address:          p.Address,
		Profession:       p.Profession,
		ResidenceCity:    p.ResidenceCity,
		Employer:         p.Employer,
		IdDocumentType:   p.IDDocumentType,
		IdDocumentNumber: p.IDDocumentNumber,
		SpouseName:       p.SpouseName,
		ChildrenCount:    p.ChildrenCount,
		PhotoRef:         p.PhotoRef,
		SignatureRef:     p.SignatureRef,
	}
	if p.Email != "" {
		e := openapi_types.Email(p.Email)
		out.Email = &e
	}
	if p.IDDocumentIssued != nil {
		out.IdDocumentIssueDate = &openapi_types.Date{Time: p.IDDocumentIssued.UTC()}
	}
	return out
}

func documentsToDomain(in []Document) []domain.DocumentRef {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.DocumentRef, 0, len(in))
	for _, d := range in {
		out = append(out, domain.DocumentRef{Kind: d.Kind, URL: d.Url})
	}
	return out
}

func documentsFromDomain(in []domain.DocumentRef) []Document {
	out := make([]Document, 0, len(in))
	for _, d := range in {
		out = append(out, Document{Kind: d.Kind, Url: d.URL})
	}
	return out
}

func formInputFromRequest(b FormRequest) members.FormInput {
	return members.FormInput{
		NationalID:  b.NationalId,
		Profile:     profileToDomain(b.Profile),
		DocumentURL: b.DocumentUrl,
		Documents:   documentsToDomain(b.Documents),
	}
}

func provisionInputFromRequest(b ProvisionMemberRequest) members.ProvisionInput {
	in := members.ProvisionInput{
		NationalID: b.NationalId,
		Profile:    profileToDomain(b.Profile),
	}
	if b.Role.IsSpecified() {
		if b.Role.IsNull() {
			in.Role = members.Null[domain.Role]()
		} else if v, err := b.Role.Get(); err == nil {
			in.Role = members.Some(domain.Role(strings.ToUpper(strings.TrimSpace(v))))
		}
	}
	return in
}

func amendmentInputFromRequest(b AmendmentRequest) amendments.SubmitInput {
	fields := make(domain.FieldValues, len(b.Fields))
	for k, v := range b.Fields {
		fields[domain.ProfileField(k)] = v
	}
	return amendments.SubmitInput{
		Fields:        fields,
		Justification: b.Justification,
		Documents:     documentsToDomain(b.Documents),
	}
}

func decideInputFromRequest(b DecisionRequest) amendments.DecideInput {
	return amendments.DecideInput{
		Decision:        amendments.Decision(strings.ToUpper(strings.TrimSpace(b.Decision))),
		Comment:         b.Comment,
		RejectionReason: b.RejectionReason,
	}
}

func memberFromDomain(m domain.Member) Member {
	out := Member{
		MemberId:           string(m.ID),
		Reference:          m.Reference,
		NationalId:         m.NationalID,
		Role:               string(m.Role),
		Status:             string(m.Status),
		HasPaid:            m.HasPaid,
		HasSubmittedForm:   m.HasSubmittedForm,
		MustChangePassword: m.MustChangePassword,
		IsActive:           m.IsActive,
		FormCode:           nullableString(m.FormCode),
		CardIssuedAt:       nullableTime(m.CardIssuedAt),
		RejectionReason:    nullableString(m.RejectionReason),
		Profile:            profileFromDomain(m.Profile),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.Subject != nil {
		out.Login = nullable.NewNullableWithValue(string(*m.Subject))
	} else {
		out.Login = nullable.NewNullNullable[string]()
	}
	return out
}

func membersFromDomain(ms []domain.Member) []Member {
	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, memberFromDomain(m))
	}
	return out
}

func formFromDomain(f domain.MembershipForm) Form {
	out := Form{
		FormId:      string(f.ID),
		Version:     f.Version,
		Revision:    f.Revision,
		Active:      f.Active,
		NationalId:  f.Snapshot.NationalID,
		Profile:     profileFromDomain(f.Snapshot.Profile),
		DocumentUrl: f.Snapshot.DocumentURL,
		Documents:   documentsFromDomain(f.Snapshot.Documents),
		SubmittedBy: nullable.NewNullNullable[string](),
		SubmittedAt: f.SubmittedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	if f.SubmittedBy != nil {
		out.SubmittedBy = nullable.NewNullableWithValue(string(*f.SubmittedBy))
	}
	return out
}

func statusFromView(v members.StatusView) StatusResponse {
	return StatusResponse{
		Reference:        v.Reference,
		FullName:         v.FullName,
		Status:           string(v.Status),
		HasSubmittedForm: v.HasSubmittedForm,
		FormCode:         nullableString(v.FormCode),
		CardIssuedAt:     nullableTime(v.CardIssuedAt),
		RejectionReason:  nullableString(v.RejectionReason),
	}
}

func directoryFromDomain(es []members.DirectoryEntry) DirectoryResponse {
	out := DirectoryResponse{Entries: make([]DirectoryEntry, 0, len(es))}
	for _, e := range es {
		out.Entries = append(out.Entries, DirectoryEntry{
			MemberId:      string(e.MemberID),
			FullName:      e.FullName,
			Profession:    e.Profession,
			ResidenceCity: e.ResidenceCity,
			FormCode:      e.FormCode,
			PhotoRef:      e.PhotoRef,
		})
	}
	return out
}

func auditFromDomain(es []domain.AuditEntry) AuditResponse {
	out := AuditResponse{Entries: make([]AuditEntry, 0, len(es))}
	for _, e := range es {
		entry := AuditEntry{
			EntryId:   string(e.ID),
			Action:    string(e.Action),
			ActorId:   nullable.NewNullNullable[string](),
			Details:   e.Details,
			IpAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt,
		}
		if e.ActorID != nil {
			entry.ActorId = nullable.NewNullableWithValue(string(*e.ActorID))
		}
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}

func amendmentFromDomain(a domain.Amendment) Amendment {
	out := Amendment{
		AmendmentId:     string(a.ID),
		Reference:       a.Reference,
		MemberId:        string(a.MemberID),
		Status:          string(a.Status),
		Changes:         make([]FieldChange, 0, len(a.Changes)),
		Justification:   a.Justification,
		Documents:       documentsFromDomain(a.Documents),
		ReviewerId:      nullable.NewNullNullable[string](),
		ReviewComment:   nullableString(a.ReviewComment),
		RejectionReason: nullableString(a.RejectionReason),
		SubmittedAt:     a.SubmittedAt,
		DecidedAt:       nullableTime(a.DecidedAt),
	}
	for _, c := range a.Changes {
		out.Changes = append(out.Changes, FieldChange{Field: string(c.Field), Before: c.Before, After: c.After})
	}
	if a.ReviewerID != nil {
		out.ReviewerId = nullable.NewNullableWithValue(string(*a.ReviewerID))
	}
	return out
}

func amendmentsFromDomain(as []domain.Amendment) AmendmentListResponse {
	out := AmendmentListResponse{Amendments: make([]Amendment, 0, len(as))}
	for _, a := range as {
		out.Amendments = append(out.Amendments, amendmentFromDomain(a))
	}
	return out
}

// Response fields are always present: unset pointers render as JSON null.
func nullableString(p *string) nullable.Nullable[string] {
	if p == nil {
		return nullable.NewNullNullable[string]()
	}
	return nullable.NewNullableWithValue(*p)
}

func nullableTime(p *time.Time) nullable.Nullable[time.Time] {
	if p == nil {
		return nullable.NewNullNullable[time.Time]()
	}
	return nullable.NewNullableWithValue(p.UTC())
}
