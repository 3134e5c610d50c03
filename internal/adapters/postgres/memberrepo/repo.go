package memberrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/memberrepo"
)

// Repo is a Postgres implementation of memberrepo.Repository.
type Repo struct {
	db postgres.DBTX
}

// NewRepo binds the repository to a pool or to the transaction of a unit of work.
func NewRepo(db postgres.DBTX) *Repo {
	return &Repo{db: db}
}

const memberColumns = `
	m.external_id,
	m.subject,
	m.national_id,
	m.reference,
	m.role,
	m.status,
	m.has_paid,
	m.has_submitted_form,
	m.must_change_password,
	m.password_hash,
	m.form_code,
	m.card_issued_at,
	m.rejection_reason,
	m.is_active,
	m.profile,
	m.created_at,
	m.updated_at`

func (r *Repo) Create(ctx context.Context, m memberrepo.Member) error {
	if r.db == nil {
		return errors.New("nil postgres db")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid member id: %w", err)
	}
	profile, err := json.Marshal(m.Profile)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO members (
			external_id,
			subject,
			national_id,
			reference,
			role,
			status,
			has_paid,
			has_submitted_form,
			must_change_password,
			password_hash,
			form_code,
			card_issued_at,
			rejection_reason,
			is_active,
			last_name,
			first_name,
			email,
			phone_normalized,
			profile,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		id,
		subjectArg(m.Subject),
		nullIfEmpty(m.NationalID),
		m.Reference,
		string(m.Role),
		string(m.Status),
		m.HasPaid,
		m.HasSubmittedForm,
		m.MustChangePassword,
		m.PasswordHash,
		m.FormCode,
		utcPtr(m.CardIssuedAt),
		m.RejectionReason,
		m.IsActive,
		m.Profile.LastName,
		m.Profile.FirstName,
		nullIfEmpty(m.Profile.Email),
		domain.NormalizePhone(m.Profile.Phone),
		profile,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
	return mapWriteError(err)
}

func (r *Repo) Update(ctx context.Context, m memberrepo.Member) error {
	if r.db == nil {
		return errors.New("nil postgres db")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return memberrepo.ErrNotFound
	}
	profile, err := json.Marshal(m.Profile)
	if err != nil {
		return err
	}

	// A bound subject never changes: the row only matches while unbound or unchanged.
	ct, err := r.db.Exec(ctx, `
		UPDATE members
		SET subject = $2,
		    national_id = $3,
		    role = $4,
		    status = $5,
		    has_paid = $6,
		    has_submitted_form = $7,
		    must_change_password = $8,
		    password_hash = $9,
		    form_code = $10,
		    card_issued_at = $11,
		    rejection_reason = $12,
		    is_active = $13,
		    last_name = $14,
		    first_name = $15,
		    email = $16,
		    phone_normalized = $17,
		    profile = $18,
		    updated_at = $19
		WHERE external_id = $1
		  AND (subject IS NULL OR subject = $2)
	`,
		id,
		subjectArg(m.Subject),
		nullIfEmpty(m.NationalID),
		string(m.Role),
		string(m.Status),
		m.HasPaid,
		m.HasSubmittedForm,
		m.MustChangePassword,
		m.PasswordHash,
		m.FormCode,
		utcPtr(m.CardIssuedAt),
		m.RejectionReason,
		m.IsActive,
		m.Profile.LastName,
		m.Profile.FirstName,
		nullIfEmpty(m.Profile.Email),
		domain.NormalizePhone(m.Profile.Phone),
		profile,
		m.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError(err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE external_id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return memberrepo.ErrSubjectAlreadyBound
	}
	return memberrepo.ErrNotFound
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	return r.getByID(ctx, id, "")
}

func (r *Repo) GetByIDForUpdate(ctx context.Context, id domain.MemberID) (memberrepo.Member, error) {
	return r.getByID(ctx, id, "FOR UPDATE")
}

func (r *Repo) getByID(ctx context.Context, id domain.MemberID, lock string) (memberrepo.Member, error) {
	if r.db == nil {
		return memberrepo.Member{}, errors.New("nil postgres db")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members m WHERE m.external_id = $1 `+lock, uid)
	return scanMember(row)
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (memberrepo.Member, error) {
	if r.db == nil {
		return memberrepo.Member{}, errors.New("nil postgres db")
	}
	row := r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members m WHERE m.subject = $1`, string(subject))
	return scanMember(row)
}

func (r *Repo) GetByPhoneAndReference(ctx context.Context, phone string, reference string) (memberrepo.Member, error) {
	if r.db == nil {
		return memberrepo.Member{}, errors.New("nil postgres db")
	}
	want := domain.NormalizePhone(phone)
	ref := strings.TrimSpace(reference)
	if want == "" || ref == "" {
		return memberrepo.Member{}, memberrepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM members m
		WHERE m.reference = $1 AND m.phone_normalized = $2
	`, ref, want)
	return scanMember(row)
}

func (r *Repo) SubjectExists(ctx context.Context, subject domain.SubjectID) (bool, error) {
	if r.db == nil {
		return false, errors.New("nil postgres db")
	}
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE subject = $1)`, string(subject)).Scan(&exists)
	return exists, err
}

func (r *Repo) FindIdentityConflict(ctx context.Context, nationalID string, email string, exclude domain.MemberID) (memberrepo.IdentityField, error) {
	if r.db == nil {
		return memberrepo.IdentityNone, errors.New("nil postgres db")
	}
	var excludeID *uuid.UUID
	if exclude != "" {
		if uid, err := uuid.Parse(string(exclude)); err == nil {
			excludeID = &uid
		}
	}

	nationalID = strings.TrimSpace(nationalID)
	if nationalID != "" {
		var taken bool
		if err := r.db.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM members
				WHERE upper(national_id) = upper($1)
				  AND external_id IS DISTINCT FROM $2
			)
		`, nationalID, excludeID).Scan(&taken); err != nil {
			return memberrepo.IdentityNone, err
		}
		if taken {
			return memberrepo.IdentityNationalID, nil
		}
	}
	email = strings.TrimSpace(email)
	if email != "" {
		var taken bool
		if err := r.db.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM members
				WHERE lower(email) = lower($1)
				  AND external_id IS DISTINCT FROM $2
			)
		`, email, excludeID).Scan(&taken); err != nil {
			return memberrepo.IdentityNone, err
		}
		if taken {
			return memberrepo.IdentityEmail, nil
		}
	}
	return memberrepo.IdentityNone, nil
}

func (r *Repo) List(ctx context.Context, f memberrepo.ListFilter) ([]memberrepo.Member, error) {
	if r.db == nil {
		return nil, errors.New("nil postgres db")
	}
	var (
		where []string
		args  []any
	)
	if !f.IncludeInactive {
		where = append(where, "m.is_active = true")
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("m.status = $%d", len(args)))
	}
	if f.ExcludeOperators {
		where = append(where, "m.role = 'MEMBER'")
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	return r.query(ctx, `
		SELECT `+memberColumns+`
		FROM members m
		`+clause+`
		ORDER BY lower(m.last_name), lower(m.first_name), m.external_id
	`, args...)
}

func (r *Repo) SearchDirectory(ctx context.Context, query string, limit int) ([]memberrepo.Member, error) {
	if r.db == nil {
		return nil, errors.New("nil postgres db")
	}
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return []memberrepo.Member{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + memberColumns + `
		FROM members m
		WHERE m.is_active = true
		  AND m.status = 'APPROVED'
		  AND m.role = 'MEMBER'
	`)
	args := make([]any, 0, len(qTokens))
	for i, tok := range qTokens {
		// Match all tokens (AND) in a case-insensitive way.
		sb.WriteString(fmt.Sprintf(" AND lower(m.first_name || ' ' || m.last_name) LIKE $%d ", i+1))
		args = append(args, "%"+tok+"%")
	}
	sb.WriteString(" ORDER BY lower(m.last_name), lower(m.first_name), m.external_id ")
	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d ", limit))
	}
	return r.query(ctx, sb.String(), args...)
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]memberrepo.Member, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]memberrepo.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// --- helpers ---

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	name, ok := postgres.UniqueConstraint(err)
	if !ok {
		return err
	}
	switch name {
	case "members_subject_unique":
		return memberrepo.ErrSubjectAlreadyBound
	case "members_external_id_unique":
		return memberrepo.ErrAlreadyExists
	case "members_national_id_unique":
		return memberrepo.ErrDuplicateNationalID
	case "members_email_unique":
		return memberrepo.ErrDuplicateEmail
	case "members_reference_unique":
		return memberrepo.ErrReferenceTaken
	default:
		return err
	}
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func subjectArg(s *domain.SubjectID) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func scanMember(row pgx.Row) (memberrepo.Member, error) {
	var (
		externalID  uuid.UUID
		subject     *string
		nationalID  *string
		role        string
		status      string
		profileJSON []byte
		m           memberrepo.Member
	)
	if err := row.Scan(
		&externalID,
		&subject,
		&nationalID,
		&m.Reference,
		&role,
		&status,
		&m.HasPaid,
		&m.HasSubmittedForm,
		&m.MustChangePassword,
		&m.PasswordHash,
		&m.FormCode,
		&m.CardIssuedAt,
		&m.RejectionReason,
		&m.IsActive,
		&profileJSON,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return memberrepo.Member{}, memberrepo.ErrNotFound
		}
		return memberrepo.Member{}, err
	}
	if err := json.Unmarshal(profileJSON, &m.Profile); err != nil {
		return memberrepo.Member{}, fmt.Errorf("decode member profile: %w", err)
	}
	m.ID = domain.MemberID(externalID.String())
	if subject != nil {
		s := domain.SubjectID(*subject)
		m.Subject = &s
	}
	if nationalID != nil {
		m.NationalID = *nationalID
	}
	m.Role = domain.Role(role)
	m.Status = domain.MemberStatus(status)
	m.CardIssuedAt = utcPtr(m.CardIssuedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}
