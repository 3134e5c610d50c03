package amendmentrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/amendmentrepo"
)

type Repo struct {
	db postgres.DBTX
}

func NewRepo(db postgres.DBTX) *Repo {
	return &Repo{db: db}
}

const amendmentColumns = `id, reference, member_id, changes, justification, documents, status,
	reviewer_id, review_comment, rejection_reason, submitted_at, decided_at`

func (r *Repo) Create(ctx context.Context, a domain.Amendment) error {
	id, err := uuid.Parse(string(a.ID))
	if err != nil {
		return fmt.Errorf("invalid amendment id: %w", err)
	}
	changes, documents, err := encodeLists(a)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO amendments (`+amendmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		id,
		a.Reference,
		string(a.MemberID),
		changes,
		a.Justification,
		documents,
		string(a.Status),
		memberIDArg(a.ReviewerID),
		a.ReviewComment,
		a.RejectionReason,
		a.SubmittedAt.UTC(),
		a.DecidedAt,
	)
	if err == nil {
		return nil
	}
	switch name, _ := postgres.UniqueConstraint(err); name {
	case "amendments_pkey":
		return amendmentrepo.ErrAlreadyExists
	case "amendments_reference_unique":
		return amendmentrepo.ErrReferenceTaken
	case "amendments_pending_unique":
		return amendmentrepo.ErrPendingExists
	}
	return err
}

// Save persists the decision fields. The requested changes are immutable after Create.
func (r *Repo) Save(ctx context.Context, a domain.Amendment) error {
	id, err := uuid.Parse(string(a.ID))
	if err != nil {
		return amendmentrepo.ErrNotFound
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE amendments
		SET status = $2,
		    reviewer_id = $3,
		    review_comment = $4,
		    rejection_reason = $5,
		    decided_at = $6
		WHERE id = $1
	`,
		id,
		string(a.Status),
		memberIDArg(a.ReviewerID),
		a.ReviewComment,
		a.RejectionReason,
		a.DecidedAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return amendmentrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.AmendmentID) (domain.Amendment, error) {
	return r.getByID(ctx, id, "")
}

func (r *Repo) GetByIDForUpdate(ctx context.Context, id domain.AmendmentID) (domain.Amendment, error) {
	return r.getByID(ctx, id, " FOR UPDATE")
}

func (r *Repo) getByID(ctx context.Context, id domain.AmendmentID, lock string) (domain.Amendment, error) {
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Amendment{}, amendmentrepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+amendmentColumns+` FROM amendments WHERE id = $1`+lock, uid)
	return scanAmendment(row)
}

func (r *Repo) GetPendingByMember(ctx context.Context, memberID domain.MemberID) (domain.Amendment, error) {
	if _, err := uuid.Parse(string(memberID)); err != nil {
		return domain.Amendment{}, amendmentrepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+amendmentColumns+`
		FROM amendments
		WHERE member_id = $1 AND status = 'PENDING'
	`, string(memberID))
	return scanAmendment(row)
}

func (r *Repo) ListPending(ctx context.Context) ([]domain.Amendment, error) {
	return r.list(ctx, `
		SELECT `+amendmentColumns+`
		FROM amendments
		WHERE status = 'PENDING'
		ORDER BY submitted_at ASC, id ASC
	`)
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID, limit int) ([]domain.Amendment, error) {
	if _, err := uuid.Parse(string(memberID)); err != nil {
		return []domain.Amendment{}, nil
	}
	q := `
		SELECT ` + amendmentColumns + `
		FROM amendments
		WHERE member_id = $1
		ORDER BY submitted_at DESC, id DESC
	`
	if limit > 0 {
		return r.list(ctx, q+` LIMIT $2`, string(memberID), limit)
	}
	return r.list(ctx, q, string(memberID))
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]domain.Amendment, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Amendment, 0)
	for rows.Next() {
		a, err := scanAmendment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func encodeLists(a domain.Amendment) (changes []byte, documents []byte, err error) {
	ch := a.Changes
	if ch == nil {
		ch = []domain.FieldChange{}
	}
	docs := a.Documents
	if docs == nil {
		docs = []domain.DocumentRef{}
	}
	if changes, err = json.Marshal(ch); err != nil {
		return nil, nil, err
	}
	if documents, err = json.Marshal(docs); err != nil {
		return nil, nil, err
	}
	return changes, documents, nil
}

func memberIDArg(id *domain.MemberID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func scanAmendment(row pgx.Row) (domain.Amendment, error) {
	var (
		id         uuid.UUID
		memberID   uuid.UUID
		reviewerID *uuid.UUID
		changes    []byte
		documents  []byte
		status     string
		a          domain.Amendment
	)
	err := row.Scan(
		&id,
		&a.Reference,
		&memberID,
		&changes,
		&a.Justification,
		&documents,
		&status,
		&reviewerID,
		&a.ReviewComment,
		&a.RejectionReason,
		&a.SubmittedAt,
		&a.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Amendment{}, amendmentrepo.ErrNotFound
		}
		return domain.Amendment{}, err
	}
	if err := json.Unmarshal(changes, &a.Changes); err != nil {
		return domain.Amendment{}, fmt.Errorf("decode amendment changes: %w", err)
	}
	if err := json.Unmarshal(documents, &a.Documents); err != nil {
		return domain.Amendment{}, fmt.Errorf("decode amendment documents: %w", err)
	}
	a.ID = domain.AmendmentID(id.String())
	a.MemberID = domain.MemberID(memberID.String())
	a.Status = domain.AmendmentStatus(status)
	if reviewerID != nil {
		v := domain.MemberID(reviewerID.String())
		a.ReviewerID = &v
	}
	a.SubmittedAt = a.SubmittedAt.UTC()
	if a.DecidedAt != nil {
		t := a.DecidedAt.UTC()
		a.DecidedAt = &t
	}
	return a, nil
}
