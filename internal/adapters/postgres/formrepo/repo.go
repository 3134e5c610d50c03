package formrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	"github.com/civic-assoc/membership-api/internal/domain"
	"github.com/civic-assoc/membership-api/internal/ports/out/formrepo"
)

// Repo is a Postgres implementation of formrepo.Repository.
type Repo struct {
	db postgres.DBTX
}

func NewRepo(db postgres.DBTX) *Repo {
	return &Repo{db: db}
}

const formColumns = `id, member_id, version, revision, active, snapshot, submitted_by, submitted_at, updated_at`

func (r *Repo) Create(ctx context.Context, f domain.MembershipForm) error {
	id, err := uuid.Parse(string(f.ID))
	if err != nil {
		return fmt.Errorf("invalid form id: %w", err)
	}
	snapshot, err := json.Marshal(f.Snapshot)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO membership_forms (`+formColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		id,
		string(f.MemberID),
		f.Version,
		f.Revision,
		f.Active,
		snapshot,
		memberIDArg(f.SubmittedBy),
		f.SubmittedAt.UTC(),
		f.UpdatedAt.UTC(),
	)
	return mapWriteError(err)
}

func (r *Repo) Update(ctx context.Context, f domain.MembershipForm) error {
	id, err := uuid.Parse(string(f.ID))
	if err != nil {
		return formrepo.ErrNotFound
	}
	snapshot, err := json.Marshal(f.Snapshot)
	if err != nil {
		return err
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE membership_forms
		SET revision = $4,
		    active = $5,
		    snapshot = $6,
		    submitted_by = $7,
		    updated_at = $8
		WHERE id = $1 AND member_id = $2 AND version = $3
	`,
		id,
		string(f.MemberID),
		f.Version,
		f.Revision,
		f.Active,
		snapshot,
		memberIDArg(f.SubmittedBy),
		f.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return formrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetActive(ctx context.Context, memberID domain.MemberID) (domain.MembershipForm, error) {
	if _, err := uuid.Parse(string(memberID)); err != nil {
		return domain.MembershipForm{}, formrepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+formColumns+`
		FROM membership_forms
		WHERE member_id = $1 AND active
	`, string(memberID))
	return scanForm(row)
}

func (r *Repo) LatestVersion(ctx context.Context, memberID domain.MemberID) (int, error) {
	if _, err := uuid.Parse(string(memberID)); err != nil {
		return 0, nil
	}
	var v int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM membership_forms WHERE member_id = $1
	`, string(memberID)).Scan(&v)
	return v, err
}

func (r *Repo) DeactivateAll(ctx context.Context, memberID domain.MemberID) (int, error) {
	if _, err := uuid.Parse(string(memberID)); err != nil {
		return 0, nil
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE membership_forms SET active = false WHERE member_id = $1 AND active
	`, string(memberID))
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (r *Repo) ListByMember(ctx context.Context, memberID domain.MemberID) ([]domain.MembershipForm, error) {
	out := make([]domain.MembershipForm, 0)
	if _, err := uuid.Parse(string(memberID)); err != nil {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+formColumns+`
		FROM membership_forms
		WHERE member_id = $1
		ORDER BY version DESC
	`, string(memberID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	switch name, _ := postgres.UniqueConstraint(err); name {
	case "membership_forms_version_unique", "membership_forms_pkey":
		return formrepo.ErrVersionExists
	case "membership_forms_active_unique":
		return formrepo.ErrActiveExists
	}
	return err
}

func memberIDArg(id *domain.MemberID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func scanForm(row pgx.Row) (domain.MembershipForm, error) {
	var (
		id          uuid.UUID
		memberID    uuid.UUID
		submittedBy *uuid.UUID
		snapshot    []byte
		f           domain.MembershipForm
	)
	if err := row.Scan(&id, &memberID, &f.Version, &f.Revision, &f.Active, &snapshot, &submittedBy, &f.SubmittedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MembershipForm{}, formrepo.ErrNotFound
		}
		return domain.MembershipForm{}, err
	}
	if err := json.Unmarshal(snapshot, &f.Snapshot); err != nil {
		return domain.MembershipForm{}, fmt.Errorf("decode form snapshot: %w", err)
	}
	f.ID = domain.FormID(id.String())
	f.MemberID = domain.MemberID(memberID.String())
	if submittedBy != nil {
		v := domain.MemberID(submittedBy.String())
		f.SubmittedBy = &v
	}
	f.SubmittedAt = f.SubmittedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}
