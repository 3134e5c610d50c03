package auditlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	"github.com/civic-assoc/membership-api/internal/domain"
)

// Log appends audit entries to the audit_entries table. Rows are never updated.
type Log struct {
	db postgres.DBTX
}

func NewLog(db postgres.DBTX) *Log {
	return &Log{db: db}
}

func (l *Log) Append(ctx context.Context, e domain.AuditEntry) error {
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return fmt.Errorf("invalid audit entry id: %w", err)
	}
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	_, err = l.db.Exec(ctx, `
		INSERT INTO audit_entries (id, actor_id, member_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		id,
		memberIDArg(e.ActorID),
		memberIDArg(e.MemberID),
		string(e.Action),
		raw,
		e.IPAddress,
		e.UserAgent,
		e.CreatedAt.UTC(),
	)
	return err
}

func (l *Log) ListByMember(ctx context.Context, memberID domain.MemberID, limit int) ([]domain.AuditEntry, error) {
	out := make([]domain.AuditEntry, 0)
	if _, err := uuid.Parse(string(memberID)); err != nil {
		return out, nil
	}
	q := `
		SELECT id, actor_id, member_id, action, details, ip_address, user_agent, created_at
		FROM audit_entries
		WHERE member_id = $1
		ORDER BY seq DESC
	`
	args := []any{string(memberID)}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := l.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      uuid.UUID
			actorID *uuid.UUID
			about   *uuid.UUID
			action  string
			details []byte
			e       domain.AuditEntry
		)
		if err := rows.Scan(&id, &actorID, &about, &action, &details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		e.ID = domain.AuditEntryID(id.String())
		e.Action = domain.AuditAction(action)
		e.ActorID = toMemberID(actorID)
		e.MemberID = toMemberID(about)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func memberIDArg(id *domain.MemberID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func toMemberID(id *uuid.UUID) *domain.MemberID {
	if id == nil {
		return nil
	}
	v := domain.MemberID(id.String())
	return &v
}
