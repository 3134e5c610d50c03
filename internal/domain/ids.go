package domain

// SubjectID is the authenticated subject extracted from JWT claims (typically "sub").
// For members it is the login identifier issued by requestIdentifierIssuance.
type SubjectID string

// MemberID is an internal identifier for a member record.
type MemberID string

// FormID identifies one version row of a membership form.
type FormID string

// AmendmentID is an internal identifier for an amendment request.
type AmendmentID string

// AuditEntryID identifies an audit log entry.
type AuditEntryID string
