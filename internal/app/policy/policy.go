package policy

import (
	"github.com/civic-assoc/membership-api/internal/app/apperr"
	"github.com/civic-assoc/membership-api/internal/domain"
)

// Operation names an action gated by role.
type Operation string

const (
	OpSubmitApplication Operation = "application.submit"
	OpQueryStatus       Operation = "application.status"
	OpViewDirectory     Operation = "directory.view"

	OpViewOwnProfile        Operation = "me.view"
	OpSubmitOwnForm         Operation = "me.form.submit"
	OpChangePassword        Operation = "me.password.change"
	OpSubmitAmendment       Operation = "me.amendment.submit"
	OpListOwnAmendments     Operation = "me.amendment.list"
	OpProvisionMember       Operation = "member.provision"
	OpProvisionOperator     Operation = "member.provision_operator"
	OpListMembers           Operation = "member.list"
	OpViewMember            Operation = "member.view"
	OpIssueIdentifier       Operation = "member.identifier.issue"
	OpSubmitFormOnBehalf    Operation = "member.form.submit_on_behalf"
	OpApprove               Operation = "member.approve"
	OpReject                Operation = "member.reject"
	OpResetSubmission       Operation = "member.reset"
	OpSetActive             Operation = "member.set_active"
	OpViewAudit             Operation = "member.audit.view"
	OpListPendingAmendments Operation = "amendment.list_pending"
	OpViewAmendment         Operation = "amendment.view"
	OpDecideAmendment       Operation = "amendment.decide"
)

var (
	everyone  = []domain.Role{"", domain.RoleMember, domain.RoleSecretary, domain.RolePresident, domain.RoleAdmin}
	members   = []domain.Role{domain.RoleMember, domain.RoleSecretary, domain.RolePresident, domain.RoleAdmin}
	operators = []domain.Role{domain.RoleSecretary, domain.RolePresident, domain.RoleAdmin}
	officers  = []domain.Role{domain.RolePresident, domain.RoleAdmin}
)

var table = map[Operation][]domain.Role{
	OpSubmitApplication: everyone,
	OpQueryStatus:       everyone,
	OpViewDirectory:     everyone,

	OpViewOwnProfile:    members,
	OpSubmitOwnForm:     members,
	OpChangePassword:    members,
	OpSubmitAmendment:   members,
	OpListOwnAmendments: members,

	OpProvisionMember:       operators,
	OpListMembers:           operators,
	OpViewMember:            operators,
	OpIssueIdentifier:       operators,
	OpSubmitFormOnBehalf:    operators,
	OpApprove:               operators,
	OpReject:                operators,
	OpViewAudit:             operators,
	OpListPendingAmendments: operators,
	OpViewAmendment:         operators,
	OpDecideAmendment:       operators,
	OpResetSubmission:       operators,

	OpProvisionOperator: officers,
	OpSetActive:         officers,
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(op Operation, role domain.Role) bool {
	for _, r := range table[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Check returns a FORBIDDEN error when role may not perform op.
func Check(op Operation, role domain.Role) error {
	if Allowed(op, role) {
		return nil
	}
	e := apperr.Forbidden("operation not permitted for role")
	e.Details = map[string]any{"operation": string(op), "role": string(role)}
	return e
}

// Operations returns every operation in the table.
func Operations() []Operation {
	out := make([]Operation, 0, len(table))
	for op := range table {
		out = append(out, op)
	}
	return out
}
