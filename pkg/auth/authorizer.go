package auth

import "github.com/wardflow/wardflow/internal/domain"

// Authorizer is the capability oracle. The admission core asks it one
// question and does not care how the answer is produced.
type Authorizer interface {
	HasPermission(claims *domain.Claims, action domain.Action) bool
}

// RoleAuthorizer grants capabilities from a static role table. Admins hold
// everything; deletion is admin-only because it is a destructive data
// correction, not a clinical action.
type RoleAuthorizer struct {
	grants map[domain.Role]map[domain.Action]bool
}

func NewRoleAuthorizer() *RoleAuthorizer {
	grant := func(actions ...domain.Action) map[domain.Action]bool {
		m := make(map[domain.Action]bool, len(actions))
		for _, a := range actions {
			m[a] = true
		}
		return m
	}

	return &RoleAuthorizer{
		grants: map[domain.Role]map[domain.Action]bool{
			domain.RoleAdmin: grant(
				domain.ActionAdmitPatient, domain.ActionDischargePatient,
				domain.ActionShiftBed, domain.ActionEditAdmission,
				domain.ActionDeleteAdmission, domain.ActionViewAdmissions,
			),
			domain.RoleDoctor: grant(
				domain.ActionDischargePatient, domain.ActionEditAdmission,
				domain.ActionViewAdmissions,
			),
			domain.RoleNurse: grant(
				domain.ActionShiftBed, domain.ActionViewAdmissions,
			),
			domain.RoleReceptionist: grant(
				domain.ActionAdmitPatient, domain.ActionEditAdmission,
				domain.ActionViewAdmissions,
			),
		},
	}
}

func (a *RoleAuthorizer) HasPermission(claims *domain.Claims, action domain.Action) bool {
	if claims == nil {
		return false
	}
	return a.grants[claims.Role][action]
}
