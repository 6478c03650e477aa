package auth

// CanModify reports whether actor may mutate target or data owned by
// target. Rules are evaluated in order: self is always allowed, plain
// users are denied, admins may not act on owners or on peer admins,
// everything else is allowed.
func CanModify(actor, target Principal) bool {
	if actor == nil || target == nil {
		return false
	}

	if actor.PrincipalID() == target.PrincipalID() {
		return true
	}

	ar := actor.PrincipalRoles()
	tr := target.PrincipalRoles()

	if !ar.IsPrivileged() {
		return false
	}

	if tr.IsOwner() && !ar.IsOwner() {
		return false
	}

	if tr.IsAdmin() && ar.IsAdmin() && !tr.IsOwner() && !ar.IsOwner() {
		return false
	}

	return true
}

// CanManageRoles reports whether actor may grant or revoke roles
func CanManageRoles(actor Principal) bool {
	if actor == nil {
		return false
	}
	return actor.PrincipalRoles().IsOwner()
}

// grantableRoles are the roles that may change through role management.
// The user role is implicit and owner is bootstrapped out of band.
var grantableRoles = NewRoleSet(RoleAdmin)

// PlanRoleGrant returns target's roles with role added
func PlanRoleGrant(actor, target Principal, role Role) (RoleSet, error) {
	current, err := checkRoleChange(actor, target, role)
	if err != nil {
		return current, err
	}
	if current.Has(role) {
		return current, withMeta(ErrRoleConflict, map[string]any{
			"role":   role.String(),
			"reason": "role already granted",
		})
	}
	return current.With(role), nil
}

// PlanRoleRevoke returns target's roles with role removed
func PlanRoleRevoke(actor, target Principal, role Role) (RoleSet, error) {
	current, err := checkRoleChange(actor, target, role)
	if err != nil {
		return current, err
	}
	if !current.Has(role) {
		return current, withMeta(ErrRoleConflict, map[string]any{
			"role":   role.String(),
			"reason": "role not granted",
		})
	}
	return current.Without(role).Normalize(), nil
}

func checkRoleChange(actor, target Principal, role Role) (RoleSet, error) {
	if target == nil {
		return 0, ErrUserNotFound
	}
	current := target.PrincipalRoles()
	if !CanManageRoles(actor) {
		return current, ErrForbidden
	}
	if !grantableRoles.Has(role) {
		return current, withMeta(ErrUnprocessableInput, map[string]any{
			"role":   role.String(),
			"reason": "role is not grantable",
		})
	}
	return current, nil
}
