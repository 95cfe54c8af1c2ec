package scope

import (
	"agriloan/internal/domain/actor"
	"agriloan/internal/domain/apperr"
)

type Action string

const (
	ActionSubmit    Action = "submit"
	ActionListOwn   Action = "list_own"
	ActionViewScope Action = "view_scoped"
	ActionAssign    Action = "assign"
	ActionDecide    Action = "decide"
	ActionDeploy    Action = "deploy"
)

type Decision struct {
	Allowed bool
	Reason  string
}

// Err is nil for an allowed decision and an apperr.ErrForbidden otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden("%s", d.Reason)
}

var allowedRoles = map[Action][]actor.Role{
	ActionSubmit:    {actor.RoleFarmer},
	ActionListOwn:   {actor.RoleFarmer},
	ActionViewScope: {actor.RoleLoanOfficer, actor.RoleSupervisor, actor.RoleAdmin},
	ActionAssign:    {actor.RoleSupervisor, actor.RoleAdmin},
	ActionDecide:    {actor.RoleSupervisor, actor.RoleAdmin},
	ActionDeploy:    {actor.RoleAdmin},
}

// Authorize is the role half of every access check; district scope is the other.
func Authorize(a actor.Actor, act Action) Decision {
	roles, ok := allowedRoles[act]
	if !ok {
		return Decision{Reason: "unknown action " + string(act)}
	}
	for _, r := range roles {
		if a.Role == r {
			return Decision{Allowed: true}
		}
	}
	return Decision{Reason: "role " + string(a.Role) + " may not " + string(act)}
}
