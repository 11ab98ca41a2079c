// Package guard is the authorization predicate evaluated before any state
// transition is applied. It composes the role capability table with
// record-specific context and tenant scope, and never mutates anything.
package guard

import (
	"safeline/internal/domain"
	"safeline/internal/rbac"
	"safeline/internal/workflow"
)

// Guard approves or denies a requested transition. Rules run in a fixed
// order: base capability, then per-intent record context, then tenant scope.
type Guard struct {
	Capabilities rbac.Table
}

// New returns a guard over the given capability table.
func New(table rbac.Table) Guard {
	return Guard{Capabilities: table}
}

// CanTransition returns nil when the actor may attempt the intent on the
// observation, or a typed denial. It decides authorization only; the state
// machine owns the actual transition.
func (g Guard) CanTransition(actor domain.Actor, obs *domain.Observation, intent workflow.Intent) *workflow.TransitionError {
	// A closed observation is immutable for everyone, whatever the intent.
	if obs.Status == domain.StatusClosed {
		return workflow.Denyf(workflow.ReasonInvalidState, "status",
			"observation %s is closed", obs.ReportNumber)
	}
	module, action := intent.Capability()
	if !g.Capabilities.Can(actor.Role, module, action) {
		return workflow.Denyf(workflow.ReasonInsufficientRole, "role",
			"role %s may not %s %s", actor.Role, action, module)
	}
	if terr := g.checkContext(actor, obs, intent); terr != nil {
		return terr
	}
	return g.checkScope(actor, obs)
}

func (g Guard) checkContext(actor domain.Actor, obs *domain.Observation, intent workflow.Intent) *workflow.TransitionError {
	switch in := intent.(type) {
	case workflow.ReviewIntent:
		if !isReviewer(actor.Role) {
			return workflow.Denyf(workflow.ReasonInsufficientRole, "role",
				"role %s may not review observations", actor.Role)
		}
		if obs.Status != domain.StatusOpen {
			return workflow.Denyf(workflow.ReasonInvalidState, "status",
				"review requires status open, got %s", obs.Status)
		}
	case workflow.ActionStartIntent:
		return g.checkAssignee(actor, obs, in.ActionID)
	case workflow.ActionCompleteIntent:
		return g.checkAssignee(actor, obs, in.ActionID)
	case workflow.ClosureIntent:
		if !isCloser(actor.Role) {
			return workflow.Denyf(workflow.ReasonInsufficientRole, "role",
				"role %s may not decide closures", actor.Role)
		}
		if obs.Status != domain.StatusPendingClosure {
			return workflow.Denyf(workflow.ReasonInvalidState, "status",
				"closure requires status pending_closure, got %s", obs.Status)
		}
	case workflow.EditIntent:
		return g.checkEditor(actor, obs)
	case workflow.ResubmitIntent:
		if actor.ID != obs.Observer {
			return workflow.Denyf(workflow.ReasonNotAssignee, "observer",
				"only the observer may resubmit")
		}
		if obs.Status != domain.StatusReassigned {
			return workflow.Denyf(workflow.ReasonInvalidState, "status",
				"resubmit requires status reassigned, got %s", obs.Status)
		}
	default:
		return workflow.Denyf(workflow.ReasonInvalidState, "", "unknown intent %q", intent.Name())
	}
	return nil
}

// checkAssignee allows only the action's own assignee, and only while the
// action is not completed yet.
func (g Guard) checkAssignee(actor domain.Actor, obs *domain.Observation, actionID string) *workflow.TransitionError {
	act := obs.Action(actionID)
	if act == nil {
		return workflow.Denyf(workflow.ReasonNotFound, "action_id",
			"corrective action %s not found", actionID)
	}
	if act.AssignedTo != actor.ID {
		return workflow.Denyf(workflow.ReasonNotAssignee, "action_id",
			"corrective action %s is assigned to %s", actionID, act.AssignedTo)
	}
	if act.Status == domain.ActionCompleted {
		return workflow.Denyf(workflow.ReasonAlreadyCompleted, "action_id",
			"corrective action %s already completed", actionID)
	}
	return nil
}

// checkEditor allows the observer while the observation is open, or a
// plant_head/safety_incharge override in any state short of closed.
func (g Guard) checkEditor(actor domain.Actor, obs *domain.Observation) *workflow.TransitionError {
	if obs.Status == domain.StatusClosed {
		return workflow.Denyf(workflow.ReasonInvalidState, "status",
			"observation %s is closed", obs.ReportNumber)
	}
	if actor.Role == domain.RolePlantHead || actor.Role == domain.RoleSafetyIncharge {
		return nil
	}
	if actor.ID != obs.Observer {
		return workflow.Denyf(workflow.ReasonNotAssignee, "observer",
			"only the observer may edit this observation")
	}
	if obs.Status != domain.StatusOpen && obs.Status != domain.StatusReassigned {
		return workflow.Denyf(workflow.ReasonInvalidState, "status",
			"observer edits require status open, got %s", obs.Status)
	}
	return nil
}

// checkScope enforces multi-tenant isolation. company_owner has global
// scope; everyone else must share the observation's company and plant.
func (g Guard) checkScope(actor domain.Actor, obs *domain.Observation) *workflow.TransitionError {
	if actor.Role == domain.RoleCompanyOwner {
		return nil
	}
	if actor.CompanyID != obs.CompanyID {
		return workflow.Denyf(workflow.ReasonScopeMismatch, "company_id",
			"actor company %s does not match observation company %s", actor.CompanyID, obs.CompanyID)
	}
	if actor.PlantID != "" && obs.PlantID != "" && actor.PlantID != obs.PlantID {
		return workflow.Denyf(workflow.ReasonScopeMismatch, "plant_id",
			"actor plant %s does not match observation plant %s", actor.PlantID, obs.PlantID)
	}
	return nil
}

// company_owner is deliberately absent from both sets: global reach covers
// scope only, never the supervisory context rules.
func isReviewer(role domain.Role) bool {
	switch role {
	case domain.RoleHOD, domain.RolePlantHead, domain.RoleSafetyIncharge:
		return true
	}
	return false
}

func isCloser(role domain.Role) bool {
	switch role {
	case domain.RoleSafetyIncharge, domain.RolePlantHead:
		return true
	}
	return false
}
