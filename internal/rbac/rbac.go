// Package rbac holds the role/capability table: which actions a role may
// ever perform, independent of any specific record. Record-level context
// (assignee identity, plant scope, current state) is internal/guard's job.
package rbac

import "safeline/internal/domain"

// Module groups capabilities by the part of the system they touch.
type Module string

const (
	ModuleObservations Module = "observations"
	ModuleActions      Module = "actions"
	ModuleReports      Module = "reports"
)

// Action is a capability category.
type Action string

const (
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionReview  Action = "review"
	ActionApprove Action = "approve"
	ActionDelete  Action = "delete"
	ActionManage  Action = "manage"
)

// Capability is one (module, action) pair a role is allowed.
type Capability struct {
	Module Module
	Action Action
}

// Table maps roles to their capability set. It is a pure lookup; callers
// inject it so tests can substitute a narrower table.
type Table map[domain.Role][]Capability

// Default returns the capability matrix for the built-in roles.
func Default() Table {
	all := func(m Module) []Capability {
		return []Capability{
			{m, ActionCreate}, {m, ActionEdit}, {m, ActionReview},
			{m, ActionApprove}, {m, ActionDelete}, {m, ActionManage},
		}
	}
	manager := func(m Module) []Capability {
		return []Capability{
			{m, ActionCreate}, {m, ActionEdit}, {m, ActionReview},
			{m, ActionApprove}, {m, ActionManage},
		}
	}
	return Table{
		domain.RoleCompanyOwner: join(all(ModuleObservations), all(ModuleActions), all(ModuleReports)),
		domain.RolePlantHead:    join(manager(ModuleObservations), manager(ModuleActions), manager(ModuleReports)),
		domain.RoleSafetyIncharge: join(
			manager(ModuleObservations), manager(ModuleActions), manager(ModuleReports),
		),
		domain.RoleHOD: {
			{ModuleObservations, ActionCreate},
			{ModuleObservations, ActionEdit},
			{ModuleObservations, ActionReview},
			{ModuleActions, ActionEdit},
			{ModuleReports, ActionCreate},
		},
		domain.RoleWorker: {
			{ModuleObservations, ActionCreate},
			{ModuleObservations, ActionEdit},
			{ModuleActions, ActionEdit},
		},
		domain.RoleContractor: {
			{ModuleObservations, ActionCreate},
			{ModuleObservations, ActionEdit},
			{ModuleActions, ActionEdit},
		},
	}
}

// Capabilities returns the capability set for a role. Unknown roles get nil,
// which denies everything.
func (t Table) Capabilities(role domain.Role) []Capability {
	return t[role]
}

// Can reports whether the role holds the (module, action) capability.
func (t Table) Can(role domain.Role, module Module, action Action) bool {
	for _, c := range t[role] {
		if c.Module == module && c.Action == action {
			return true
		}
	}
	return false
}

func join(sets ...[]Capability) []Capability {
	var out []Capability
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
