package guard_test

import (
	"testing"

	"safeline/internal/domain"
	"safeline/internal/guard"
	"safeline/internal/rbac"
	"safeline/internal/workflow"
)

func newGuard() guard.Guard {
	return guard.New(rbac.Default())
}

func actor(id string, role domain.Role) domain.Actor {
	return domain.Actor{ID: id, Role: role, CompanyID: "acme", PlantID: "plant-a"}
}

func observation(status domain.Status) *domain.Observation {
	return &domain.Observation{
		ID:           "obs-1",
		ReportNumber: "BSO-2025-00004",
		Status:       status,
		Observer:     "worker-1",
		CompanyID:    "acme",
		PlantID:      "plant-a",
		CorrectiveActions: []domain.CorrectiveAction{
			{ID: "act-1", AssignedTo: "worker-2", Status: domain.ActionPending},
			{ID: "act-2", AssignedTo: "worker-3", Status: domain.ActionCompleted},
		},
	}
}

func TestReviewRequiresSupervisoryRole(t *testing.T) {
	g := newGuard()
	obs := observation(domain.StatusOpen)
	intent := workflow.ReviewIntent{Decision: workflow.DecisionApprove}

	for _, role := range []domain.Role{domain.RoleWorker, domain.RoleContractor} {
		terr := g.CanTransition(actor("a1", role), obs, intent)
		if terr == nil || terr.Reason != workflow.ReasonInsufficientRole {
			t.Errorf("%s review: expected insufficient_role, got %v", role, terr)
		}
	}
	for _, role := range []domain.Role{domain.RoleHOD, domain.RolePlantHead, domain.RoleSafetyIncharge} {
		if terr := g.CanTransition(actor("a1", role), obs, intent); terr != nil {
			t.Errorf("%s review: unexpected denial %v", role, terr)
		}
	}
}

func TestReviewRequiresOpenStatus(t *testing.T) {
	g := newGuard()
	terr := g.CanTransition(actor("h1", domain.RoleHOD), observation(domain.StatusApproved), workflow.ReviewIntent{Decision: workflow.DecisionApprove})
	if terr == nil || terr.Reason != workflow.ReasonInvalidState {
		t.Fatalf("expected invalid_state, got %v", terr)
	}
}

func TestClosureRequiresSafetyLeadership(t *testing.T) {
	g := newGuard()
	obs := observation(domain.StatusPendingClosure)
	intent := workflow.ClosureIntent{Decision: workflow.DecisionApprove}

	// hod holds no approve capability at all
	terr := g.CanTransition(actor("h1", domain.RoleHOD), obs, intent)
	if terr == nil || terr.Reason != workflow.ReasonInsufficientRole {
		t.Fatalf("hod closure: expected insufficient_role, got %v", terr)
	}
	terr = g.CanTransition(actor("w1", domain.RoleWorker), obs, intent)
	if terr == nil || terr.Reason != workflow.ReasonInsufficientRole {
		t.Fatalf("worker closure: expected insufficient_role, got %v", terr)
	}
	for _, role := range []domain.Role{domain.RoleSafetyIncharge, domain.RolePlantHead} {
		if terr := g.CanTransition(actor("s1", role), obs, intent); terr != nil {
			t.Errorf("%s closure: unexpected denial %v", role, terr)
		}
	}
}

func TestActionRequiresAssignee(t *testing.T) {
	g := newGuard()
	obs := observation(domain.StatusApproved)

	if terr := g.CanTransition(actor("worker-2", domain.RoleWorker), obs, workflow.ActionStartIntent{ActionID: "act-1"}); terr != nil {
		t.Fatalf("assignee start: unexpected denial %v", terr)
	}
	terr := g.CanTransition(actor("worker-9", domain.RoleWorker), obs, workflow.ActionStartIntent{ActionID: "act-1"})
	if terr == nil || terr.Reason != workflow.ReasonNotAssignee {
		t.Fatalf("non-assignee: expected not_assignee, got %v", terr)
	}
	// even a safety_incharge cannot complete someone else's action
	terr = g.CanTransition(actor("s1", domain.RoleSafetyIncharge), obs, workflow.ActionCompleteIntent{ActionID: "act-1"})
	if terr == nil || terr.Reason != workflow.ReasonNotAssignee {
		t.Fatalf("supervisor as non-assignee: expected not_assignee, got %v", terr)
	}
	terr = g.CanTransition(actor("worker-3", domain.RoleWorker), obs, workflow.ActionCompleteIntent{ActionID: "act-2"})
	if terr == nil || terr.Reason != workflow.ReasonAlreadyCompleted {
		t.Fatalf("completed action: expected already_completed, got %v", terr)
	}
	terr = g.CanTransition(actor("worker-2", domain.RoleWorker), obs, workflow.ActionStartIntent{ActionID: "missing"})
	if terr == nil || terr.Reason != workflow.ReasonNotFound {
		t.Fatalf("missing action: expected not_found, got %v", terr)
	}
}

func TestScopeIsolation(t *testing.T) {
	g := newGuard()
	obs := observation(domain.StatusOpen)

	other := domain.Actor{ID: "h2", Role: domain.RoleHOD, CompanyID: "globex", PlantID: "plant-a"}
	terr := g.CanTransition(other, obs, workflow.ReviewIntent{Decision: workflow.DecisionApprove})
	if terr == nil || terr.Reason != workflow.ReasonScopeMismatch || terr.Field != "company_id" {
		t.Fatalf("cross-company: expected scope_mismatch on company_id, got %v", terr)
	}

	wrongPlant := domain.Actor{ID: "h3", Role: domain.RoleHOD, CompanyID: "acme", PlantID: "plant-b"}
	terr = g.CanTransition(wrongPlant, obs, workflow.ReviewIntent{Decision: workflow.DecisionApprove})
	if terr == nil || terr.Reason != workflow.ReasonScopeMismatch || terr.Field != "plant_id" {
		t.Fatalf("cross-plant: expected scope_mismatch on plant_id, got %v", terr)
	}

	// company_owner crosses both boundaries on intents whose context
	// rules they satisfy, here editing an observation they raised
	owner := domain.Actor{ID: "worker-1", Role: domain.RoleCompanyOwner, CompanyID: "globex"}
	desc := "clarified location"
	if terr := g.CanTransition(owner, obs, workflow.EditIntent{Description: &desc}); terr != nil {
		t.Fatalf("company_owner: unexpected denial %v", terr)
	}
}

func TestOwnerHoldsNoSupervisoryContext(t *testing.T) {
	g := newGuard()
	owner := actor("o1", domain.RoleCompanyOwner)

	terr := g.CanTransition(owner, observation(domain.StatusOpen), workflow.ReviewIntent{Decision: workflow.DecisionApprove})
	if terr == nil || terr.Reason != workflow.ReasonInsufficientRole {
		t.Fatalf("owner review: expected insufficient_role, got %v", terr)
	}
	terr = g.CanTransition(owner, observation(domain.StatusPendingClosure), workflow.ClosureIntent{Decision: workflow.DecisionApprove})
	if terr == nil || terr.Reason != workflow.ReasonInsufficientRole {
		t.Fatalf("owner closure: expected insufficient_role, got %v", terr)
	}
}

func TestClosedIsDeniedBeforeCapability(t *testing.T) {
	g := newGuard()
	obs := observation(domain.StatusClosed)
	// a worker lacks the review capability, but the closed check wins so the
	// answer is invalid_state, not insufficient_role
	terr := g.CanTransition(actor("w1", domain.RoleWorker), obs, workflow.ReviewIntent{Decision: workflow.DecisionApprove})
	if terr == nil || terr.Reason != workflow.ReasonInvalidState {
		t.Fatalf("expected invalid_state, got %v", terr)
	}
	terr = g.CanTransition(actor("o1", domain.RoleCompanyOwner), obs, workflow.EditIntent{})
	if terr == nil || terr.Reason != workflow.ReasonInvalidState {
		t.Fatalf("owner edit on closed: expected invalid_state, got %v", terr)
	}
}

func TestEditorRules(t *testing.T) {
	g := newGuard()
	desc := "better wording"
	edit := workflow.EditIntent{Description: &desc}

	// observer edits while open and reassigned
	for _, status := range []domain.Status{domain.StatusOpen, domain.StatusReassigned} {
		if terr := g.CanTransition(actor("worker-1", domain.RoleWorker), observation(status), edit); terr != nil {
			t.Errorf("observer edit in %s: unexpected denial %v", status, terr)
		}
	}
	// observer cannot edit once approved
	terr := g.CanTransition(actor("worker-1", domain.RoleWorker), observation(domain.StatusApproved), edit)
	if terr == nil || terr.Reason != workflow.ReasonInvalidState {
		t.Fatalf("observer edit approved: expected invalid_state, got %v", terr)
	}
	// another worker never edits someone else's observation
	terr = g.CanTransition(actor("worker-5", domain.RoleWorker), observation(domain.StatusOpen), edit)
	if terr == nil || terr.Reason != workflow.ReasonNotAssignee {
		t.Fatalf("stranger edit: expected not_assignee, got %v", terr)
	}
	// plant_head override works in any state short of closed
	if terr := g.CanTransition(actor("p1", domain.RolePlantHead), observation(domain.StatusPendingClosure), edit); terr != nil {
		t.Fatalf("plant_head override: unexpected denial %v", terr)
	}
}

func TestResubmitOnlyObserver(t *testing.T) {
	g := newGuard()
	obs := observation(domain.StatusReassigned)
	if terr := g.CanTransition(actor("worker-1", domain.RoleWorker), obs, workflow.ResubmitIntent{}); terr != nil {
		t.Fatalf("observer resubmit: unexpected denial %v", terr)
	}
	terr := g.CanTransition(actor("worker-2", domain.RoleWorker), obs, workflow.ResubmitIntent{})
	if terr == nil || terr.Reason != workflow.ReasonNotAssignee {
		t.Fatalf("stranger resubmit: expected not_assignee, got %v", terr)
	}
}
