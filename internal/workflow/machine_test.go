package workflow_test

import (
	"testing"
	"time"

	"safeline/internal/domain"
	"safeline/internal/workflow"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func openObservation() domain.Observation {
	return domain.Observation{
		ID:              "obs-1",
		ReportNumber:    "BSO-2025-00001",
		ObservationType: domain.TypeUnsafeCondition,
		Severity:        domain.SeverityMedium,
		Status:          domain.StatusOpen,
		Description:     "oil spill near press line",
		Observer:        "worker-1",
		CompanyID:       "acme",
		PlantID:         "plant-a",
		CreatedAt:       "2025-03-10T08:00:00Z",
		UpdatedAt:       "2025-03-10T08:00:00Z",
		Version:         1,
	}
}

func reviewer() domain.Actor {
	return domain.Actor{ID: "hod-1", Role: domain.RoleHOD, CompanyID: "acme", PlantID: "plant-a"}
}

func closer() domain.Actor {
	return domain.Actor{ID: "safety-1", Role: domain.RoleSafetyIncharge, CompanyID: "acme", PlantID: "plant-a"}
}

func assignee(id string) domain.Actor {
	return domain.Actor{ID: id, Role: domain.RoleWorker, CompanyID: "acme", PlantID: "plant-a"}
}

func approveWithActions(t *testing.T, obs *domain.Observation, assignees ...string) {
	t.Helper()
	var specs []workflow.ActionSpec
	for _, a := range assignees {
		specs = append(specs, workflow.ActionSpec{Action: "fix it", AssignedTo: a})
	}
	_, terr := workflow.Apply(obs, reviewer(), workflow.ReviewIntent{
		Decision: workflow.DecisionApprove,
		Actions:  specs,
	}, testNow)
	if terr != nil {
		t.Fatalf("approve: %v", terr)
	}
}

func TestReviewApproveAssignsActions(t *testing.T) {
	obs := openObservation()
	effects, terr := workflow.Apply(&obs, reviewer(), workflow.ReviewIntent{
		Decision: workflow.DecisionApprove,
		Comments: "valid finding",
		Actions: []workflow.ActionSpec{
			{Action: "clean spill", AssignedTo: "worker-2", Priority: domain.SeverityHigh},
			{Action: "add drip tray", AssignedTo: "worker-3"},
		},
	}, testNow)
	if terr != nil {
		t.Fatalf("apply: %v", terr)
	}
	if obs.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", obs.Status)
	}
	if len(obs.CorrectiveActions) != 2 {
		t.Fatalf("actions = %d, want 2", len(obs.CorrectiveActions))
	}
	for _, act := range obs.CorrectiveActions {
		if act.Status != domain.ActionPending {
			t.Fatalf("action status = %s, want pending", act.Status)
		}
		if act.ID == "" {
			t.Fatalf("action id not assigned")
		}
	}
	if obs.CorrectiveActions[1].Priority != domain.SeverityMedium {
		t.Fatalf("default priority = %s, want medium", obs.CorrectiveActions[1].Priority)
	}
	if obs.Review == nil || obs.Review.ReviewedBy != "hod-1" {
		t.Fatalf("review record missing or wrong reviewer")
	}
	if len(effects) != 1 || effects[0].Type != "observation.reviewed" {
		t.Fatalf("unexpected effects %+v", effects)
	}
}

func TestReviewApproveWithoutActionsGoesStraightToPendingClosure(t *testing.T) {
	obs := openObservation()
	effects, terr := workflow.Apply(&obs, reviewer(), workflow.ReviewIntent{
		Decision: workflow.DecisionApprove,
	}, testNow)
	if terr != nil {
		t.Fatalf("apply: %v", terr)
	}
	if obs.Status != domain.StatusPendingClosure {
		t.Fatalf("status = %s, want pending_closure", obs.Status)
	}
	if obs.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}
	if len(effects) != 2 || effects[1].Type != "observation.ready_for_closure" {
		t.Fatalf("unexpected effects %+v", effects)
	}
}

func TestReviewReassignReturnsToObserver(t *testing.T) {
	obs := openObservation()
	_, terr := workflow.Apply(&obs, reviewer(), workflow.ReviewIntent{
		Decision:       workflow.DecisionReassign,
		ReassignReason: "not enough detail",
	}, testNow)
	if terr != nil {
		t.Fatalf("apply: %v", terr)
	}
	if obs.Status != domain.StatusReassigned {
		t.Fatalf("status = %s, want reassigned", obs.Status)
	}
	if obs.Review == nil || obs.Review.ReassignReason != "not enough detail" {
		t.Fatalf("reassign reason not recorded")
	}
}

func TestReviewRejectedOutsideOpen(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs, "worker-2")
	_, terr := workflow.Apply(&obs, reviewer(), workflow.ReviewIntent{Decision: workflow.DecisionApprove}, testNow)
	if terr == nil || terr.Reason != workflow.ReasonInvalidState {
		t.Fatalf("expected invalid_state, got %v", terr)
	}
}

func TestActionLifecycle(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs, "worker-2")
	actID := obs.CorrectiveActions[0].ID

	if _, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionStartIntent{ActionID: actID}, testNow); terr != nil {
		t.Fatalf("start: %v", terr)
	}
	if obs.CorrectiveActions[0].Status != domain.ActionInProgress {
		t.Fatalf("status = %s, want in_progress", obs.CorrectiveActions[0].Status)
	}

	// starting again is an invalid edge
	if _, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionStartIntent{ActionID: actID}, testNow); terr == nil {
		t.Fatalf("expected error starting an in_progress action")
	}

	rating := 4
	effects, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionCompleteIntent{
		ActionID:            actID,
		CompletionEvidence:  "spill cleaned, tray installed",
		EffectivenessRating: &rating,
	}, testNow)
	if terr != nil {
		t.Fatalf("complete: %v", terr)
	}
	act := obs.CorrectiveActions[0]
	if act.Status != domain.ActionCompleted || act.CompletedDate == nil {
		t.Fatalf("action not completed: %+v", act)
	}
	if act.EffectivenessRating == nil || *act.EffectivenessRating != 4 {
		t.Fatalf("rating not recorded")
	}
	// last action done: observation is ready for closure
	if obs.Status != domain.StatusPendingClosure {
		t.Fatalf("status = %s, want pending_closure", obs.Status)
	}
	if len(effects) != 2 || effects[1].Type != "observation.ready_for_closure" {
		t.Fatalf("unexpected effects %+v", effects)
	}
}

func TestActionCompleteIsNotReadyUntilAllDone(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs, "worker-2", "worker-3")
	first := obs.CorrectiveActions[0].ID

	if _, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionCompleteIntent{ActionID: first}, testNow); terr != nil {
		t.Fatalf("complete first: %v", terr)
	}
	if obs.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved while one action remains", obs.Status)
	}

	second := obs.CorrectiveActions[1].ID
	if _, terr := workflow.Apply(&obs, assignee("worker-3"), workflow.ActionCompleteIntent{ActionID: second}, testNow); terr != nil {
		t.Fatalf("complete second: %v", terr)
	}
	if obs.Status != domain.StatusPendingClosure {
		t.Fatalf("status = %s, want pending_closure after last action", obs.Status)
	}
}

func TestActionCompleteTwiceReturnsAlreadyCompleted(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs, "worker-2", "worker-3")
	actID := obs.CorrectiveActions[0].ID
	if _, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionCompleteIntent{ActionID: actID}, testNow); terr != nil {
		t.Fatalf("complete: %v", terr)
	}
	_, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionCompleteIntent{ActionID: actID}, testNow)
	if terr == nil || terr.Reason != workflow.ReasonAlreadyCompleted {
		t.Fatalf("expected already_completed, got %v", terr)
	}
}

func TestActionUnknownIDReturnsNotFound(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs, "worker-2")
	_, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionStartIntent{ActionID: "nope"}, testNow)
	if terr == nil || terr.Reason != workflow.ReasonNotFound {
		t.Fatalf("expected not_found, got %v", terr)
	}
}

func TestClosureApproveCloses(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs, "worker-2")
	actID := obs.CorrectiveActions[0].ID
	if _, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionCompleteIntent{ActionID: actID}, testNow); terr != nil {
		t.Fatalf("complete: %v", terr)
	}
	_, terr := workflow.Apply(&obs, closer(), workflow.ClosureIntent{Decision: workflow.DecisionApprove, Comments: "verified"}, testNow)
	if terr != nil {
		t.Fatalf("close: %v", terr)
	}
	if obs.Status != domain.StatusClosed {
		t.Fatalf("status = %s, want closed", obs.Status)
	}
	if obs.Closure == nil || obs.Closure.DecidedBy != "safety-1" {
		t.Fatalf("closure record missing")
	}
}

func TestClosureRejectReassigns(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs, "worker-2")
	actID := obs.CorrectiveActions[0].ID
	if _, terr := workflow.Apply(&obs, assignee("worker-2"), workflow.ActionCompleteIntent{ActionID: actID}, testNow); terr != nil {
		t.Fatalf("complete: %v", terr)
	}
	_, terr := workflow.Apply(&obs, closer(), workflow.ClosureIntent{Decision: workflow.DecisionReject, Comments: "evidence insufficient"}, testNow)
	if terr != nil {
		t.Fatalf("reject: %v", terr)
	}
	if obs.Status != domain.StatusReassigned {
		t.Fatalf("status = %s, want reassigned", obs.Status)
	}
	if obs.CompletedAt != nil {
		t.Fatalf("completed_at should be cleared on rejection")
	}
	// completed actions survive the rejection
	if obs.CorrectiveActions[0].Status != domain.ActionCompleted {
		t.Fatalf("completed action reverted")
	}
	// pending_closure is gone, so a closure decision no longer applies
	_, terr = workflow.Apply(&obs, closer(), workflow.ClosureIntent{Decision: workflow.DecisionApprove}, testNow)
	if terr == nil || terr.Reason != workflow.ReasonInvalidState {
		t.Fatalf("approve after reject: expected invalid_state, got %v", terr)
	}
}

func TestClosedObservationIsImmutable(t *testing.T) {
	obs := openObservation()
	approveWithActions(t, &obs)
	if _, terr := workflow.Apply(&obs, closer(), workflow.ClosureIntent{Decision: workflow.DecisionApprove}, testNow); terr != nil {
		t.Fatalf("close: %v", terr)
	}
	desc := "after the fact"
	intents := []workflow.Intent{
		workflow.ReviewIntent{Decision: workflow.DecisionApprove},
		workflow.ActionStartIntent{ActionID: "x"},
		workflow.ActionCompleteIntent{ActionID: "x"},
		workflow.ClosureIntent{Decision: workflow.DecisionApprove},
		workflow.EditIntent{Description: &desc},
		workflow.ResubmitIntent{},
	}
	for _, in := range intents {
		_, terr := workflow.Apply(&obs, closer(), in, testNow)
		if terr == nil || terr.Reason != workflow.ReasonInvalidState {
			t.Fatalf("%s on closed: expected invalid_state, got %v", in.Name(), terr)
		}
	}
}

func TestEditSeverityOnlyWhileOpen(t *testing.T) {
	obs := openObservation()
	high := domain.SeverityHigh
	if _, terr := workflow.Apply(&obs, assignee("worker-1"), workflow.EditIntent{Severity: &high}, testNow); terr != nil {
		t.Fatalf("edit open: %v", terr)
	}
	if obs.Severity != domain.SeverityHigh {
		t.Fatalf("severity not updated")
	}

	approveWithActions(t, &obs, "worker-2")
	low := domain.SeverityLow
	_, terr := workflow.Apply(&obs, assignee("worker-1"), workflow.EditIntent{Severity: &low}, testNow)
	if terr == nil || terr.Reason != workflow.ReasonInvalidState || terr.Field != "severity" {
		t.Fatalf("expected invalid_state on severity, got %v", terr)
	}
	// description edits are still fine after approval
	desc := "updated wording"
	if _, terr := workflow.Apply(&obs, assignee("worker-1"), workflow.EditIntent{Description: &desc}, testNow); terr != nil {
		t.Fatalf("edit description: %v", terr)
	}
}

func TestResubmitClearsReviewAndReturnsToOpen(t *testing.T) {
	obs := openObservation()
	_, terr := workflow.Apply(&obs, reviewer(), workflow.ReviewIntent{
		Decision:       workflow.DecisionReassign,
		ReassignReason: "wrong area",
	}, testNow)
	if terr != nil {
		t.Fatalf("reassign: %v", terr)
	}
	if _, terr := workflow.Apply(&obs, assignee("worker-1"), workflow.ResubmitIntent{Comments: "fixed area"}, testNow); terr != nil {
		t.Fatalf("resubmit: %v", terr)
	}
	if obs.Status != domain.StatusOpen {
		t.Fatalf("status = %s, want open", obs.Status)
	}
	if obs.Review != nil {
		t.Fatalf("stale review record kept after resubmit")
	}
}

func TestResubmitOnlyFromReassigned(t *testing.T) {
	obs := openObservation()
	_, terr := workflow.Apply(&obs, assignee("worker-1"), workflow.ResubmitIntent{}, testNow)
	if terr == nil || terr.Reason != workflow.ReasonInvalidState {
		t.Fatalf("expected invalid_state, got %v", terr)
	}
}

func TestIntentValidation(t *testing.T) {
	cases := []struct {
		name   string
		intent workflow.Intent
	}{
		{"review bad decision", workflow.ReviewIntent{Decision: "maybe"}},
		{"reassign without reason", workflow.ReviewIntent{Decision: workflow.DecisionReassign}},
		{"reassign with actions", workflow.ReviewIntent{
			Decision:       workflow.DecisionReassign,
			ReassignReason: "r",
			Actions:        []workflow.ActionSpec{{Action: "a", AssignedTo: "w"}},
		}},
		{"approve action missing assignee", workflow.ReviewIntent{
			Decision: workflow.DecisionApprove,
			Actions:  []workflow.ActionSpec{{Action: "a"}},
		}},
		{"start without id", workflow.ActionStartIntent{}},
		{"complete rating out of range", func() workflow.Intent {
			r := 6
			return workflow.ActionCompleteIntent{ActionID: "a", EffectivenessRating: &r}
		}()},
		{"closure bad decision", workflow.ClosureIntent{Decision: "later"}},
		{"empty edit", workflow.EditIntent{}},
	}
	for _, tc := range cases {
		if err := tc.intent.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestTransitionErrorRetriable(t *testing.T) {
	conflict := workflow.Denyf(workflow.ReasonConcurrentModification, "version", "stale")
	if !conflict.Retriable() {
		t.Fatalf("concurrent_modification should be retriable")
	}
	denied := workflow.Denyf(workflow.ReasonInsufficientRole, "role", "no")
	if denied.Retriable() {
		t.Fatalf("insufficient_role must not be retriable")
	}
}
