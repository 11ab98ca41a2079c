package workflow

import (
	"time"

	"github.com/google/uuid"

	"safeline/internal/domain"
)

// Effect is a domain event produced by a successful transition. The engine
// appends effects to the event log in the same transaction as the mutation.
type Effect struct {
	Type    string
	Payload map[string]any
}

// Apply runs the transition for an already-authorized intent against the
// observation snapshot, mutating it in place. The caller (engine) holds the
// aggregate lock and persists the result atomically; on error the snapshot
// must be discarded.
//
// State applicability is re-checked here even though the guard has evaluated
// it: the machine is the authority on which edges exist.
func Apply(obs *domain.Observation, actor domain.Actor, intent Intent, now time.Time) ([]Effect, *TransitionError) {
	if obs.Status == domain.StatusClosed {
		return nil, Denyf(ReasonInvalidState, "status", "observation %s is closed", obs.ReportNumber)
	}
	ts := now.UTC().Format(time.RFC3339)

	var (
		effects []Effect
		terr    *TransitionError
	)
	switch in := intent.(type) {
	case ReviewIntent:
		effects, terr = applyReview(obs, actor, in, ts)
	case ActionStartIntent:
		effects, terr = applyActionStart(obs, in)
	case ActionCompleteIntent:
		effects, terr = applyActionComplete(obs, in, ts)
	case ClosureIntent:
		effects, terr = applyClosure(obs, actor, in, ts)
	case EditIntent:
		effects, terr = applyEdit(obs, in)
	case ResubmitIntent:
		effects, terr = applyResubmit(obs, in)
	default:
		return nil, Denyf(ReasonInvalidState, "", "unknown intent %q", intent.Name())
	}
	if terr != nil {
		return nil, terr
	}
	obs.UpdatedAt = ts
	return effects, nil
}

func notApplicable(name string, status domain.Status) *TransitionError {
	return Denyf(ReasonInvalidState, "status", "%s not applicable in state %s", name, status)
}

func applyReview(obs *domain.Observation, actor domain.Actor, in ReviewIntent, ts string) ([]Effect, *TransitionError) {
	if obs.Status != domain.StatusOpen {
		return nil, notApplicable(in.Name(), obs.Status)
	}
	obs.Review = &domain.Review{
		ReviewedBy:     actor.ID,
		ReviewedAt:     ts,
		Decision:       in.Decision,
		Comments:       in.Comments,
		ReassignReason: in.ReassignReason,
	}
	if in.Decision == DecisionReassign {
		obs.Status = domain.StatusReassigned
		return []Effect{{Type: "observation.reassigned", Payload: map[string]any{
			"reviewed_by": actor.ID,
			"reason":      in.ReassignReason,
		}}}, nil
	}
	for _, spec := range in.Actions {
		priority := spec.Priority
		if priority == "" {
			priority = domain.SeverityMedium
		}
		obs.CorrectiveActions = append(obs.CorrectiveActions, domain.CorrectiveAction{
			ID:            uuid.New().String(),
			ObservationID: obs.ID,
			Action:        spec.Action,
			AssignedTo:    spec.AssignedTo,
			DueDate:       spec.DueDate,
			Priority:      priority,
			Status:        domain.ActionPending,
			CreatedAt:     ts,
		})
	}
	effects := []Effect{{Type: "observation.reviewed", Payload: map[string]any{
		"reviewed_by": actor.ID,
		"decision":    in.Decision,
		"actions":     len(in.Actions),
	}}}
	// Zero assigned actions are vacuously complete: skip straight to the
	// closure queue.
	if obs.AllActionsCompleted() {
		obs.Status = domain.StatusPendingClosure
		obs.CompletedAt = &ts
		effects = append(effects, Effect{Type: "observation.ready_for_closure", Payload: map[string]any{}})
	} else {
		obs.Status = domain.StatusApproved
	}
	return effects, nil
}

func applyActionStart(obs *domain.Observation, in ActionStartIntent) ([]Effect, *TransitionError) {
	if obs.Status != domain.StatusApproved {
		return nil, notApplicable(in.Name(), obs.Status)
	}
	act := obs.Action(in.ActionID)
	if act == nil {
		return nil, Denyf(ReasonNotFound, "action_id", "corrective action %s not found", in.ActionID)
	}
	if act.Status == domain.ActionCompleted {
		return nil, Denyf(ReasonAlreadyCompleted, "action_id", "corrective action %s already completed", in.ActionID)
	}
	if act.Status != domain.ActionPending {
		return nil, Denyf(ReasonInvalidState, "action_id", "corrective action %s already %s", in.ActionID, act.Status)
	}
	act.Status = domain.ActionInProgress
	return []Effect{{Type: "action.started", Payload: map[string]any{
		"action_id": act.ID,
		"assignee":  act.AssignedTo,
	}}}, nil
}

func applyActionComplete(obs *domain.Observation, in ActionCompleteIntent, ts string) ([]Effect, *TransitionError) {
	if obs.Status != domain.StatusApproved {
		return nil, notApplicable(in.Name(), obs.Status)
	}
	act := obs.Action(in.ActionID)
	if act == nil {
		return nil, Denyf(ReasonNotFound, "action_id", "corrective action %s not found", in.ActionID)
	}
	if act.Status == domain.ActionCompleted {
		return nil, Denyf(ReasonAlreadyCompleted, "action_id", "corrective action %s already completed", in.ActionID)
	}
	act.Status = domain.ActionCompleted
	act.CompletedDate = &ts
	act.CompletionEvidence = in.CompletionEvidence
	act.EffectivenessRating = in.EffectivenessRating
	act.EvidencePhotos = in.EvidencePhotos
	effects := []Effect{{Type: "action.completed", Payload: map[string]any{
		"action_id": act.ID,
		"assignee":  act.AssignedTo,
	}}}
	// The all-completed check runs against the snapshot inside the same
	// transaction as this mutation, so two assignees racing on the last two
	// actions cannot both observe "not all done yet".
	if obs.AllActionsCompleted() {
		obs.Status = domain.StatusPendingClosure
		obs.CompletedAt = &ts
		effects = append(effects, Effect{Type: "observation.ready_for_closure", Payload: map[string]any{}})
	}
	return effects, nil
}

func applyClosure(obs *domain.Observation, actor domain.Actor, in ClosureIntent, ts string) ([]Effect, *TransitionError) {
	if obs.Status != domain.StatusPendingClosure {
		return nil, notApplicable(in.Name(), obs.Status)
	}
	obs.Closure = &domain.Closure{
		DecidedBy: actor.ID,
		DecidedAt: ts,
		Decision:  in.Decision,
		Comments:  in.Comments,
	}
	if in.Decision == DecisionApprove {
		obs.Status = domain.StatusClosed
		return []Effect{{Type: "observation.closed", Payload: map[string]any{"decided_by": actor.ID}}}, nil
	}
	// Rejected closures send the observation back for rework; corrective
	// actions stay as they are.
	obs.Status = domain.StatusReassigned
	obs.CompletedAt = nil
	return []Effect{{Type: "observation.closure_rejected", Payload: map[string]any{
		"decided_by": actor.ID,
		"comments":   in.Comments,
	}}}, nil
}

func applyEdit(obs *domain.Observation, in EditIntent) ([]Effect, *TransitionError) {
	payload := map[string]any{}
	if in.Severity != nil {
		if obs.Status != domain.StatusOpen {
			return nil, Denyf(ReasonInvalidState, "severity", "severity is only mutable while open, status is %s", obs.Status)
		}
		obs.Severity = *in.Severity
		payload["severity"] = string(*in.Severity)
	}
	if in.Description != nil {
		obs.Description = *in.Description
		payload["description"] = true
	}
	if in.AreaID != nil {
		obs.AreaID = *in.AreaID
		payload["area_id"] = *in.AreaID
	}
	return []Effect{{Type: "observation.updated", Payload: payload}}, nil
}

func applyResubmit(obs *domain.Observation, in ResubmitIntent) ([]Effect, *TransitionError) {
	if obs.Status != domain.StatusReassigned {
		return nil, notApplicable(in.Name(), obs.Status)
	}
	obs.Status = domain.StatusOpen
	obs.Review = nil
	obs.Closure = nil
	return []Effect{{Type: "observation.resubmitted", Payload: map[string]any{"comments": in.Comments}}}, nil
}
