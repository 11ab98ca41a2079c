package workflow

import (
	"errors"
	"fmt"

	"safeline/internal/domain"
	"safeline/internal/rbac"
)

// Intent is a discriminated workflow event. Each variant carries exactly the
// payload its transition needs, so malformed requests fail at the boundary
// instead of deep inside the state machine.
type Intent interface {
	// Name labels the intent in events and error messages.
	Name() string
	// Capability is the base (module, action) pair the actor's role must
	// hold before any record-specific rule is considered.
	Capability() (rbac.Module, rbac.Action)
	// Validate rejects structurally malformed payloads.
	Validate() error
}

// ActionSpec describes one corrective action to append on review approval.
type ActionSpec struct {
	Action     string          `json:"action"`
	AssignedTo string          `json:"assigned_to"`
	DueDate    string          `json:"due_date,omitempty" format:"date-time"`
	Priority   domain.Severity `json:"priority" enum:"low,medium,high,critical"`
}

const (
	DecisionApprove  = "approve"
	DecisionReassign = "reassign"
	DecisionReject   = "reject"
)

// ReviewIntent decides an open observation: approve (optionally assigning
// corrective actions) or reassign back to the observer.
type ReviewIntent struct {
	Decision       string       `json:"decision" enum:"approve,reassign"`
	Comments       string       `json:"comments,omitempty"`
	ReassignReason string       `json:"reassign_reason,omitempty"`
	Actions        []ActionSpec `json:"actions,omitempty"`
}

func (ReviewIntent) Name() string { return "review" }
func (ReviewIntent) Capability() (rbac.Module, rbac.Action) { return rbac.ModuleObservations, rbac.ActionReview }

func (in ReviewIntent) Validate() error {
	switch in.Decision {
	case DecisionApprove:
		for i, a := range in.Actions {
			if a.Action == "" {
				return fmt.Errorf("actions[%d].action is required", i)
			}
			if a.AssignedTo == "" {
				return fmt.Errorf("actions[%d].assigned_to is required", i)
			}
			if a.Priority != "" && !a.Priority.Valid() {
				return fmt.Errorf("actions[%d].priority %q unknown", i, a.Priority)
			}
		}
		return nil
	case DecisionReassign:
		if in.ReassignReason == "" {
			return errors.New("reassign_reason is required")
		}
		if len(in.Actions) > 0 {
			return errors.New("actions not allowed on reassign")
		}
		return nil
	default:
		return fmt.Errorf("decision must be approve or reassign, got %q", in.Decision)
	}
}

// ActionStartIntent moves one corrective action from pending to in_progress.
type ActionStartIntent struct {
	ActionID string `json:"action_id"`
}

func (ActionStartIntent) Name() string { return "action.start" }
func (ActionStartIntent) Capability() (rbac.Module, rbac.Action) { return rbac.ModuleActions, rbac.ActionEdit }

func (in ActionStartIntent) Validate() error {
	if in.ActionID == "" {
		return errors.New("action_id is required")
	}
	return nil
}

// ActionCompleteIntent completes one corrective action with its evidence.
type ActionCompleteIntent struct {
	ActionID            string   `json:"action_id"`
	CompletionEvidence  string   `json:"completion_evidence,omitempty"`
	EffectivenessRating *int     `json:"effectiveness_rating,omitempty" minimum:"1" maximum:"5"`
	EvidencePhotos      []string `json:"evidence_photos,omitempty"`
}

func (ActionCompleteIntent) Name() string { return "action.complete" }
func (ActionCompleteIntent) Capability() (rbac.Module, rbac.Action) {
	return rbac.ModuleActions, rbac.ActionEdit
}

func (in ActionCompleteIntent) Validate() error {
	if in.ActionID == "" {
		return errors.New("action_id is required")
	}
	if in.EffectivenessRating != nil && (*in.EffectivenessRating < 1 || *in.EffectivenessRating > 5) {
		return fmt.Errorf("effectiveness_rating must be 1..5, got %d", *in.EffectivenessRating)
	}
	return nil
}

// ClosureIntent is the final accept/reject decision on a fully actioned
// observation.
type ClosureIntent struct {
	Decision string `json:"decision" enum:"approve,reject"`
	Comments string `json:"comments,omitempty"`
}

func (ClosureIntent) Name() string { return "closure" }
func (ClosureIntent) Capability() (rbac.Module, rbac.Action) {
	return rbac.ModuleObservations, rbac.ActionApprove
}

func (in ClosureIntent) Validate() error {
	if in.Decision != DecisionApprove && in.Decision != DecisionReject {
		return fmt.Errorf("decision must be approve or reject, got %q", in.Decision)
	}
	return nil
}

// EditIntent mutates observation fields. Severity may only change while the
// observation is still open.
type EditIntent struct {
	Severity    *domain.Severity `json:"severity,omitempty" enum:"low,medium,high,critical"`
	Description *string          `json:"description,omitempty"`
	AreaID      *string          `json:"area_id,omitempty"`
}

func (EditIntent) Name() string { return "edit" }
func (EditIntent) Capability() (rbac.Module, rbac.Action) { return rbac.ModuleObservations, rbac.ActionEdit }

func (in EditIntent) Validate() error {
	if in.Severity == nil && in.Description == nil && in.AreaID == nil {
		return errors.New("nothing to edit")
	}
	if in.Severity != nil && !in.Severity.Valid() {
		return fmt.Errorf("severity %q unknown", *in.Severity)
	}
	return nil
}

// ResubmitIntent reopens a reassigned observation after the observer has
// reworked it. The stale review is cleared so the next reviewer starts fresh.
type ResubmitIntent struct {
	Comments string `json:"comments,omitempty"`
}

func (ResubmitIntent) Name() string { return "resubmit" }
func (ResubmitIntent) Capability() (rbac.Module, rbac.Action) { return rbac.ModuleObservations, rbac.ActionEdit }
func (ResubmitIntent) Validate() error { return nil }
