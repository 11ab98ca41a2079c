package workflow

import "fmt"

// Reason classifies why a transition was refused. These are ordinary
// business outcomes, not exceptional control flow; the server maps them to
// HTTP codes and the UI renders them directly.
type Reason string

const (
	ReasonInsufficientRole       Reason = "insufficient_role"
	ReasonInvalidState           Reason = "invalid_state"
	ReasonNotAssignee            Reason = "not_assignee"
	ReasonAlreadyCompleted       Reason = "already_completed"
	ReasonScopeMismatch          Reason = "scope_mismatch"
	ReasonNotFound               Reason = "not_found"
	ReasonConcurrentModification Reason = "concurrent_modification"
)

// TransitionError is the typed rejection for a refused intent. Field names
// the offending part of the request when one exists.
type TransitionError struct {
	Reason  Reason `json:"reason"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Reason, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Retriable reports whether the caller may safely retry the same intent.
// Only lost races qualify; every other reason is a final decision for the
// snapshot it was evaluated against.
func (e *TransitionError) Retriable() bool {
	return e.Reason == ReasonConcurrentModification
}

func Denyf(reason Reason, field, format string, args ...any) *TransitionError {
	return &TransitionError{Reason: reason, Field: field, Message: fmt.Sprintf(format, args...)}
}
