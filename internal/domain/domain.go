package domain

// Role identifies what an actor is within a company. The set is closed;
// the capability table in internal/rbac switches exhaustively over it.
type Role string

const (
	RoleCompanyOwner   Role = "company_owner"
	RolePlantHead      Role = "plant_head"
	RoleSafetyIncharge Role = "safety_incharge"
	RoleHOD            Role = "hod"
	RoleWorker         Role = "worker"
	RoleContractor     Role = "contractor"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleCompanyOwner, RolePlantHead, RoleSafetyIncharge, RoleHOD, RoleWorker, RoleContractor}
}

func (r Role) Valid() bool {
	switch r {
	case RoleCompanyOwner, RolePlantHead, RoleSafetyIncharge, RoleHOD, RoleWorker, RoleContractor:
		return true
	}
	return false
}

// Status is the aggregate lifecycle state of an observation.
type Status string

const (
	StatusOpen           Status = "open"
	StatusApproved       Status = "approved"
	StatusPendingClosure Status = "pending_closure"
	StatusClosed         Status = "closed"
	StatusReassigned     Status = "reassigned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusApproved, StatusPendingClosure, StatusClosed, StatusReassigned:
		return true
	}
	return false
}

type ObservationType string

const (
	TypeUnsafeAct       ObservationType = "unsafe_act"
	TypeUnsafeCondition ObservationType = "unsafe_condition"
	TypeSafeBehavior    ObservationType = "safe_behavior"
)

func (t ObservationType) Valid() bool {
	switch t {
	case TypeUnsafeAct, TypeUnsafeCondition, TypeSafeBehavior:
		return true
	}
	return false
}

// Severity grades an observation; corrective actions reuse the same scale
// for their priority.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ActionStatus is the per corrective action state. Monotonic: never regresses.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
)

func (s ActionStatus) Valid() bool {
	switch s {
	case ActionPending, ActionInProgress, ActionCompleted:
		return true
	}
	return false
}

// Actor is the resolved identity of a caller: who they are, what role they
// hold and which plant/company they belong to. Lookup happens at the edge
// (auth middleware or CLI); the guard only consumes the struct.
type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role" enum:"company_owner,plant_head,safety_incharge,hod,worker,contractor"`
	CompanyID string `json:"company_id"`
	PlantID   string `json:"plant_id,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Review records the reviewer's decision on an open observation.
type Review struct {
	ReviewedBy     string `json:"reviewed_by"`
	ReviewedAt     string `json:"reviewed_at" format:"date-time"`
	Decision       string `json:"decision" enum:"approve,reassign"`
	Comments       string `json:"comments,omitempty"`
	ReassignReason string `json:"reassign_reason,omitempty"`
}

// Closure records the final accept/reject decision on a fully actioned observation.
type Closure struct {
	DecidedBy string `json:"decided_by"`
	DecidedAt string `json:"decided_at" format:"date-time"`
	Decision  string `json:"decision" enum:"approve,reject"`
	Comments  string `json:"comments,omitempty"`
}

// CorrectiveAction is owned by exactly one observation; insertion order is
// assignment order.
type CorrectiveAction struct {
	ID                  string       `json:"id"`
	ObservationID       string       `json:"observation_id"`
	Action              string       `json:"action"`
	AssignedTo          string       `json:"assigned_to"`
	DueDate             string       `json:"due_date,omitempty" format:"date-time"`
	Priority            Severity     `json:"priority" enum:"low,medium,high,critical"`
	Status              ActionStatus `json:"status" enum:"pending,in_progress,completed"`
	CompletionEvidence  string       `json:"completion_evidence,omitempty"`
	EffectivenessRating *int         `json:"effectiveness_rating,omitempty" minimum:"1" maximum:"5"`
	EvidencePhotos      []string     `json:"evidence_photos,omitempty"`
	CreatedAt           string       `json:"created_at" format:"date-time"`
	CompletedDate       *string      `json:"completed_date,omitempty" format:"date-time"`
}

// Observation is the aggregate root. Once Status is closed the record is
// read-only; the engine rejects every further intent.
type Observation struct {
	ID                string             `json:"id"`
	ReportNumber      string             `json:"report_number"`
	ObservationType   ObservationType    `json:"observation_type" enum:"unsafe_act,unsafe_condition,safe_behavior"`
	Severity          Severity           `json:"severity" enum:"low,medium,high,critical"`
	Status            Status             `json:"status" enum:"open,approved,pending_closure,closed,reassigned"`
	Description       string             `json:"description,omitempty"`
	Observer          string             `json:"observer"`
	CompanyID         string             `json:"company_id"`
	PlantID           string             `json:"plant_id"`
	AreaID            string             `json:"area_id,omitempty"`
	CorrectiveActions []CorrectiveAction `json:"corrective_actions"`
	Review            *Review            `json:"review,omitempty"`
	Closure           *Closure           `json:"closure,omitempty"`
	CreatedAt         string             `json:"created_at" format:"date-time"`
	UpdatedAt         string             `json:"updated_at" format:"date-time"`
	CompletedAt       *string            `json:"completed_at,omitempty" format:"date-time"`
	Version           int64              `json:"version"`
}

// Action returns the corrective action with the given id, or nil.
func (o *Observation) Action(id string) *CorrectiveAction {
	for i := range o.CorrectiveActions {
		if o.CorrectiveActions[i].ID == id {
			return &o.CorrectiveActions[i]
		}
	}
	return nil
}

// AllActionsCompleted reports whether every corrective action is completed.
// True for an empty collection: zero actions are vacuously done.
func (o *Observation) AllActionsCompleted() bool {
	for i := range o.CorrectiveActions {
		if o.CorrectiveActions[i].Status != ActionCompleted {
			return false
		}
	}
	return true
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
