package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"safeline/internal/config"
	"safeline/internal/domain"
	"safeline/internal/events"
	"safeline/internal/guard"
	"safeline/internal/rbac"
	"safeline/internal/repo"
	"safeline/internal/workflow"
)

// Engine is the sole writer for observation aggregates. Every transition is
// serialized per aggregate id and committed atomically together with its
// event log entries.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Guard  guard.Guard
	Config *config.Config
	Now    func() time.Time

	locks sync.Map // observation id -> *sync.Mutex
}

func New(db *sql.DB, cfg *config.Config) *Engine {
	return &Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Guard:  guard.New(rbac.Default()),
		Config: cfg,
		Now:    time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// lockAggregate takes the per-observation mutex. Different observations
// proceed fully in parallel; there is no cross-record invariant.
func (e *Engine) lockAggregate(id string) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateOptions are parameters for reporting a new observation.
type CreateOptions struct {
	ObservationType domain.ObservationType
	Severity        domain.Severity
	Description     string
	PlantID         string
	AreaID          string
}

// CreateObservation records a new report by the observer. The actor becomes
// the immutable observer identity; the report number comes from the per-year
// sequence.
func (e *Engine) CreateObservation(ctx context.Context, actor domain.Actor, opts CreateOptions) (domain.Observation, error) {
	if !opts.ObservationType.Valid() {
		return domain.Observation{}, fmt.Errorf("observation_type %q unknown", opts.ObservationType)
	}
	if opts.Severity == "" {
		opts.Severity = domain.SeverityLow
	}
	if !opts.Severity.Valid() {
		return domain.Observation{}, fmt.Errorf("severity %q unknown", opts.Severity)
	}
	if opts.PlantID == "" {
		opts.PlantID = actor.PlantID
	}
	if opts.PlantID == "" {
		return domain.Observation{}, errors.New("plant_id is required")
	}
	if !e.Guard.Capabilities.Can(actor.Role, rbac.ModuleObservations, rbac.ActionCreate) {
		return domain.Observation{}, workflow.Denyf(workflow.ReasonInsufficientRole, "role",
			"role %s may not create observations", actor.Role)
	}
	if actor.Role != domain.RoleCompanyOwner && actor.PlantID != "" && actor.PlantID != opts.PlantID {
		return domain.Observation{}, workflow.Denyf(workflow.ReasonScopeMismatch, "plant_id",
			"actor plant %s does not match %s", actor.PlantID, opts.PlantID)
	}
	now := e.now().UTC()
	ts := now.Format(time.RFC3339)
	o := domain.Observation{
		ID:              uuid.New().String(),
		ObservationType: opts.ObservationType,
		Severity:        opts.Severity,
		Status:          domain.StatusOpen,
		Description:     opts.Description,
		Observer:        actor.ID,
		CompanyID:       actor.CompanyID,
		PlantID:         opts.PlantID,
		AreaID:          opts.AreaID,
		CreatedAt:       ts,
		UpdatedAt:       ts,
		Version:         1,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Observation{}, err
	}
	defer tx.Rollback()

	o.ReportNumber, err = e.Repo.NextReportNumber(ctx, tx, now.Format("2006"))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("assign report number: %w", err)
	}
	if err := e.Repo.InsertObservationTx(ctx, tx, o); err != nil {
		return domain.Observation{}, fmt.Errorf("insert observation: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "observation.created", "observation", o.ID, actor.ID, events.EventPayload{
		"report_number": o.ReportNumber,
		"type":          string(o.ObservationType),
		"severity":      string(o.Severity),
	}); err != nil {
		return domain.Observation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Observation{}, err
	}
	return o, nil
}

// SubmitIntent is the single mutation entry point for the lifecycle. The
// guard decides authorization, the state machine applies the transition, and
// the whole effect set commits or nothing does.
func (e *Engine) SubmitIntent(ctx context.Context, actor domain.Actor, observationID string, intent workflow.Intent) (domain.Observation, error) {
	if err := intent.Validate(); err != nil {
		return domain.Observation{}, fmt.Errorf("%s: %w", intent.Name(), err)
	}
	unlock := e.lockAggregate(observationID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Observation{}, err
	}
	defer tx.Rollback()

	obs, err := e.Repo.GetObservationTx(ctx, tx, observationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Observation{}, workflow.Denyf(workflow.ReasonNotFound, "observation_id",
				"observation %s not found", observationID)
		}
		return domain.Observation{}, err
	}
	loadedVersion := obs.Version

	if terr := e.Guard.CanTransition(actor, &obs, intent); terr != nil {
		return domain.Observation{}, terr
	}
	effects, terr := workflow.Apply(&obs, actor, intent, e.now())
	if terr != nil {
		return domain.Observation{}, terr
	}
	if err := e.Repo.UpdateObservationTx(ctx, tx, obs, loadedVersion); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return domain.Observation{}, workflow.Denyf(workflow.ReasonConcurrentModification, "version",
				"observation %s changed underneath, reload and retry", observationID)
		}
		return domain.Observation{}, err
	}
	for _, effect := range effects {
		if err := e.Events.Append(ctx, tx, effect.Type, "observation", obs.ID, actor.ID, events.EventPayload(effect.Payload)); err != nil {
			return domain.Observation{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Observation{}, err
	}
	obs.Version = loadedVersion + 1
	return obs, nil
}

// GetObservation is the read path; it never exposes guard internals.
func (e *Engine) GetObservation(ctx context.Context, id string) (domain.Observation, error) {
	return e.Repo.GetObservation(ctx, id)
}

// ResolveActor looks up the caller in the directory. The directory is the
// identity/role collaborator the guard depends on.
func (e *Engine) ResolveActor(ctx context.Context, actorID string) (domain.Actor, error) {
	a, err := e.Repo.GetActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Actor{}, fmt.Errorf("actor %s not registered: %w", actorID, err)
		}
		return domain.Actor{}, err
	}
	return a, nil
}

// RegisterActor adds or updates an actor directory entry; the entry and its
// event commit in one transaction like every other mutation.
func (e *Engine) RegisterActor(ctx context.Context, a domain.Actor, byActorID string) (domain.Actor, error) {
	if a.CompanyID == "" && e.Config != nil {
		a.CompanyID = e.Config.Company.ID
	}
	if a.CreatedAt == "" {
		a.CreatedAt = e.now().UTC().Format(time.RFC3339)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Actor{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertActorTx(ctx, tx, a); err != nil {
		return domain.Actor{}, err
	}
	if err := e.Events.Append(ctx, tx, "actor.registered", "actor", a.ID, byActorID, events.EventPayload{
		"role":     string(a.Role),
		"plant_id": a.PlantID,
	}); err != nil {
		return domain.Actor{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Actor{}, err
	}
	return a, nil
}
