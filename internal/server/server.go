package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"safeline/internal/advisory"
	"safeline/internal/domain"
	"safeline/internal/engine"
	"safeline/internal/repo"
	"safeline/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	Advisor  advisory.Advisor
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"closure requires status pending_closure"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Safeline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Advisor == nil {
		cfg.Advisor = advisory.Noop{}
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	m := newMetrics()
	router := chi.NewRouter()
	router.Use(m.middleware)
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	router.Handle("/metrics", m.handler())

	hcfg := huma.DefaultConfig("Safeline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerObservations(group, cfg.Engine, m)
	registerWorkflow(group, cfg.Engine, m)
	registerSuggestions(group, cfg.Engine, cfg.Advisor)
	registerActors(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group, cfg.Engine)

	startWebhookDispatcher(cfg.Engine)
	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError turns engine/workflow errors into the API envelope. Typed
// transition rejections carry their reason and offending field through.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var terr *workflow.TransitionError
	if errors.As(err, &terr) {
		details := map[string]any{"reason": string(terr.Reason)}
		if terr.Field != "" {
			details["field"] = terr.Field
		}
		status := http.StatusConflict
		switch terr.Reason {
		case workflow.ReasonInsufficientRole, workflow.ReasonNotAssignee, workflow.ReasonScopeMismatch:
			status = http.StatusForbidden
		case workflow.ReasonNotFound:
			status = http.StatusNotFound
		case workflow.ReasonInvalidState, workflow.ReasonAlreadyCompleted, workflow.ReasonConcurrentModification:
			status = http.StatusConflict
		}
		return newAPIError(status, string(terr.Reason), terr.Message, details)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "required"),
		strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "must be"),
		strings.Contains(lowered, "not allowed"),
		strings.Contains(lowered, "not registered"),
		strings.Contains(lowered, "nothing to edit"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// resolveActor turns the authenticated principal into a directory-backed
// actor. JWT claims act as a fallback for callers (company_owner bootstrap)
// that have no directory entry yet.
func resolveActor(ctx context.Context, e *engine.Engine) (domain.Actor, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok || p.ActorID == "" {
		return domain.Actor{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	actor, err := e.Repo.GetActor(ctx, p.ActorID)
	if err == nil {
		return actor, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Actor{}, handleError(err)
	}
	if p.Role.Valid() {
		return domain.Actor{
			ID:        p.ActorID,
			Role:      p.Role,
			CompanyID: p.CompanyID,
			PlantID:   p.PlantID,
		}, nil
	}
	return domain.Actor{}, newAPIError(http.StatusForbidden, "unknown_actor",
		"actor "+p.ActorID+" is not registered", nil)
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Status string `json:"status" example:"ok"`
		} `json:"body"`
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status" example:"ok"`
			} `json:"body"`
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})
}

func registerStatus(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Observation counts by lifecycle state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Counts map[string]int `json:"counts"`
		} `json:"body"`
	}, error) {
		actor, authErr := resolveActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		counts, err := e.Repo.CountObservationsByStatus(ctx, actor.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Counts map[string]int `json:"counts"`
			} `json:"body"`
		}{}
		resp.Body.Counts = counts
		return resp, nil
	})
}

func registerObservations(api huma.API, e *engine.Engine, m *metrics) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-observation",
		Method:        http.MethodPost,
		Path:          "/observations",
		Summary:       "Report a new observation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateObservationRequest `json:"body"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		actor, authErr := resolveActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.ObservationType == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "observation_type is required", nil)
		}
		o, err := e.CreateObservation(ctx, actor, engine.CreateOptions{
			ObservationType: domain.ObservationType(input.Body.ObservationType),
			Severity:        domain.Severity(input.Body.Severity),
			Description:     input.Body.Description,
			PlantID:         input.Body.PlantID,
			AreaID:          input.Body.AreaID,
		})
		m.observeTransition("create", err)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObservationResponse `json:"body"`
		}{Body: observationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-observations",
		Method:      http.MethodGet,
		Path:        "/observations",
		Summary:     "List observations",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status  string `query:"status" enum:"open,approved,pending_closure,closed,reassigned"`
		PlantID string `query:"plant_id"`
		Type    string `query:"type" enum:"unsafe_act,unsafe_condition,safe_behavior"`
		Mine    bool   `query:"mine" doc:"only observations reported by the caller"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedObservations `json:"body"`
	}, error) {
		actor, authErr := resolveActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		filters := repo.ObservationFilters{
			Status:          input.Status,
			PlantID:         input.PlantID,
			Type:            input.Type,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		}
		if actor.Role != domain.RoleCompanyOwner {
			filters.CompanyID = actor.CompanyID
		}
		if input.Mine {
			filters.Observer = actor.ID
		}
		items, err := e.Repo.ListObservations(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedObservations{Items: []ObservationResponse{}}
		if len(items) > limit {
			// cursor points at the last returned row; the comparator is
			// strictly exclusive, so the next page starts right after it
			items = items[:limit]
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = mapObservations(items)
		return &struct {
			Body paginatedObservations `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-observation",
		Method:      http.MethodGet,
		Path:        "/observations/{id}",
		Summary:     "Get observation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		if _, authErr := resolveActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		o, err := e.GetObservation(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObservationResponse `json:"body"`
		}{Body: observationResponse(o)}, nil
	})
}

// submitIntent wires one workflow endpoint: resolve the caller, submit the
// typed intent, record the metric and map the outcome.
func submitIntent(ctx context.Context, e *engine.Engine, m *metrics, observationID string, intent workflow.Intent) (*struct {
	Body ObservationResponse `json:"body"`
}, error) {
	actor, authErr := resolveActor(ctx, e)
	if authErr != nil {
		return nil, authErr
	}
	o, err := e.SubmitIntent(ctx, actor, observationID, intent)
	m.observeTransition(intent.Name(), err)
	if err != nil {
		return nil, handleError(err)
	}
	return &struct {
		Body ObservationResponse `json:"body"`
	}{Body: observationResponse(o)}, nil
}

func registerWorkflow(api huma.API, e *engine.Engine, m *metrics) {
	workflowErrors := []int{
		http.StatusBadRequest,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusUnauthorized,
	}

	huma.Register(api, huma.Operation{
		OperationID: "review-observation",
		Method:      http.MethodPost,
		Path:        "/observations/{id}/review",
		Summary:     "Review an open observation",
		Errors:      workflowErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body ReviewRequest `json:"body"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		return submitIntent(ctx, e, m, input.ID, workflow.ReviewIntent{
			Decision:       input.Body.Decision,
			Comments:       input.Body.Comments,
			ReassignReason: input.Body.ReassignReason,
			Actions:        input.Body.Actions,
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-corrective-action",
		Method:      http.MethodPost,
		Path:        "/observations/{id}/actions/{action_id}/start",
		Summary:     "Start an assigned corrective action",
		Errors:      workflowErrors,
	}, func(ctx context.Context, input *struct {
		ID       string `path:"id"`
		ActionID string `path:"action_id"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		return submitIntent(ctx, e, m, input.ID, workflow.ActionStartIntent{ActionID: input.ActionID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-corrective-action",
		Method:      http.MethodPost,
		Path:        "/observations/{id}/actions/{action_id}/complete",
		Summary:     "Complete an assigned corrective action",
		Errors:      workflowErrors,
	}, func(ctx context.Context, input *struct {
		ID       string                `path:"id"`
		ActionID string                `path:"action_id"`
		Body     CompleteActionRequest `json:"body"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		return submitIntent(ctx, e, m, input.ID, workflow.ActionCompleteIntent{
			ActionID:            input.ActionID,
			CompletionEvidence:  input.Body.CompletionEvidence,
			EffectivenessRating: input.Body.EffectivenessRating,
			EvidencePhotos:      input.Body.EvidencePhotos,
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-closure",
		Method:      http.MethodPost,
		Path:        "/observations/{id}/closure",
		Summary:     "Approve or reject closure",
		Errors:      workflowErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body ClosureRequest `json:"body"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		return submitIntent(ctx, e, m, input.ID, workflow.ClosureIntent{
			Decision: input.Body.Decision,
			Comments: input.Body.Comments,
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-observation",
		Method:      http.MethodPatch,
		Path:        "/observations/{id}",
		Summary:     "Edit observation fields",
		Errors:      workflowErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body EditObservationRequest `json:"body"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		intent := workflow.EditIntent{
			Description: input.Body.Description,
			AreaID:      input.Body.AreaID,
		}
		if input.Body.Severity != nil {
			sev := domain.Severity(*input.Body.Severity)
			intent.Severity = &sev
		}
		return submitIntent(ctx, e, m, input.ID, intent)
	})

	huma.Register(api, huma.Operation{
		OperationID: "resubmit-observation",
		Method:      http.MethodPost,
		Path:        "/observations/{id}/resubmit",
		Summary:     "Resubmit a reassigned observation",
		Errors:      workflowErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ResubmitRequest `json:"body"`
	}) (*struct {
		Body ObservationResponse `json:"body"`
	}, error) {
		return submitIntent(ctx, e, m, input.ID, workflow.ResubmitIntent{Comments: input.Body.Comments})
	})
}

func registerSuggestions(api huma.API, e *engine.Engine, advisor advisory.Advisor) {
	huma.Register(api, huma.Operation{
		OperationID: "suggest-corrective-actions",
		Method:      http.MethodGet,
		Path:        "/observations/{id}/suggestions",
		Summary:     "Advisory corrective-action suggestions",
		Description: "Best-effort suggestions from the advisory service; an empty list is a valid answer.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Suggestions []SuggestionResponse `json:"suggestions"`
		} `json:"body"`
	}, error) {
		if _, authErr := resolveActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		o, err := e.GetObservation(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Suggestions []SuggestionResponse `json:"suggestions"`
			} `json:"body"`
		}{}
		resp.Body.Suggestions = []SuggestionResponse{}
		// Advisory failures degrade to no suggestions; they never surface
		// as workflow errors.
		suggestions, err := advisor.SuggestActions(ctx, o)
		if err != nil {
			return resp, nil
		}
		for _, s := range suggestions {
			resp.Body.Suggestions = append(resp.Body.Suggestions, SuggestionResponse{
				Action:    s.Action,
				Priority:  string(s.Priority),
				Rationale: s.Rationale,
			})
		}
		return resp, nil
	})
}

func registerActors(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "register-actor",
		Method:      http.MethodPut,
		Path:        "/actors/{id}",
		Summary:     "Register or update an actor",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body RegisterActorRequest `json:"body"`
	}) (*struct {
		Body ActorResponse `json:"body"`
	}, error) {
		caller, authErr := resolveActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if !canManageActors(caller.Role) {
			return nil, newAPIError(http.StatusForbidden, "forbidden",
				"role "+string(caller.Role)+" may not manage actors", nil)
		}
		a, err := e.RegisterActor(ctx, domain.Actor{
			ID:        input.ID,
			Name:      input.Body.Name,
			Role:      domain.Role(input.Body.Role),
			CompanyID: caller.CompanyID,
			PlantID:   input.Body.PlantID,
		}, caller.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActorResponse `json:"body"`
		}{Body: actorResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/actors",
		Summary:     "List actors",
	}, func(ctx context.Context, input *struct {
		Role string `query:"role" enum:"company_owner,plant_head,safety_incharge,hod,worker,contractor"`
	}) (*struct {
		Body struct {
			Items []ActorResponse `json:"items"`
		} `json:"body"`
	}, error) {
		if _, authErr := resolveActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		actors, err := e.Repo.ListActors(ctx, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Items []ActorResponse `json:"items"`
			} `json:"body"`
		}{}
		resp.Body.Items = []ActorResponse{}
		for _, a := range actors {
			resp.Body.Items = append(resp.Body.Items, actorResponse(a))
		}
		return resp, nil
	})
}

func canManageActors(role domain.Role) bool {
	switch role {
	case domain.RoleCompanyOwner, domain.RolePlantHead, domain.RoleSafetyIncharge:
		return true
	}
	return false
}

func registerEvents(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the event log",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"20"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body struct {
			Items []EventResponse `json:"items"`
		} `json:"body"`
	}, error) {
		if _, authErr := resolveActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		events, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Items []EventResponse `json:"items"`
			} `json:"body"`
		}{}
		resp.Body.Items = mapEvents(events)
		return resp, nil
	})
}

func registerMe(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Resolved caller identity",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ActorResponse `json:"body"`
	}, error) {
		actor, authErr := resolveActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body ActorResponse `json:"body"`
		}{Body: actorResponse(actor)}, nil
	})
}
