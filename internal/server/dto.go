package server

import (
	"encoding/json"

	"safeline/internal/domain"
	"safeline/internal/workflow"
)

// Request payloads

type CreateObservationRequest struct {
	ObservationType string `json:"observation_type" enum:"unsafe_act,unsafe_condition,safe_behavior"`
	Severity        string `json:"severity,omitempty" enum:"low,medium,high,critical"`
	Description     string `json:"description,omitempty"`
	PlantID         string `json:"plant_id,omitempty"`
	AreaID          string `json:"area_id,omitempty"`
}

type ReviewRequest struct {
	Decision       string                `json:"decision" enum:"approve,reassign"`
	Comments       string                `json:"comments,omitempty"`
	ReassignReason string                `json:"reassign_reason,omitempty"`
	Actions        []workflow.ActionSpec `json:"actions,omitempty"`
}

type CompleteActionRequest struct {
	CompletionEvidence  string   `json:"completion_evidence,omitempty"`
	EffectivenessRating *int     `json:"effectiveness_rating,omitempty" minimum:"1" maximum:"5"`
	EvidencePhotos      []string `json:"evidence_photos,omitempty"`
}

type ClosureRequest struct {
	Decision string `json:"decision" enum:"approve,reject"`
	Comments string `json:"comments,omitempty"`
}

type EditObservationRequest struct {
	Severity    *string `json:"severity,omitempty" enum:"low,medium,high,critical"`
	Description *string `json:"description,omitempty"`
	AreaID      *string `json:"area_id,omitempty"`
}

type ResubmitRequest struct {
	Comments string `json:"comments,omitempty"`
}

type RegisterActorRequest struct {
	Name    string `json:"name,omitempty"`
	Role    string `json:"role" enum:"company_owner,plant_head,safety_incharge,hod,worker,contractor"`
	PlantID string `json:"plant_id,omitempty"`
}

// Response payloads

type ObservationResponse struct {
	ID                string                     `json:"id"`
	ReportNumber      string                     `json:"report_number"`
	ObservationType   string                     `json:"observation_type" enum:"unsafe_act,unsafe_condition,safe_behavior"`
	Severity          string                     `json:"severity" enum:"low,medium,high,critical"`
	Status            string                     `json:"status" enum:"open,approved,pending_closure,closed,reassigned"`
	Description       string                     `json:"description,omitempty"`
	Observer          string                     `json:"observer"`
	CompanyID         string                     `json:"company_id"`
	PlantID           string                     `json:"plant_id"`
	AreaID            string                     `json:"area_id,omitempty"`
	CorrectiveActions []CorrectiveActionResponse `json:"corrective_actions"`
	Review            *domain.Review             `json:"review,omitempty"`
	Closure           *domain.Closure            `json:"closure,omitempty"`
	CreatedAt         string                     `json:"created_at" format:"date-time"`
	UpdatedAt         string                     `json:"updated_at" format:"date-time"`
	CompletedAt       *string                    `json:"completed_at,omitempty" format:"date-time"`
	Version           int64                      `json:"version"`
}

type CorrectiveActionResponse struct {
	ID                  string   `json:"id"`
	Action              string   `json:"action"`
	AssignedTo          string   `json:"assigned_to"`
	DueDate             string   `json:"due_date,omitempty" format:"date-time"`
	Priority            string   `json:"priority" enum:"low,medium,high,critical"`
	Status              string   `json:"status" enum:"pending,in_progress,completed"`
	CompletionEvidence  string   `json:"completion_evidence,omitempty"`
	EffectivenessRating *int     `json:"effectiveness_rating,omitempty"`
	EvidencePhotos      []string `json:"evidence_photos,omitempty"`
	CreatedAt           string   `json:"created_at" format:"date-time"`
	CompletedDate       *string  `json:"completed_date,omitempty" format:"date-time"`
}

type ActorResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role" enum:"company_owner,plant_head,safety_incharge,hod,worker,contractor"`
	CompanyID string `json:"company_id"`
	PlantID   string `json:"plant_id,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type SuggestionResponse struct {
	Action    string `json:"action"`
	Priority  string `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Rationale string `json:"rationale,omitempty"`
}

type paginatedObservations struct {
	Items      []ObservationResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

func observationResponse(o domain.Observation) ObservationResponse {
	resp := ObservationResponse{
		ID:                o.ID,
		ReportNumber:      o.ReportNumber,
		ObservationType:   string(o.ObservationType),
		Severity:          string(o.Severity),
		Status:            string(o.Status),
		Description:       o.Description,
		Observer:          o.Observer,
		CompanyID:         o.CompanyID,
		PlantID:           o.PlantID,
		AreaID:            o.AreaID,
		CorrectiveActions: []CorrectiveActionResponse{},
		Review:            o.Review,
		Closure:           o.Closure,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		CompletedAt:       o.CompletedAt,
		Version:           o.Version,
	}
	for _, act := range o.CorrectiveActions {
		resp.CorrectiveActions = append(resp.CorrectiveActions, CorrectiveActionResponse{
			ID:                  act.ID,
			Action:              act.Action,
			AssignedTo:          act.AssignedTo,
			DueDate:             act.DueDate,
			Priority:            string(act.Priority),
			Status:              string(act.Status),
			CompletionEvidence:  act.CompletionEvidence,
			EffectivenessRating: act.EffectivenessRating,
			EvidencePhotos:      act.EvidencePhotos,
			CreatedAt:           act.CreatedAt,
			CompletedDate:       act.CompletedDate,
		})
	}
	return resp
}

func actorResponse(a domain.Actor) ActorResponse {
	return ActorResponse{
		ID:        a.ID,
		Name:      a.Name,
		Role:      string(a.Role),
		CompanyID: a.CompanyID,
		PlantID:   a.PlantID,
		CreatedAt: a.CreatedAt,
	}
}

func mapObservations(items []domain.Observation) []ObservationResponse {
	out := make([]ObservationResponse, 0, len(items))
	for _, o := range items {
		out = append(out, observationResponse(o))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
