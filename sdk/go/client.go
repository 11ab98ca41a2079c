package safelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Safeline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Observation represents the API observation model (partial).
type Observation struct {
	ID                string             `json:"id"`
	ReportNumber      string             `json:"report_number"`
	ObservationType   string             `json:"observation_type"`
	Severity          string             `json:"severity"`
	Status            string             `json:"status"`
	Description       string             `json:"description"`
	Observer          string             `json:"observer"`
	PlantID           string             `json:"plant_id"`
	AreaID            string             `json:"area_id,omitempty"`
	CorrectiveActions []CorrectiveAction `json:"corrective_actions"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
	CompletedAt       *string            `json:"completed_at,omitempty"`
	Version           int64              `json:"version"`
}

// CorrectiveAction represents an assigned remediation item.
type CorrectiveAction struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	AssignedTo string `json:"assigned_to"`
	DueDate    string `json:"due_date,omitempty"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
}

// ActionSpec describes a corrective action created at review time.
type ActionSpec struct {
	Action     string `json:"action"`
	AssignedTo string `json:"assigned_to"`
	DueDate    string `json:"due_date,omitempty"`
	Priority   string `json:"priority,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// Suggestion is an advisory corrective-action proposal.
type Suggestion struct {
	Action    string `json:"action"`
	Priority  string `json:"priority,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedObservations wraps list responses with cursors.
type PaginatedObservations struct {
	Items      []Observation `json:"items"`
	NextCursor string        `json:"next_cursor"`
}

// CreateObservation reports a new observation.
func (c *Client) CreateObservation(ctx context.Context, obsType, severity, description string) (Observation, error) {
	body := map[string]any{
		"observation_type": obsType,
		"severity":         severity,
		"description":      description,
	}
	var resp Observation
	err := c.do(ctx, http.MethodPost, "v0/observations", body, &resp)
	return resp, err
}

// GetObservation fetches an observation by id.
func (c *Client) GetObservation(ctx context.Context, id string) (Observation, error) {
	var resp Observation
	err := c.do(ctx, http.MethodGet, "v0/observations/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListObservations returns a page of observations filtered by status.
func (c *Client) ListObservations(ctx context.Context, status, cursor string, limit int) (PaginatedObservations, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := "v0/observations"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedObservations
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Review approves or reassigns an open observation.
func (c *Client) Review(ctx context.Context, id, decision, comments, reassignReason string, actions []ActionSpec) (Observation, error) {
	body := map[string]any{
		"decision": decision,
		"comments": comments,
	}
	if reassignReason != "" {
		body["reassign_reason"] = reassignReason
	}
	if len(actions) > 0 {
		body["actions"] = actions
	}
	var resp Observation
	err := c.do(ctx, http.MethodPost, "v0/observations/"+url.PathEscape(id)+"/review", body, &resp)
	return resp, err
}

// StartAction moves an assigned corrective action to in_progress.
func (c *Client) StartAction(ctx context.Context, observationID, actionID string) (Observation, error) {
	endpoint := fmt.Sprintf("v0/observations/%s/actions/%s/start",
		url.PathEscape(observationID), url.PathEscape(actionID))
	var resp Observation
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// CompleteAction completes an assigned corrective action.
func (c *Client) CompleteAction(ctx context.Context, observationID, actionID, evidence string, rating *int) (Observation, error) {
	body := map[string]any{
		"completion_evidence": evidence,
	}
	if rating != nil {
		body["effectiveness_rating"] = *rating
	}
	endpoint := fmt.Sprintf("v0/observations/%s/actions/%s/complete",
		url.PathEscape(observationID), url.PathEscape(actionID))
	var resp Observation
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// DecideClosure approves or rejects closure of a pending observation.
func (c *Client) DecideClosure(ctx context.Context, id, decision, comments string) (Observation, error) {
	body := map[string]any{
		"decision": decision,
		"comments": comments,
	}
	var resp Observation
	err := c.do(ctx, http.MethodPost, "v0/observations/"+url.PathEscape(id)+"/closure", body, &resp)
	return resp, err
}

// Suggestions returns advisory corrective-action proposals for an observation.
func (c *Client) Suggestions(ctx context.Context, id string) ([]Suggestion, error) {
	var resp struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	err := c.do(ctx, http.MethodGet, "v0/observations/"+url.PathEscape(id)+"/suggestions", nil, &resp)
	return resp.Suggestions, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
