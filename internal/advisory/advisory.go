// Package advisory integrates the optional external suggestion service.
// Its output is advisory only: no transition ever requires it, and a failing
// or absent service must never block the workflow.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"safeline/internal/config"
	"safeline/internal/domain"
)

// Suggestion is one proposed corrective action for an observation.
type Suggestion struct {
	Action    string          `json:"action"`
	Priority  domain.Severity `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Rationale string          `json:"rationale,omitempty"`
}

// Advisor produces corrective-action suggestions for an observation.
type Advisor interface {
	SuggestActions(ctx context.Context, obs domain.Observation) ([]Suggestion, error)
}

// Noop is the advisor used when no service is configured.
type Noop struct{}

func (Noop) SuggestActions(context.Context, domain.Observation) ([]Suggestion, error) {
	return nil, nil
}

// HTTPAdvisor posts the observation to a remote endpoint and decodes its
// suggestions.
type HTTPAdvisor struct {
	URL    string
	Client *http.Client
}

const defaultAdvisorTimeout = 5 * time.Second

// FromConfig returns the configured advisor, or Noop when disabled.
func FromConfig(cfg config.AdvisoryConfig) Advisor {
	if !cfg.Enabled || strings.TrimSpace(cfg.URL) == "" {
		return Noop{}
	}
	timeout := defaultAdvisorTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &HTTPAdvisor{
		URL:    cfg.URL,
		Client: &http.Client{Timeout: timeout},
	}
}

type suggestRequest struct {
	ReportNumber    string                 `json:"report_number"`
	ObservationType domain.ObservationType `json:"observation_type"`
	Severity        domain.Severity        `json:"severity"`
	Description     string                 `json:"description,omitempty"`
	PlantID         string                 `json:"plant_id"`
	AreaID          string                 `json:"area_id,omitempty"`
}

type suggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

func (a *HTTPAdvisor) SuggestActions(ctx context.Context, obs domain.Observation) ([]Suggestion, error) {
	body, err := json.Marshal(suggestRequest{
		ReportNumber:    obs.ReportNumber,
		ObservationType: obs.ObservationType,
		Severity:        obs.Severity,
		Description:     obs.Description,
		PlantID:         obs.PlantID,
		AreaID:          obs.AreaID,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("advisory status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	var decoded suggestResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode advisory response: %w", err)
	}
	return decoded.Suggestions, nil
}
