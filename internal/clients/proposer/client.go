// Package proposer provides the decision proposer boundary: an HTTP client
// for the external decision service and a file-backed proposer for operator runs.
package proposer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

// ServiceResponse is the standard response format from the decision service
type ServiceResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	Timestamp string          `json:"timestamp"`
}

// decideRequest is the body posted to /decide
type decideRequest struct {
	Model   string                 `json:"model,omitempty"`
	Context domain.DecisionContext `json:"context"`
}

// HTTPClient asks the external decision service for the day's proposal
type HTTPClient struct {
	baseURL string
	model   string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPClient creates a new decision service client
func NewHTTPClient(baseURL, model string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("client", "proposer").Logger(),
	}
}

// Propose implements domain.Proposer
func (c *HTTPClient) Propose(ctx context.Context, dc domain.DecisionContext) (*domain.Proposal, error) {
	body, err := json.Marshal(decideRequest{Model: c.model, Context: dc})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/decide", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decision service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decision service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var serviceResp ServiceResponse
	if err := json.Unmarshal(respBody, &serviceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !serviceResp.Success {
		msg := "unknown error"
		if serviceResp.Error != nil {
			msg = *serviceResp.Error
		}
		return nil, fmt.Errorf("decision service error: %s", msg)
	}

	var proposal domain.Proposal
	if err := json.Unmarshal(serviceResp.Data, &proposal); err != nil {
		return nil, fmt.Errorf("failed to parse proposal: %w", err)
	}
	proposal.RawResponse = string(serviceResp.Data)

	if err := ValidateProposal(&proposal); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("date", domain.FormatDate(dc.Date)).
		Int("actions", len(proposal.Actions)).
		Dur("elapsed", time.Since(start)).
		Msg("Received proposal")

	return &proposal, nil
}
