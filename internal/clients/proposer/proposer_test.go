package proposer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Propose(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	var capturedPath string
	var captured decideRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&captured)

		dataJSON, _ := json.Marshal(map[string]interface{}{
			"summary":       "Rotate into energy",
			"market_regime": "risk-on",
			"report":        map[string]interface{}{"outlook": "neutral"},
			"actions": []map[string]string{
				{"action": "sell", "symbol": "aapl", "reason": "target hit"},
				{"action": "BUY", "symbol": "XOM", "name": "Exxon", "reason": "momentum"},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ServiceResponse{Success: true, Data: dataJSON})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", "model-x", time.Second, log)
	date, _ := domain.ParseDate("2026-01-05")
	proposal, err := client.Propose(context.Background(), domain.DecisionContext{Date: date, Cash: 5000})

	require.NoError(t, err)
	assert.Equal(t, "/decide", capturedPath)
	assert.Equal(t, "model-x", captured.Model)
	assert.InDelta(t, 5000, captured.Context.Cash, 1e-9)

	assert.Equal(t, "Rotate into energy", proposal.Summary)
	assert.Equal(t, "risk-on", proposal.MarketRegime)
	assert.JSONEq(t, `{"outlook":"neutral"}`, string(proposal.Report))
	assert.NotEmpty(t, proposal.RawResponse)
	require.Len(t, proposal.Actions, 2)
	assert.Equal(t, domain.ActionSell, proposal.Actions[0].Action)
	assert.Equal(t, "AAPL", proposal.Actions[0].Symbol)
	assert.Equal(t, "AAPL", proposal.Actions[0].Name)
	assert.Equal(t, "Exxon", proposal.Actions[1].Name)
}

func TestHTTPClient_ServiceError(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	t.Run("error envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			msg := "model overloaded"
			_ = json.NewEncoder(w).Encode(ServiceResponse{Success: false, Error: &msg})
		}))
		defer server.Close()

		_, err := NewHTTPClient(server.URL, "", time.Second, log).Propose(context.Background(), domain.DecisionContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model overloaded")
	})

	t.Run("non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewHTTPClient(server.URL, "", time.Second, log).Propose(context.Background(), domain.DecisionContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("malformed actions", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dataJSON := json.RawMessage(`{"actions":[{"action":"HOLD","symbol":"AAPL"}]}`)
			_ = json.NewEncoder(w).Encode(ServiceResponse{Success: true, Data: dataJSON})
		}))
		defer server.Close()

		_, err := NewHTTPClient(server.URL, "", time.Second, log).Propose(context.Background(), domain.DecisionContext{})
		assert.True(t, errors.Is(err, ErrInvalidProposal))
	})
}

func TestFileProposer(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "actions.yaml")
		doc := `summary: Trim tech
confidence_level: high
report:
  outlook: cautious
actions:
  - action: sell
    symbol: msft
    reason: overweight
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		proposal, err := NewFileProposer(path).Propose(context.Background(), domain.DecisionContext{})
		require.NoError(t, err)
		assert.Equal(t, "Trim tech", proposal.Summary)
		assert.Equal(t, "high", proposal.ConfidenceLevel)
		assert.JSONEq(t, `{"outlook":"cautious"}`, string(proposal.Report))
		require.Len(t, proposal.Actions, 1)
		assert.Equal(t, domain.ActionSell, proposal.Actions[0].Action)
		assert.Equal(t, "MSFT", proposal.Actions[0].Symbol)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "actions.json")
		doc := `{"summary":"hold","actions":[]}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		proposal, err := NewFileProposer(path).Propose(context.Background(), domain.DecisionContext{})
		require.NoError(t, err)
		assert.Equal(t, "hold", proposal.Summary)
		assert.Empty(t, proposal.Actions)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileProposer(filepath.Join(dir, "nope.yaml")).Propose(context.Background(), domain.DecisionContext{})
		assert.Error(t, err)
	})
}

func TestValidateProposal(t *testing.T) {
	tests := []struct {
		name    string
		actions []domain.ProposedAction
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", []domain.ProposedAction{{Action: "buy", Symbol: " nvda "}}, false},
		{"unknown action", []domain.ProposedAction{{Action: "HOLD", Symbol: "NVDA"}}, true},
		{"missing symbol", []domain.ProposedAction{{Action: "BUY"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &domain.Proposal{Actions: tt.actions}
			err := ValidateProposal(p)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProposal)
				return
			}
			require.NoError(t, err)
			for _, a := range p.Actions {
				assert.Equal(t, "NVDA", a.Symbol)
			}
		})
	}

	assert.ErrorIs(t, ValidateProposal(nil), ErrInvalidProposal)
}
