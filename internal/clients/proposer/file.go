package proposer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/papertrail/internal/domain"
	"gopkg.in/yaml.v3"
)

// fileProposal mirrors domain.Proposal for YAML files, where the report is a
// nested mapping rather than raw JSON
type fileProposal struct {
	Summary         string                  `yaml:"summary"`
	MarketRegime    string                  `yaml:"market_regime"`
	ConfidenceLevel string                  `yaml:"confidence_level"`
	Report          map[string]interface{}  `yaml:"report"`
	Actions         []domain.ProposedAction `yaml:"actions"`
}

// FileProposer returns a proposal read from a YAML or JSON file.
// The context is ignored; the file is the decision.
type FileProposer struct {
	path string
}

// NewFileProposer creates a proposer backed by path
func NewFileProposer(path string) *FileProposer {
	return &FileProposer{path: path}
}

// Propose implements domain.Proposer
func (p *FileProposer) Propose(_ context.Context, _ domain.DecisionContext) (*domain.Proposal, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proposal file: %w", err)
	}

	proposal, err := ParseProposal(data, filepath.Ext(p.path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.path, err)
	}
	return proposal, nil
}

// ParseProposal decodes a proposal document. ext selects JSON (".json");
// anything else is read as YAML.
func ParseProposal(data []byte, ext string) (*domain.Proposal, error) {
	var proposal domain.Proposal

	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &proposal); err != nil {
			return nil, err
		}
	} else {
		var doc fileProposal
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		proposal = domain.Proposal{
			Summary:         doc.Summary,
			MarketRegime:    doc.MarketRegime,
			ConfidenceLevel: doc.ConfidenceLevel,
			Actions:         doc.Actions,
		}
		if doc.Report != nil {
			report, err := json.Marshal(doc.Report)
			if err != nil {
				return nil, fmt.Errorf("failed to encode report: %w", err)
			}
			proposal.Report = report
		}
	}
	proposal.RawResponse = string(data)

	if err := ValidateProposal(&proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}
