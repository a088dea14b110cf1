package proposer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/papertrail/internal/domain"
)

// ErrInvalidProposal is returned when the proposed actions are malformed
var ErrInvalidProposal = errors.New("invalid proposal")

// ValidateProposal checks the shape of the proposed actions and normalizes
// action and symbol casing. Nothing else in the proposal is inspected.
func ValidateProposal(p *domain.Proposal) error {
	if p == nil {
		return fmt.Errorf("%w: empty proposal", ErrInvalidProposal)
	}
	for i := range p.Actions {
		a := &p.Actions[i]

		action, err := domain.ParseAction(string(a.Action))
		if err != nil {
			return fmt.Errorf("%w: action %d: %v", ErrInvalidProposal, i, err)
		}
		a.Action = action

		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		if a.Symbol == "" {
			return fmt.Errorf("%w: action %d: missing symbol", ErrInvalidProposal, i)
		}
		if a.Name == "" {
			a.Name = a.Symbol
		}
	}
	return nil
}
