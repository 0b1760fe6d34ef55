package scoring

import (
	"fmt"

	"github.com/mcdev12/scatter/go/internal/models"
)

// TieBreak decides the outcome when valid and invalid votes are equal.
type TieBreak string

const (
	TieBreakValid   TieBreak = "valid"
	TieBreakInvalid TieBreak = "invalid"
)

// Rule is the majority rule used to score a single answer.
type Rule struct {
	Points   int      `yaml:"points"`
	TieBreak TieBreak `yaml:"tie_break"`
}

// DefaultRule awards 10 points for a majority-valid answer and nothing on a tie.
func DefaultRule() Rule {
	return Rule{Points: 10, TieBreak: TieBreakInvalid}
}

// Validate checks the rule configuration.
func (r Rule) Validate() error {
	if r.Points < 0 {
		return fmt.Errorf("points must not be negative, got %d", r.Points)
	}
	switch r.TieBreak {
	case TieBreakValid, TieBreakInvalid:
		return nil
	default:
		return fmt.Errorf("invalid tie break: %q", r.TieBreak)
	}
}

// ScoreAnswer scores one answer from its votes. It depends only on the number of
// valid and invalid votes, never on their order.
func (r Rule) ScoreAnswer(votes []models.Vote) int {
	valid, invalid := 0, 0
	for _, v := range votes {
		if v.Valid {
			valid++
		} else {
			invalid++
		}
	}

	switch {
	case valid > invalid:
		return r.Points
	case valid < invalid:
		return 0
	case r.TieBreak == TieBreakValid:
		return r.Points
	default:
		return 0
	}
}
