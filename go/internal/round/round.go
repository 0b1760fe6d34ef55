// Package round holds the lifecycle rules of a single round:
// NOT_STARTED -> RUNNING -> FINISHED, with no way back.
package round

import (
	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/models"
)

// New returns a round that has not started yet.
func New(pin, number int, letter string) models.Round {
	return models.Round{
		SessionPin: pin,
		Number:     number,
		Letter:     letter,
		Status:     models.RoundStatusNotStarted,
	}
}

// Start moves r to RUNNING and makes it the session's current round. current is
// the session's current round, nil before the first one; it must be FINISHED.
func Start(r, current *models.Round, s *models.Session) error {
	if s.Status != models.SessionStatusRunning {
		return apperrors.NewConflict("session %d is %s, not RUNNING", s.Pin, s.Status)
	}
	if r.Status != models.RoundStatusNotStarted {
		return apperrors.NewConflict("round %d of session %d is %s", r.Number, s.Pin, r.Status)
	}
	if r.Number != s.CurrentRound+1 {
		return apperrors.NewConflict("round %d cannot start after round %d", r.Number, s.CurrentRound)
	}
	if s.CurrentRound > 0 {
		if current == nil || current.Number != s.CurrentRound {
			return apperrors.NewConflict("round %d of session %d was not loaded", s.CurrentRound, s.Pin)
		}
		if current.Status != models.RoundStatusFinished {
			return apperrors.NewConflict("round %d of session %d is still %s", current.Number, s.Pin, current.Status)
		}
	}
	r.Status = models.RoundStatusRunning
	s.CurrentRound = r.Number
	return nil
}

// Finish moves a RUNNING round to FINISHED.
func Finish(r *models.Round) error {
	if r.Status != models.RoundStatusRunning {
		return apperrors.NewConflict("round %d of session %d is not running", r.Number, r.SessionPin)
	}
	r.Status = models.RoundStatusFinished
	return nil
}

// IsRunning reports whether answers may still be submitted for r.
func IsRunning(r *models.Round) bool {
	return r != nil && r.Status == models.RoundStatusRunning
}
