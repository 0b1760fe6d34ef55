package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/round"
	"github.com/mcdev12/scatter/go/internal/scoring"
)

// startRound moves round number to RUNNING and enters ANSWERING. Must be called
// with st.mu held.
func (o *Orchestrator) startRound(ctx context.Context, st *sessionState, sess *models.Session, number int) error {
	r, err := o.repo.FindRound(ctx, sess.Pin, number)
	if err != nil {
		return err
	}
	if st.phase != PhaseIdle && st.phase != PhaseIntermission {
		return apperrors.NewConflict("session %d is in phase %s", sess.Pin, st.phase)
	}
	var current *models.Round
	if sess.CurrentRound > 0 {
		if current, err = o.repo.FindRound(ctx, sess.Pin, sess.CurrentRound); err != nil {
			return err
		}
	}

	started := sess.Clone()
	if err := round.Start(r, current, started); err != nil {
		return err
	}
	if err := o.repo.SaveRoundStart(ctx, started, r); err != nil {
		return fmt.Errorf("failed to start round: %w", err)
	}
	*sess = *started

	length := sess.RoundLength.Duration()
	o.publish(ctx, sess.Pin, events.TypeLetterAssigned, events.LetterAssignedPayload{
		RoundNumber:    r.Number,
		Letter:         r.Letter,
		RoundLengthSec: int(length / time.Second),
	})
	o.enterPhase(st, PhaseAnswering, int(length/time.Second), 0)

	log.Info().
		Int("session_pin", sess.Pin).
		Int("round", r.Number).
		Str("letter", r.Letter).
		Msg("round started")
	return nil
}

// enterVoting opens voting on category c for the current members.
func (o *Orchestrator) enterVoting(st *sessionState, sess *models.Session, c int) {
	st.quorum.Reset(sess.PlayerIDs)
	o.enterPhase(st, PhaseVoting, o.cfg.VotingTicks, c)
}

func (o *Orchestrator) enterResults(st *sessionState, sess *models.Session, c int) {
	st.quorum.Reset(sess.PlayerIDs)
	o.enterPhase(st, PhaseResults, o.cfg.ResultTicks, c)
}

func (o *Orchestrator) tickAnswering(ctx context.Context, st *sessionState) error {
	st.remaining--

	sess, err := o.repo.FindSession(ctx, st.pin)
	if err != nil {
		return err
	}
	r, err := o.repo.FindRound(ctx, st.pin, sess.CurrentRound)
	if err != nil {
		return err
	}

	// an explicit stop may already have finished the round
	if r.Status != models.RoundStatusRunning {
		o.stopTimer(st)
		st.phase = PhaseIdle
		log.Debug().Int("session_pin", st.pin).Int("round", r.Number).Msg("round already finished, answering timer cancelled")
		return nil
	}

	if st.remaining > 0 {
		o.publish(ctx, st.pin, events.TypeRoundTimerTick, events.TimerTickPayload{
			RoundNumber:  r.Number,
			RemainingSec: st.remaining,
		})
		return nil
	}

	return o.finishRound(ctx, st, sess, r)
}

// finishRound ends ANSWERING exactly once and opens voting on the first category.
func (o *Orchestrator) finishRound(ctx context.Context, st *sessionState, sess *models.Session, r *models.Round) error {
	if err := round.Finish(r); err != nil {
		return err
	}
	if err := o.repo.SaveRound(ctx, r); err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}

	o.stopTimer(st)
	o.publish(ctx, sess.Pin, events.TypeRoundEnded, events.RoundEndedPayload{RoundNumber: r.Number})
	o.enterVoting(st, sess, 1)

	log.Info().Int("session_pin", sess.Pin).Int("round", r.Number).Msg("round finished")
	return nil
}

func (o *Orchestrator) tickVoting(ctx context.Context, st *sessionState) error {
	st.remaining--

	sess, err := o.repo.FindSession(ctx, st.pin)
	if err != nil {
		return err
	}
	category, err := categoryAt(sess, st.category)
	if err != nil {
		return err
	}

	if st.remaining > 0 && !st.quorum.AllAgreed() {
		o.publish(ctx, st.pin, events.TypeVotingTimerTick, events.TimerTickPayload{
			RoundNumber:  sess.CurrentRound,
			Category:     category,
			RemainingSec: st.remaining,
		})
		return nil
	}

	o.stopTimer(st)
	st.quorum.Reset(sess.PlayerIDs)
	o.publish(ctx, st.pin, events.TypeVotingEnded, events.VotingEndedPayload{
		RoundNumber: sess.CurrentRound,
		Category:    category,
	})
	o.enterResults(st, sess, st.category)
	return nil
}

func (o *Orchestrator) tickResults(ctx context.Context, st *sessionState) error {
	st.remaining--

	sess, err := o.repo.FindSession(ctx, st.pin)
	if err != nil {
		return err
	}
	category, err := categoryAt(sess, st.category)
	if err != nil {
		return err
	}

	if st.remaining > 0 && !st.quorum.AllAgreed() {
		o.publish(ctx, st.pin, events.TypeResultTimerTick, events.TimerTickPayload{
			RoundNumber:  sess.CurrentRound,
			Category:     category,
			RemainingSec: st.remaining,
		})
		return nil
	}

	o.stopTimer(st)
	st.quorum.Reset(sess.PlayerIDs)

	if st.category < len(sess.Categories) {
		next := st.category + 1
		o.publish(ctx, st.pin, events.TypeNextVote, events.NextVotePayload{
			RoundNumber:   sess.CurrentRound,
			Category:      sess.Categories[next-1],
			CategoryIndex: next,
		})
		o.enterVoting(st, sess, next)
		return nil
	}

	if sess.IsLastRound() {
		return o.closeWithWinners(ctx, st, sess)
	}

	board, err := o.scorer.Scoreboard(ctx, st.pin)
	if err != nil {
		return fmt.Errorf("failed to compute scoreboard: %w", err)
	}
	o.publish(ctx, st.pin, events.TypeScoreboard, events.ScoreboardPayload{
		RoundNumber: sess.CurrentRound,
		Standings:   toStandings(board),
	})
	o.enterPhase(st, PhaseIntermission, o.cfg.IntermissionTicks, 0)
	return nil
}

// closeWithWinners ends the session after its last round.
func (o *Orchestrator) closeWithWinners(ctx context.Context, st *sessionState, sess *models.Session) error {
	winners, err := o.scorer.Winners(ctx, sess.Pin)
	if err != nil {
		return fmt.Errorf("failed to compute winners: %w", err)
	}

	sess.Status = models.SessionStatusClosed
	if err := o.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	payload := events.WinnersPayload{Winners: make([]events.Winner, 0, len(winners))}
	for _, w := range winners {
		payload.Winners = append(payload.Winners, events.Winner{Username: w.Username, Score: w.Score, Quote: w.Quote})
	}
	o.publish(ctx, sess.Pin, events.TypeWinners, payload)

	st.phase = PhaseClosed
	// the state lock is still held by onTick; forget only touches the registry
	o.forget(st)

	log.Info().Int("session_pin", sess.Pin).Int("winners", len(winners)).Msg("session closed")
	return nil
}

func (o *Orchestrator) tickIntermission(ctx context.Context, st *sessionState) error {
	st.remaining--

	sess, err := o.repo.FindSession(ctx, st.pin)
	if err != nil {
		return err
	}

	if st.remaining > 0 {
		o.publish(ctx, st.pin, events.TypeIntermissionTimerTick, events.TimerTickPayload{
			RoundNumber:  sess.CurrentRound,
			RemainingSec: st.remaining,
		})
		return nil
	}

	return o.startRound(ctx, st, sess, sess.CurrentRound+1)
}

func categoryAt(sess *models.Session, c int) (string, error) {
	if c < 1 || c > len(sess.Categories) {
		return "", fmt.Errorf("category %d out of range for session %d", c, sess.Pin)
	}
	return sess.Categories[c-1], nil
}

func toStandings(board []scoring.ScoreEntry) []events.Standing {
	out := make([]events.Standing, 0, len(board))
	for _, e := range board {
		out = append(out, events.Standing{Username: e.Username, Score: e.Score})
	}
	return out
}
