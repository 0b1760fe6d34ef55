package orchestrator

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/models"
)

// SubmitAnswer stores or replaces a member's answer for one category of a
// running round. It returns the stored answer.
func (o *Orchestrator) SubmitAnswer(
	ctx context.Context,
	pin int,
	token string,
	number int,
	category, text string,
) (*models.Answer, error) {
	if n := utf8.RuneCountInString(text); n > models.MaxAnswerLength {
		return nil, apperrors.NewValidation("text", "must be at most %d characters, got %d", models.MaxAnswerLength, n)
	}

	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return nil, err
	}
	defer o.release(st, sess)

	player, err := o.resolveMember(ctx, token, sess)
	if err != nil {
		return nil, err
	}
	if !sess.HasCategory(category) {
		return nil, apperrors.NewValidation("category", "%q is not a category of session %d", category, pin)
	}
	r, err := o.repo.FindRound(ctx, pin, number)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RoundStatusRunning {
		return nil, apperrors.NewConflict("round %d is not running anymore, answers are closed", number)
	}

	answer := &models.Answer{
		SessionPin:  pin,
		RoundNumber: number,
		Category:    category,
		PlayerID:    player,
		Text:        text,
	}
	if err := o.repo.SaveAnswer(ctx, answer); err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	return answer, nil
}

// SubmitVote stores or replaces a member's judgment of another member's answer.
// Votes are accepted only while that answer's category is being voted on.
func (o *Orchestrator) SubmitVote(ctx context.Context, pin int, token string, answerID uuid.UUID, valid bool) error {
	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	voter, err := o.resolveMember(ctx, token, sess)
	if err != nil {
		return err
	}
	answer, err := o.repo.FindAnswer(ctx, answerID)
	if err != nil {
		return err
	}
	if answer.SessionPin != pin {
		return apperrors.NewNotFound("answer", answerID)
	}
	if st.phase != PhaseVoting ||
		answer.RoundNumber != sess.CurrentRound ||
		sess.CategoryIndex(answer.Category) != st.category {
		return apperrors.NewConflict("voting on %q of round %d is not open", answer.Category, answer.RoundNumber)
	}
	if answer.PlayerID == voter {
		return apperrors.NewConflict("players cannot vote on their own answer")
	}

	if err := o.repo.SaveVote(ctx, models.Vote{AnswerID: answerID, VoterID: voter, Valid: valid}); err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}
