package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/round"
)

// StartSession moves an OPEN session to RUNNING.
func (o *Orchestrator) StartSession(ctx context.Context, pin int) error {
	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	if sess.Status != models.SessionStatusOpen {
		return apperrors.NewConflict("session %d is %s, not OPEN", pin, sess.Status)
	}

	sess.Status = models.SessionStatusRunning
	if err := o.repo.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	st.quorum.Reset(sess.PlayerIDs)

	log.Info().Int("session_pin", pin).Int("players", len(sess.PlayerIDs)).Msg("session started")
	return nil
}

// StartRound starts round number and its answering countdown.
func (o *Orchestrator) StartRound(ctx context.Context, pin, number int) error {
	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	return o.startRound(ctx, st, sess, number)
}

// StopRound ends answering early on behalf of a member and opens voting at once.
func (o *Orchestrator) StopRound(ctx context.Context, pin int, token string, number int) error {
	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	if _, err := o.resolveMember(ctx, token, sess); err != nil {
		return err
	}
	r, err := o.repo.FindRound(ctx, pin, number)
	if err != nil {
		return err
	}
	if r.Status != models.RoundStatusRunning {
		return apperrors.NewConflict("round %d of session %d is not running", number, pin)
	}

	return o.finishRound(ctx, st, sess, r)
}

// RequestSkip records that a member wants the current phase to end. It is
// consumed by the next tick of the active phase.
func (o *Orchestrator) RequestSkip(ctx context.Context, pin int, token string) error {
	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	player, err := o.resolveMember(ctx, token, sess)
	if err != nil {
		return err
	}

	if st.quorum.Signal(player) {
		log.Debug().
			Int("session_pin", pin).
			Str("player_id", player.String()).
			Int("signalled", st.quorum.Signalled()).
			Int("eligible", st.quorum.Eligible()).
			Msg("skip requested")
	}
	return nil
}

// JoinSession adds a player to an OPEN session.
func (o *Orchestrator) JoinSession(ctx context.Context, pin int, token string) error {
	player, err := o.resolvePlayer(ctx, token)
	if err != nil {
		return err
	}

	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	if sess.Status != models.SessionStatusOpen {
		return apperrors.NewConflict("session %d is %s, not OPEN", pin, sess.Status)
	}
	if other, ok, err := o.repo.ActiveSessionForPlayer(ctx, player); err != nil {
		return fmt.Errorf("failed to check active session: %w", err)
	} else if ok {
		return apperrors.NewConflict("player %s already belongs to session %d", player, other)
	}

	updated := sess.Clone()
	updated.PlayerIDs = append(updated.PlayerIDs, player)
	if err := o.repo.SaveSession(ctx, updated); err != nil {
		return err
	}
	*sess = *updated

	o.publishMembership(ctx, sess)
	log.Info().Int("session_pin", pin).Str("player_id", player.String()).Msg("player joined")
	return nil
}

// LeaveSession removes a member. The first remaining member becomes host when the
// host leaves; the session closes when nobody is left.
func (o *Orchestrator) LeaveSession(ctx context.Context, pin int, token string) error {
	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	player, err := o.resolveMember(ctx, token, sess)
	if err != nil {
		return err
	}
	if sess.Status == models.SessionStatusClosed {
		return apperrors.NewConflict("session %d is closed", pin)
	}

	updated := sess.Clone()
	updated.RemovePlayer(player)
	if len(updated.PlayerIDs) == 0 {
		if err := o.finishRunningRound(ctx, sess); err != nil {
			return err
		}
		updated.Status = models.SessionStatusClosed
	} else if updated.HostID == player {
		updated.HostID = updated.PlayerIDs[0]
	}
	if err := o.repo.SaveSession(ctx, updated); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	*sess = *updated
	st.quorum.Remove(player)

	log.Info().
		Int("session_pin", pin).
		Str("player_id", player.String()).
		Int("remaining", len(sess.PlayerIDs)).
		Msg("player left")

	if sess.Status == models.SessionStatusClosed {
		log.Info().Int("session_pin", pin).Msg("session closed, no players left")
		return nil
	}
	o.publishMembership(ctx, sess)
	return nil
}

// Close ends a session immediately, cancelling its timer.
func (o *Orchestrator) Close(ctx context.Context, pin int) error {
	st, sess, err := o.lockSession(ctx, pin)
	if err != nil {
		return err
	}
	defer o.release(st, sess)

	if sess.Status == models.SessionStatusClosed {
		return nil
	}
	if err := o.finishRunningRound(ctx, sess); err != nil {
		return err
	}
	updated := sess.Clone()
	updated.Status = models.SessionStatusClosed
	if err := o.repo.SaveSession(ctx, updated); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	*sess = *updated

	log.Info().Int("session_pin", pin).Msg("session closed")
	return nil
}

// finishRunningRound finishes the current round if it is still accepting answers.
func (o *Orchestrator) finishRunningRound(ctx context.Context, sess *models.Session) error {
	if sess.CurrentRound == 0 {
		return nil
	}
	r, err := o.repo.FindRound(ctx, sess.Pin, sess.CurrentRound)
	if err != nil {
		return err
	}
	if !round.IsRunning(r) {
		return nil
	}
	if err := round.Finish(r); err != nil {
		return err
	}
	if err := o.repo.SaveRound(ctx, r); err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}
	return nil
}

func (o *Orchestrator) publishMembership(ctx context.Context, sess *models.Session) {
	payload, err := MembershipOf(ctx, o.repo, sess)
	if err != nil {
		log.Error().Err(err).Int("session_pin", sess.Pin).Msg("failed to load members for broadcast")
		return
	}
	o.publish(ctx, sess.Pin, events.TypeMembershipChanged, payload)
}

// MembershipOf lists the host and member usernames of sess.
func MembershipOf(ctx context.Context, repo interface {
	FindAllPlayersInSession(ctx context.Context, pin int) ([]models.Player, error)
}, sess *models.Session) (events.MembershipChangedPayload, error) {
	players, err := repo.FindAllPlayersInSession(ctx, sess.Pin)
	if err != nil {
		return events.MembershipChangedPayload{}, err
	}
	payload := events.MembershipChangedPayload{Usernames: make([]string, 0, len(players))}
	for _, p := range players {
		if p.ID == sess.HostID {
			payload.HostUsername = p.Username
		}
		payload.Usernames = append(payload.Usernames, p.Username)
	}
	return payload, nil
}
