// Package orchestrator drives every session through its timed phases:
//
//	ANSWERING -> VOTING(1..K) -> RESULTS(1..K) -> intermission -> next round ... -> CLOSED
//
// Each session owns one mutex and at most one ticker. Timer ticks and player actions
// both take the session mutex for their whole read-modify-write sequence, so a tick
// can never race a stop, skip, join or leave of the same session. Sessions never
// share a lock; the registry lock only guards the pin -> state map.
package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/quorum"
	"github.com/mcdev12/scatter/go/internal/scoring"
	"github.com/mcdev12/scatter/go/internal/ticker"
)

// Repository defines what the orchestrator needs from persistence.
type Repository interface {
	FindSession(ctx context.Context, pin int) (*models.Session, error)
	SaveSession(ctx context.Context, s *models.Session) error
	ActiveSessionForPlayer(ctx context.Context, playerID uuid.UUID) (int, bool, error)
	FindRound(ctx context.Context, pin, number int) (*models.Round, error)
	SaveRound(ctx context.Context, r *models.Round) error
	SaveRoundStart(ctx context.Context, s *models.Session, r *models.Round) error
	FindPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	FindAllPlayersInSession(ctx context.Context, pin int) ([]models.Player, error)
	SaveAnswer(ctx context.Context, a *models.Answer) error
	FindAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error)
	SaveVote(ctx context.Context, v models.Vote) error
}

// Scorer defines what the orchestrator needs from the scoring engine.
type Scorer interface {
	Scoreboard(ctx context.Context, pin int) ([]scoring.ScoreEntry, error)
	Winners(ctx context.Context, pin int) ([]scoring.Winner, error)
}

// Identity resolves a player token to a player ID.
type Identity interface {
	ResolvePlayer(ctx context.Context, token string) (uuid.UUID, bool)
}

// Config holds the phase budgets. Budgets are counted in ticks.
type Config struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	VotingTicks       int           `yaml:"voting_ticks"`
	ResultTicks       int           `yaml:"result_ticks"`
	IntermissionTicks int           `yaml:"intermission_ticks"`
}

// DefaultConfig returns one-second ticks with 30/15/10 tick budgets.
func DefaultConfig() Config {
	return Config{
		TickInterval:      time.Second,
		VotingTicks:       30,
		ResultTicks:       15,
		IntermissionTicks: 10,
	}
}

// Phase is the timed step a session is currently in.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseAnswering    Phase = "ANSWERING"
	PhaseVoting       Phase = "VOTING"
	PhaseResults      Phase = "RESULTS"
	PhaseIntermission Phase = "INTERMISSION"
	PhaseClosed       Phase = "CLOSED"
)

// sessionState is the per-session mutable state guarded by mu.
type sessionState struct {
	mu sync.Mutex

	pin       int
	phase     Phase
	category  int // 1-based, set during VOTING and RESULTS
	remaining int
	gen       uint64 // bumped on every timer change; stale ticks carry an old gen
	ticker    *ticker.Ticker
	quorum    *quorum.Tracker
}

// Snapshot is a read-only view of a session's phase.
type Snapshot struct {
	Phase     Phase `json:"phase"`
	Category  int   `json:"category"`
	Remaining int   `json:"remaining"`
}

type Orchestrator struct {
	repo      Repository
	publisher events.Publisher
	identity  Identity
	scorer    Scorer
	clock     clockwork.Clock
	cfg       Config

	mu       sync.RWMutex
	sessions map[int]*sessionState
}

// NewOrchestrator creates an orchestrator. A nil clock means the real clock.
func NewOrchestrator(
	repo Repository,
	publisher events.Publisher,
	identity Identity,
	scorer Scorer,
	clock clockwork.Clock,
	cfg Config,
) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		repo:      repo,
		publisher: publisher,
		identity:  identity,
		scorer:    scorer,
		clock:     clock,
		cfg:       cfg,
		sessions:  make(map[int]*sessionState),
	}
}

// Snapshot returns the current phase of a session.
func (o *Orchestrator) Snapshot(pin int) (Snapshot, bool) {
	st := o.lookup(pin)
	if st == nil {
		return Snapshot{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return Snapshot{Phase: st.phase, Category: st.category, Remaining: st.remaining}, true
}

// Active returns the number of sessions held in memory.
func (o *Orchestrator) Active() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// Shutdown cancels every phase timer. Sessions keep their persisted state.
func (o *Orchestrator) Shutdown() {
	o.mu.RLock()
	states := make([]*sessionState, 0, len(o.sessions))
	for _, st := range o.sessions {
		states = append(states, st)
	}
	o.mu.RUnlock()

	for _, st := range states {
		st.mu.Lock()
		o.stopTimer(st)
		st.mu.Unlock()
	}
	log.Info().Int("sessions", len(states)).Msg("orchestrator timers cancelled")
}

func (o *Orchestrator) lookup(pin int) *sessionState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessions[pin]
}

func (o *Orchestrator) stateFor(pin int) *sessionState {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.sessions[pin]
	if !ok {
		st = &sessionState{pin: pin, phase: PhaseIdle, quorum: quorum.NewTracker()}
		o.sessions[pin] = st
	}
	return st
}

// forget drops st from the registry unless it was already replaced.
func (o *Orchestrator) forget(st *sessionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions[st.pin] == st {
		delete(o.sessions, st.pin)
	}
}

// lockSession loads the session under its state lock. On success the caller must
// call release.
func (o *Orchestrator) lockSession(ctx context.Context, pin int) (*sessionState, *models.Session, error) {
	for {
		st := o.lookup(pin)
		if st == nil {
			// unknown pins must not leave registry entries behind
			if _, err := o.repo.FindSession(ctx, pin); err != nil {
				return nil, nil, err
			}
			st = o.stateFor(pin)
		}

		st.mu.Lock()
		if o.lookup(pin) != st {
			// dropped by release while we waited; start over with the live entry
			st.mu.Unlock()
			continue
		}
		sess, err := o.repo.FindSession(ctx, pin)
		if err != nil {
			st.mu.Unlock()
			return nil, nil, err
		}
		return st, sess, nil
	}
}

// release unlocks st. Only RUNNING sessions keep their registry entry; OPEN
// sessions have no timer and CLOSED ones never get one again.
func (o *Orchestrator) release(st *sessionState, sess *models.Session) {
	drop := sess != nil && sess.Status != models.SessionStatusRunning
	if drop {
		o.stopTimer(st)
		if sess.Status == models.SessionStatusClosed {
			st.phase = PhaseClosed
		}
		o.forget(st)
	}
	st.mu.Unlock()
}

// resolveMember resolves token to a player that belongs to sess.
func (o *Orchestrator) resolveMember(ctx context.Context, token string, sess *models.Session) (uuid.UUID, error) {
	id, err := o.resolvePlayer(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	if !sess.HasPlayer(id) {
		return uuid.Nil, apperrors.NewNotFound("member of session "+strconv.Itoa(sess.Pin), id)
	}
	return id, nil
}

func (o *Orchestrator) resolvePlayer(ctx context.Context, token string) (uuid.UUID, error) {
	id, ok := o.identity.ResolvePlayer(ctx, token)
	if !ok {
		return uuid.Nil, apperrors.NewNotFound("player", "")
	}
	if _, err := o.repo.FindPlayer(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
