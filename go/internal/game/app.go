// Package game exposes the player-facing operations: session creation, the
// actions driven through the orchestrator, and score queries.
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/identity"
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/orchestrator"
	"github.com/mcdev12/scatter/go/internal/round"
	"github.com/mcdev12/scatter/go/internal/scoring"
)

const pinAttempts = 50

// Repository defines what the app layer needs from persistence.
type Repository interface {
	SessionExists(ctx context.Context, pin int) (bool, error)
	CreateSession(ctx context.Context, s *models.Session, rounds []models.Round) error
	FindSession(ctx context.Context, pin int) (*models.Session, error)
	FindRoundsBySession(ctx context.Context, pin int) ([]models.Round, error)
	ActiveSessionForPlayer(ctx context.Context, playerID uuid.UUID) (int, bool, error)
	FindPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	SavePlayer(ctx context.Context, p *models.Player) error
	FindAllPlayersInSession(ctx context.Context, pin int) ([]models.Player, error)
	FindAnswersByRound(ctx context.Context, pin, number int) ([]models.Answer, error)
}

// Orchestrator defines the session actions the app forwards.
type Orchestrator interface {
	Snapshot(pin int) (orchestrator.Snapshot, bool)
	StartSession(ctx context.Context, pin int) error
	StartRound(ctx context.Context, pin, number int) error
	StopRound(ctx context.Context, pin int, token string, number int) error
	RequestSkip(ctx context.Context, pin int, token string) error
	JoinSession(ctx context.Context, pin int, token string) error
	LeaveSession(ctx context.Context, pin int, token string) error
	SubmitAnswer(ctx context.Context, pin int, token string, number int, category, text string) (*models.Answer, error)
	SubmitVote(ctx context.Context, pin int, token string, answerID uuid.UUID, valid bool) error
}

// Scorer defines the score queries the app exposes.
type Scorer interface {
	Scoreboard(ctx context.Context, pin int) ([]scoring.ScoreEntry, error)
	Winners(ctx context.Context, pin int) ([]scoring.Winner, error)
	Leaderboard(ctx context.Context) ([]scoring.ScoreEntry, error)
}

// Identity resolves and issues player tokens.
type Identity interface {
	identity.Resolver
	identity.Issuer
}

// App handles game business logic.
type App struct {
	repo     Repository
	orch     Orchestrator
	scorer   Scorer
	identity Identity
	clock    clockwork.Clock
	cfg      Config

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewApp creates a game App. A nil rng seeds one from the runtime.
func NewApp(repo Repository, orch Orchestrator, scorer Scorer, id Identity, clock clockwork.Clock, cfg Config, rng *rand.Rand) *App {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{repo: repo, orch: orch, scorer: scorer, identity: id, clock: clock, cfg: cfg, rng: rng}
}

// RegisterPlayer creates a player and issues its token.
func (a *App) RegisterPlayer(ctx context.Context, req RegisterPlayerRequest) (*RegisteredPlayer, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperrors.NewValidation("username", "must not be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperrors.NewValidation("username", "must be at most %d characters", MaxUsernameLength)
	}
	if utf8.RuneCountInString(req.Quote) > models.MaxAnswerLength {
		return nil, apperrors.NewValidation("quote", "must be at most %d characters", models.MaxAnswerLength)
	}

	p := &models.Player{
		ID:        uuid.New(),
		Username:  username,
		Quote:     req.Quote,
		CreatedAt: a.clock.Now(),
	}
	if err := a.repo.SavePlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save player: %w", err)
	}
	token, err := a.identity.Issue(p.ID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("player_id", p.ID.String()).Str("username", p.Username).Msg("player registered")
	return &RegisteredPlayer{Player: *p, Token: token}, nil
}

// CreateSession opens a new session hosted by the token's player. Every round is
// created up front with its own letter.
func (a *App) CreateSession(ctx context.Context, token string, req CreateSessionRequest) (*models.Session, error) {
	categories, err := a.validateCreateSession(&req)
	if err != nil {
		return nil, err
	}

	host, ok := a.identity.ResolvePlayer(ctx, token)
	if !ok {
		return nil, apperrors.NewNotFound("player", "")
	}
	if _, err := a.repo.FindPlayer(ctx, host); err != nil {
		return nil, err
	}
	if pin, ok, err := a.repo.ActiveSessionForPlayer(ctx, host); err != nil {
		return nil, fmt.Errorf("failed to check active session: %w", err)
	} else if ok {
		return nil, apperrors.NewConflict("player %s already belongs to session %d", host, pin)
	}

	letters := a.drawLetters(req.RoundCount)
	for attempt := 0; attempt < pinAttempts; attempt++ {
		pin, err := a.freePin(ctx)
		if err != nil {
			return nil, err
		}

		sess := &models.Session{
			Pin:         pin,
			HostID:      host,
			PlayerIDs:   []uuid.UUID{host},
			RoundCount:  req.RoundCount,
			RoundLength: req.RoundLength,
			Letters:     letters,
			Categories:  categories,
			Status:      models.SessionStatusOpen,
			CreatedAt:   a.clock.Now(),
		}
		rounds := make([]models.Round, 0, len(letters))
		for i, l := range letters {
			rounds = append(rounds, round.New(pin, i+1, l))
		}

		err = a.repo.CreateSession(ctx, sess, rounds)
		if apperrors.IsConflict(err) {
			// the pin may have been taken since freePin checked it
			if taken, _ := a.repo.SessionExists(ctx, pin); taken {
				continue
			}
		}
		if err != nil {
			return nil, err
		}

		log.Info().
			Int("session_pin", pin).
			Str("host_id", host.String()).
			Int("rounds", sess.RoundCount).
			Strs("categories", categories).
			Msg("session created")
		return sess, nil
	}
	return nil, fmt.Errorf("no free session pin after %d attempts", pinAttempts)
}

func (a *App) validateCreateSession(req *CreateSessionRequest) ([]string, error) {
	if req.RoundCount < 1 || req.RoundCount > MaxRoundCount {
		return nil, apperrors.NewValidation("round_count", "must be between 1 and %d", MaxRoundCount)
	}
	if !req.RoundLength.Valid() {
		return nil, apperrors.NewValidation("round_length", "must be SHORT, MEDIUM or LONG, got %q", req.RoundLength)
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = a.cfg.DefaultCategories
	}
	if len(categories) < 1 || len(categories) > a.cfg.MaxCategories {
		return nil, apperrors.NewValidation("categories", "must have between 1 and %d entries", a.cfg.MaxCategories)
	}

	seen := make(map[string]bool, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, apperrors.NewValidation("categories", "must not contain empty names")
		}
		if seen[strings.ToLower(c)] {
			return nil, apperrors.NewValidation("categories", "duplicate category %q", c)
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
	}
	return out, nil
}

// freePin draws 4-digit pins until one is unused.
func (a *App) freePin(ctx context.Context) (int, error) {
	for attempt := 0; attempt < pinAttempts; attempt++ {
		a.rngMu.Lock()
		pin := a.rng.IntN(9000) + 1000
		a.rngMu.Unlock()

		exists, err := a.repo.SessionExists(ctx, pin)
		if err != nil {
			return 0, fmt.Errorf("failed to check session pin: %w", err)
		}
		if !exists {
			return pin, nil
		}
	}
	return 0, fmt.Errorf("no free session pin after %d attempts", pinAttempts)
}

// drawLetters returns n distinct letters of A..Z in random order.
func (a *App) drawLetters(n int) []string {
	a.rngMu.Lock()
	perm := a.rng.Perm(26)
	a.rngMu.Unlock()

	letters := make([]string, n)
	for i := range letters {
		letters[i] = string(rune('A' + perm[i]))
	}
	return letters
}

func (a *App) JoinSession(ctx context.Context, pin int, token string) error {
	return a.orch.JoinSession(ctx, pin, token)
}

func (a *App) LeaveSession(ctx context.Context, pin int, token string) error {
	return a.orch.LeaveSession(ctx, pin, token)
}

func (a *App) StartSession(ctx context.Context, pin int) error {
	return a.orch.StartSession(ctx, pin)
}

func (a *App) StartRound(ctx context.Context, pin, number int) error {
	return a.orch.StartRound(ctx, pin, number)
}

func (a *App) StopRound(ctx context.Context, pin int, token string, number int) error {
	return a.orch.StopRound(ctx, pin, token, number)
}

func (a *App) RequestSkip(ctx context.Context, pin int, token string) error {
	return a.orch.RequestSkip(ctx, pin, token)
}

func (a *App) SubmitAnswer(ctx context.Context, pin int, token string, number int, category, text string) (*models.Answer, error) {
	return a.orch.SubmitAnswer(ctx, pin, token, number, category, text)
}

func (a *App) SubmitVote(ctx context.Context, pin int, token string, answerID uuid.UUID, valid bool) error {
	return a.orch.SubmitVote(ctx, pin, token, answerID, valid)
}

// GetSession returns the session, its rounds and its live phase if any.
func (a *App) GetSession(ctx context.Context, pin int) (*SessionView, error) {
	sess, err := a.repo.FindSession(ctx, pin)
	if err != nil {
		return nil, err
	}
	rounds, err := a.repo.FindRoundsBySession(ctx, pin)
	if err != nil {
		return nil, err
	}
	view := &SessionView{Session: *sess, Rounds: rounds}
	if snap, ok := a.orch.Snapshot(pin); ok {
		view.Phase = &snap
	}
	return view, nil
}

// GetCategories returns the categories of a session.
func (a *App) GetCategories(ctx context.Context, pin int) ([]string, error) {
	sess, err := a.repo.FindSession(ctx, pin)
	if err != nil {
		return nil, err
	}
	return sess.Categories, nil
}

// DefaultCategories returns the categories used when a session names none.
func (a *App) DefaultCategories() []string {
	return a.cfg.DefaultCategories
}

// GetMembers returns the host and member usernames.
func (a *App) GetMembers(ctx context.Context, pin int) (events.MembershipChangedPayload, error) {
	sess, err := a.repo.FindSession(ctx, pin)
	if err != nil {
		return events.MembershipChangedPayload{}, err
	}
	return orchestrator.MembershipOf(ctx, a.repo, sess)
}

// GetAnswers returns every answer given in a round.
func (a *App) GetAnswers(ctx context.Context, pin, number int) ([]models.Answer, error) {
	if _, err := a.repo.FindSession(ctx, pin); err != nil {
		return nil, err
	}
	return a.repo.FindAnswersByRound(ctx, pin, number)
}

func (a *App) GetScoreboard(ctx context.Context, pin int) ([]scoring.ScoreEntry, error) {
	if _, err := a.repo.FindSession(ctx, pin); err != nil {
		return nil, err
	}
	return a.scorer.Scoreboard(ctx, pin)
}

func (a *App) GetWinners(ctx context.Context, pin int) ([]scoring.Winner, error) {
	if _, err := a.repo.FindSession(ctx, pin); err != nil {
		return nil, err
	}
	return a.scorer.Winners(ctx, pin)
}

func (a *App) GetLeaderboard(ctx context.Context) ([]scoring.ScoreEntry, error) {
	return a.scorer.Leaderboard(ctx)
}
